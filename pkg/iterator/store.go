package iterator

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Filter narrows the candidate set of an iterator, letting several logical iterators share one
// entity type. Each store applies the part it understands and ignores the rest.
type Filter struct {
	// Document is merged into MongoStore queries.
	Document bson.D
	// Where is AND-ed into PostgresStore queries; named arguments come from Args.
	Where string
	Args  pgx.NamedArgs
	// Match is evaluated by MemoryStore.
	Match func(Entity) bool
}

// Query selects entities of one schedule field.
type Query struct {
	Field  string
	List   bool // list-valued schedule; only index 0 is considered
	Now    time.Time
	Limit  int
	Filter Filter
}

// Claim is an atomic conditional update on the schedule field.
//
// For regular schedules the field moves from Observed (or unset when Scheduled is false) to Next.
// For list schedules the head is removed if it still equals Observed.
type Claim struct {
	ID        string
	Field     string
	List      bool
	Observed  time.Time
	Scheduled bool
	Next      time.Time
}

// Store is the backing store contract of the engine.
//
// Claim is the only correctness primitive: when many processes race for the same entity exactly
// one Claim succeeds, the others get ErrClaimConflict.
type Store[T Entity] interface {
	// FindDue returns up to Limit entities whose first due time is at or before Now, earliest
	// first. Regular entities without a schedule are due.
	FindDue(ctx context.Context, q Query) ([]T, error)
	// Claim applies c atomically or returns ErrClaimConflict.
	Claim(ctx context.Context, c Claim) error
	// Load returns the current state of an entity or ErrEntityNotFound.
	Load(ctx context.Context, id string) (T, error)
	// EarliestDue returns the smallest first due time among matching entities.
	EarliestDue(ctx context.Context, q Query) (time.Time, bool, error)
	// FindUnscheduled returns entities whose list schedule is empty or unset.
	FindUnscheduled(ctx context.Context, q Query) ([]T, error)

	// ReplaceIterations writes next if the stored list still equals expected, otherwise it
	// returns ErrConcurrentModification.
	ReplaceIterations(ctx context.Context, id, field string, expected, next []time.Time) error
	// PushIteration inserts at into the list keeping it sorted and free of duplicates.
	PushIteration(ctx context.Context, id, field string, at time.Time) error
	// RemoveFirstIteration drops the head of the list.
	RemoveFirstIteration(ctx context.Context, id, field string) error
	// RemoveIteration drops every entry equal to at.
	RemoveIteration(ctx context.Context, id, field string, at time.Time) error
	// UnsetIterations clears the schedule field, which stops the engine from selecting the entity.
	UnsetIterations(ctx context.Context, id, field string) error
}
