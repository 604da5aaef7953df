package iterator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool and pgx.Tx used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on one table. Regular schedule fields are nullable
// timestamptz columns, list schedule fields are timestamptz[] columns kept ascending.
//
// Rows are read with SELECT * and turned into T by scan, for example
// pgx.RowToAddrOfStructByName[Probe].
type PostgresStore[T Entity] struct {
	db       DB
	table    string
	idColumn string
	scan     pgx.RowToFunc[T]
}

// PostgresOption configures a PostgresStore
type PostgresOption[T Entity] func(*PostgresStore[T])

// WithIDColumn sets the primary key column, "id" by default
func WithIDColumn[T Entity](column string) PostgresOption[T] {
	return func(s *PostgresStore[T]) {
		if column != "" {
			s.idColumn = column
		}
	}
}

// NewPostgresStore creates a store on table.
func NewPostgresStore[T Entity](db DB, table string, scan pgx.RowToFunc[T], opts ...PostgresOption[T]) (*PostgresStore[T], error) {
	if db == nil || scan == nil || table == "" {
		return nil, ErrStoreNil
	}
	s := &PostgresStore[T]{db: db, table: table, idColumn: "id", scan: scan}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (s *PostgresStore[T]) from() string {
	return ident(s.table)
}

func (s *PostgresStore[T]) id() string {
	return ident(s.idColumn)
}

// where appends the caller filter to cond and merges its arguments into args.
func where(cond string, f Filter, args pgx.NamedArgs) (string, pgx.NamedArgs) {
	if f.Where == "" {
		return cond, args
	}
	merged := maps.Clone(args)
	if merged == nil {
		merged = pgx.NamedArgs{}
	}
	maps.Copy(merged, f.Args)
	return fmt.Sprintf("(%s) AND (%s)", cond, f.Where), merged
}

func (s *PostgresStore[T]) collect(ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := s.db.Query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, s.scan)
}

func (s *PostgresStore[T]) FindDue(ctx context.Context, q Query) ([]T, error) {
	col := ident(q.Field)
	var cond, order string
	if q.List {
		cond = fmt.Sprintf("%s[1] <= @now", col)
		order = fmt.Sprintf("%s[1] ASC", col)
	} else {
		cond = fmt.Sprintf("%s IS NULL OR %s <= @now", col, col)
		order = fmt.Sprintf("%s ASC NULLS FIRST", col)
	}
	cond, args := where(cond, q.Filter, pgx.NamedArgs{"now": q.Now})

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s", s.from(), cond, order)
	if q.Limit > 0 {
		sql += " LIMIT @limit"
		args["limit"] = q.Limit
	}
	return s.collect(ctx, sql, args)
}

func (s *PostgresStore[T]) Claim(ctx context.Context, c Claim) error {
	col := ident(c.Field)
	args := pgx.NamedArgs{"id": c.ID, "observed": c.Observed, "next": c.Next}

	var sql string
	switch {
	case c.List:
		sql = fmt.Sprintf("UPDATE %s SET %s = %s[2:] WHERE %s = @id AND %s[1] = @observed",
			s.from(), col, col, s.id(), col)
	case c.Scheduled:
		sql = fmt.Sprintf("UPDATE %s SET %s = @next WHERE %s = @id AND %s = @observed",
			s.from(), col, s.id(), col)
	default:
		sql = fmt.Sprintf("UPDATE %s SET %s = @next WHERE %s = @id AND %s IS NULL",
			s.from(), col, s.id(), col)
	}

	tag, err := s.db.Exec(ctx, sql, args)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

func (s *PostgresStore[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := s.db.Query(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE %s = @id", s.from(), s.id()),
		pgx.NamedArgs{"id": id})
	if err != nil {
		return zero, err
	}
	out, err := pgx.CollectExactlyOneRow(rows, s.scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, ErrEntityNotFound
	}
	return out, err
}

func (s *PostgresStore[T]) EarliestDue(ctx context.Context, q Query) (time.Time, bool, error) {
	col := ident(q.Field)
	expr := fmt.Sprintf("min(COALESCE(%s, @now::timestamptz))", col)
	if q.List {
		expr = fmt.Sprintf("min(%s[1])", col)
	}
	cond, args := where("TRUE", q.Filter, pgx.NamedArgs{"now": q.Now})

	var due *time.Time
	err := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s", expr, s.from(), cond), args,
	).Scan(&due)
	if err != nil {
		return time.Time{}, false, err
	}
	if due == nil {
		return time.Time{}, false, nil
	}
	return *due, true, nil
}

func (s *PostgresStore[T]) FindUnscheduled(ctx context.Context, q Query) ([]T, error) {
	col := ident(q.Field)
	cond, args := where(fmt.Sprintf("%s IS NULL OR cardinality(%s) = 0", col, col), q.Filter, pgx.NamedArgs{})

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s", s.from(), cond)
	if q.Limit > 0 {
		sql += " LIMIT @limit"
		args["limit"] = q.Limit
	}
	return s.collect(ctx, sql, args)
}

func (s *PostgresStore[T]) ReplaceIterations(ctx context.Context, id, field string, expected, next []time.Time) error {
	col := ident(field)
	if next == nil {
		next = []time.Time{}
	}
	args := pgx.NamedArgs{"id": id, "next": next}

	guard := fmt.Sprintf("(%s IS NULL OR cardinality(%s) = 0)", col, col)
	if len(expected) > 0 {
		guard = fmt.Sprintf("%s = @expected", col)
		args["expected"] = expected
	}

	tag, err := s.db.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET %s = @next WHERE %s = @id AND %s", s.from(), col, s.id(), guard),
		args)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (s *PostgresStore[T]) PushIteration(ctx context.Context, id, field string, at time.Time) error {
	col := ident(field)
	return s.exec(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = ARRAY(SELECT DISTINCT x FROM unnest(array_append(COALESCE(%s, '{}'), @at::timestamptz)) AS x ORDER BY x) WHERE %s = @id",
		s.from(), col, col, s.id()),
		pgx.NamedArgs{"id": id, "at": at})
}

func (s *PostgresStore[T]) RemoveFirstIteration(ctx context.Context, id, field string) error {
	col := ident(field)
	return s.exec(ctx,
		fmt.Sprintf("UPDATE %s SET %s = %s[2:] WHERE %s = @id", s.from(), col, col, s.id()),
		pgx.NamedArgs{"id": id})
}

func (s *PostgresStore[T]) RemoveIteration(ctx context.Context, id, field string, at time.Time) error {
	col := ident(field)
	return s.exec(ctx,
		fmt.Sprintf("UPDATE %s SET %s = array_remove(%s, @at::timestamptz) WHERE %s = @id", s.from(), col, col, s.id()),
		pgx.NamedArgs{"id": id, "at": at})
}

func (s *PostgresStore[T]) UnsetIterations(ctx context.Context, id, field string) error {
	return s.exec(ctx,
		fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = @id", s.from(), ident(field), s.id()),
		pgx.NamedArgs{"id": id})
}

func (s *PostgresStore[T]) exec(ctx context.Context, sql string, args pgx.NamedArgs) error {
	tag, err := s.db.Exec(ctx, sql, args)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}
	return nil
}
