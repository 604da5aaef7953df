package iterator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements Store on a MongoDB collection. Documents are decoded into T, so T must
// be bson-decodable (usually a pointer to a struct with bson tags).
//
// Claims are single-document conditional updates: the filter pins the observed schedule value,
// so when many processes race only the first update matches.
type MongoStore[T Entity] struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store on coll.
func NewMongoStore[T Entity](coll *mongo.Collection) (*MongoStore[T], error) {
	if coll == nil {
		return nil, ErrStoreNil
	}
	return &MongoStore[T]{coll: coll}, nil
}

// EnsureIndexes creates ascending indexes on the schedule fields.
func (s *MongoStore[T]) EnsureIndexes(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create schedule indexes: %w", err)
	}
	return nil
}

// idValue maps entity ids back to the stored _id; hex ObjectIDs are converted, everything
// else is used verbatim.
func idValue(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func withFilter(base bson.D, f Filter) bson.D {
	if len(f.Document) == 0 {
		return base
	}
	return bson.D{{Key: "$and", Value: bson.A{base, f.Document}}}
}

func unscheduledList(field string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: field, Value: nil}},
		bson.D{{Key: field, Value: bson.D{{Key: "$size", Value: 0}}}},
	}}}
}

func dueFilter(q Query) bson.D {
	if q.List {
		return bson.D{{Key: q.Field + ".0", Value: bson.D{{Key: "$lte", Value: q.Now}}}}
	}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: q.Field, Value: nil}},
		bson.D{{Key: q.Field, Value: bson.D{{Key: "$lte", Value: q.Now}}}},
	}}}
}

func (s *MongoStore[T]) FindDue(ctx context.Context, q Query) ([]T, error) {
	opts := mongooptions.Find().SetSort(bson.D{{Key: q.Field, Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.coll.Find(ctx, withFilter(dueFilter(q), q.Filter), opts)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore[T]) Claim(ctx context.Context, c Claim) error {
	var filter, update bson.D
	switch {
	case c.List:
		filter = bson.D{{Key: "_id", Value: idValue(c.ID)}, {Key: c.Field + ".0", Value: c.Observed}}
		update = bson.D{{Key: "$pop", Value: bson.D{{Key: c.Field, Value: -1}}}}
	case c.Scheduled:
		filter = bson.D{{Key: "_id", Value: idValue(c.ID)}, {Key: c.Field, Value: c.Observed}}
		update = bson.D{{Key: "$set", Value: bson.D{{Key: c.Field, Value: c.Next}}}}
	default:
		filter = bson.D{{Key: "_id", Value: idValue(c.ID)}, {Key: c.Field, Value: nil}}
		update = bson.D{{Key: "$set", Value: bson.D{{Key: c.Field, Value: c.Next}}}}
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrClaimConflict
	}
	return nil
}

func (s *MongoStore[T]) Load(ctx context.Context, id string) (T, error) {
	var out T
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: idValue(id)}}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrEntityNotFound
	}
	return out, err
}

func (s *MongoStore[T]) EarliestDue(ctx context.Context, q Query) (time.Time, bool, error) {
	base := bson.D{}
	if q.List {
		base = bson.D{{Key: q.Field + ".0", Value: bson.D{{Key: "$exists", Value: true}}}}
	}

	var first T
	err := s.coll.FindOne(ctx, withFilter(base, q.Filter),
		mongooptions.FindOne().SetSort(bson.D{{Key: q.Field, Value: 1}}),
	).Decode(&first)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	due, ok := first.NextIteration(q.Field)
	if !ok {
		if q.List {
			return time.Time{}, false, nil
		}
		return q.Now, true, nil
	}
	return due, true, nil
}

func (s *MongoStore[T]) FindUnscheduled(ctx context.Context, q Query) ([]T, error) {
	opts := mongooptions.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.coll.Find(ctx, withFilter(unscheduledList(q.Field), q.Filter), opts)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore[T]) ReplaceIterations(ctx context.Context, id, field string, expected, next []time.Time) error {
	filter := bson.D{{Key: "_id", Value: idValue(id)}}
	if len(expected) == 0 {
		filter = append(filter, unscheduledList(field)...)
	} else {
		filter = append(filter, bson.E{Key: field, Value: expected})
	}
	if next == nil {
		next = []time.Time{}
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: next}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (s *MongoStore[T]) PushIteration(ctx context.Context, id, field string, at time.Time) error {
	// $setUnion drops duplicates, $sortArray restores ascending order.
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$sortArray", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$setUnion", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}},
				bson.A{at},
			}}}},
			{Key: "sortBy", Value: 1},
		}}}}}}},
	}
	return s.updateOne(ctx, id, pipeline)
}

func (s *MongoStore[T]) RemoveFirstIteration(ctx context.Context, id, field string) error {
	return s.updateOne(ctx, id, bson.D{{Key: "$pop", Value: bson.D{{Key: field, Value: -1}}}})
}

func (s *MongoStore[T]) RemoveIteration(ctx context.Context, id, field string, at time.Time) error {
	return s.updateOne(ctx, id, bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: at}}}})
}

func (s *MongoStore[T]) UnsetIterations(ctx context.Context, id, field string) error {
	return s.updateOne(ctx, id, bson.D{{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}}})
}

func (s *MongoStore[T]) updateOne(ctx context.Context, id string, update any) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: idValue(id)}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrEntityNotFound
	}
	return nil
}
