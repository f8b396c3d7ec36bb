package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/peer-support/internal/repository"
)

// wrapError maps driver errors onto the repository sentinels.  Unique-key
// violations become ErrConflict; the user collection narrows that to
// ErrEmailExists itself.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrConflict
	}
	return err
}

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var out T
	if err := col.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, wrapError(err)
	}
	return &out, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	return results, cursor.Err()
}

// updateAndFetch applies update to the document with the given id and
// returns the document as it is after the update.
func updateAndFetch[T any](ctx context.Context, col *mongo.Collection, id string, set bson.D) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out T
	err := col.FindOneAndUpdate(ctx, byID(id), bson.D{{Key: "$set", Value: set}}, opts).Decode(&out)
	if err != nil {
		return nil, wrapError(err)
	}
	return &out, nil
}

func updateFields(ctx context.Context, col *mongo.Collection, id string, set bson.D) error {
	res, err := col.UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, byID(id))
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func newestFirst() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
}
