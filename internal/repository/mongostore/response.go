package mongostore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

// AttachResponse claims the message with a conditional findAndModify on
// {_id, response: null} and then inserts the response.  Only one caller can
// match the filter.  If the insert fails the claim is rolled back to the
// message's prior state; the unique index on responses.message_id catches
// anything that slips past the claim.
func (s *Store) AttachResponse(ctx context.Context, r *model.Response) error {
	msgs := s.col(ColMessages)
	claim := bson.D{
		{Key: "_id", Value: r.MessageID},
		{Key: "response", Value: nil},
	}
	set := bson.D{{Key: "$set", Value: bson.D{
		{Key: "response", Value: r.ID},
		{Key: "has_response", Value: true},
		{Key: "status", Value: model.MessageStatusResponded},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	var before model.Message
	err := msgs.FindOneAndUpdate(ctx, claim, set,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := msgs.CountDocuments(ctx, byID(r.MessageID))
		if cerr != nil {
			return wrapError(cerr)
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	if err != nil {
		return wrapError(err)
	}

	if _, err := s.col(ColResponses).InsertOne(ctx, r); err != nil {
		s.releaseClaim(r, before)
		return wrapError(err)
	}
	return nil
}

// releaseClaim undoes a claim whose insert failed.  It runs on a fresh
// context since the request context may be what failed.
func (s *Store) releaseClaim(r *model.Response, before model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.col(ColMessages).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: r.MessageID}, {Key: "response", Value: r.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "response", Value: nil},
			{Key: "has_response", Value: false},
			{Key: "status", Value: before.Status},
			{Key: "updated_at", Value: before.UpdatedAt},
		}}})
	if err != nil {
		slog.Error("mongostore: release response claim", "message_id", r.MessageID, "err", err)
	}
}

func (s *Store) GetResponse(ctx context.Context, id string) (*model.Response, error) {
	return findOne[model.Response](ctx, s.col(ColResponses), byID(id))
}

func (s *Store) ListResponsesByIDs(ctx context.Context, ids []string) ([]*model.Response, error) {
	if len(ids) == 0 {
		return []*model.Response{}, nil
	}
	return findMany[model.Response](ctx, s.col(ColResponses),
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
}

func (s *Store) ListResponses(ctx context.Context, motivatorID string) ([]*model.Response, error) {
	filter := bson.D{}
	if motivatorID != "" {
		filter = bson.D{{Key: "motivator_id", Value: motivatorID}}
	}
	return findMany[model.Response](ctx, s.col(ColResponses), filter, newestFirst())
}
