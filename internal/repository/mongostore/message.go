package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

func normalized(ms []*model.Message, err error) ([]*model.Message, error) {
	for _, m := range ms {
		m.Normalize()
	}
	return ms, err
}

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	doc := *m
	doc.ResponseID = nil
	doc.HasResponse = false
	_, err := s.col(ColMessages).InsertOne(ctx, &doc)
	return wrapError(err)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	m, err := findOne[model.Message](ctx, s.col(ColMessages), byID(id))
	if err != nil {
		return nil, err
	}
	m.Normalize()
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, f model.MessageFilter) ([]*model.Message, error) {
	filter := bson.D{}
	if !f.AllAuthors {
		if len(f.AuthorIDs) == 0 {
			return []*model.Message{}, nil
		}
		filter = bson.D{{Key: "user_id", Value: bson.D{{Key: "$in", Value: f.AuthorIDs}}}}
	}
	return normalized(findMany[model.Message](ctx, s.col(ColMessages), filter, newestFirst()))
}

// UpdateMessageStatus only touches status; the response reference and
// flag are owned by AttachResponse.  The guard is part of the filter so it
// is evaluated atomically with the write.
func (s *Store) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, guard model.ResponseGuard) (*model.Message, error) {
	filter := byID(id)
	switch guard {
	case model.WithoutResponse:
		filter = append(filter, bson.E{Key: "response", Value: nil})
	case model.WithResponse:
		filter = append(filter, bson.E{Key: "response", Value: bson.D{{Key: "$ne", Value: nil}}})
	}
	set := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	var m model.Message
	err := s.col(ColMessages).FindOneAndUpdate(ctx, filter, set,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) && guard != model.AnyResponse {
		n, cerr := s.col(ColMessages).CountDocuments(ctx, byID(id))
		if cerr != nil {
			return nil, wrapError(cerr)
		}
		if n > 0 {
			return nil, repository.ErrStale
		}
	}
	if err != nil {
		return nil, wrapError(err)
	}
	m.Normalize()
	return &m, nil
}
