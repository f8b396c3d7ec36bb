package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// emailErr narrows a unique-key violation on users to ErrEmailExists.
func emailErr(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return repository.ErrEmailExists
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = normEmail(u.Email)
	_, err := s.col(ColUsers).InsertOne(ctx, u)
	return emailErr(wrapError(err))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), byID(id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: normEmail(email)}})
}

func (s *Store) ListUsers(ctx context.Context, f model.UserFilter) ([]*model.User, error) {
	filter := bson.D{}
	if f.Role != "" {
		filter = append(filter, bson.E{Key: "role", Value: f.Role})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.Gender != "" {
		filter = append(filter, bson.E{Key: "gender", Value: f.Gender})
	}
	return findMany[model.User](ctx, s.col(ColUsers), filter, newestFirst())
}

func (s *Store) ListUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	return findMany[model.User](ctx, s.col(ColUsers),
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	return updateAndFetch[model.User](ctx, s.col(ColUsers), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	set := bson.D{}
	if upd.FullName != nil {
		set = append(set, bson.E{Key: "full_name", Value: *upd.FullName})
	}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: normEmail(*upd.Email)})
	}
	if upd.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *upd.Bio})
	}
	if upd.Specialities != nil {
		set = append(set, bson.E{Key: "specialities", Value: *upd.Specialities})
	}
	if len(set) == 0 {
		return s.GetUserByID(ctx, id)
	}
	set = append(set, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	u, err := updateAndFetch[model.User](ctx, s.col(ColUsers), id, set)
	return u, emailErr(err)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserPhoto(ctx context.Context, id, url string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "profile_photo", Value: url},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{{Key: "refresh_token_hash", Value: hash}})
}

// SwapRefreshTokenHash is a compare-and-set on the refresh slot.  An empty
// slot may be stored as "" or be missing altogether.
func (s *Store) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error {
	var current any = expected
	if expected == "" {
		current = bson.D{{Key: "$in", Value: bson.A{nil, ""}}}
	}
	filter := bson.D{{Key: "_id", Value: id}, {Key: "refresh_token_hash", Value: current}}
	res, err := s.col(ColUsers).UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{{Key: "refresh_token_hash", Value: next}}}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := s.col(ColUsers).CountDocuments(ctx, byID(id))
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColUsers), id)
}
