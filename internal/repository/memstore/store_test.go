package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-support/internal/ids"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

func TestUserEmailIsCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &model.User{ID: ids.New(), Email: "Jane@Example.com"}))
	err := s.CreateUser(ctx, &model.User{ID: ids.New(), Email: "jane@example.COM "})
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	u, err := s.GetUserByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
}

func TestUpdateProfileEmailCollision(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &model.User{ID: ids.New(), Email: "a@x.io"}
	b := &model.User{ID: ids.New(), Email: "b@x.io"}
	require.NoError(t, s.CreateUser(ctx, a))
	require.NoError(t, s.CreateUser(ctx, b))

	taken := "A@x.io"
	_, err := s.UpdateUserProfile(ctx, b.ID, model.ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	fresh := "c@x.io"
	u, err := s.UpdateUserProfile(ctx, b.ID, model.ProfileUpdate{Email: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "c@x.io", u.Email)

	_, err = s.GetUserByEmail(ctx, "b@x.io")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &model.User{ID: ids.New(), Email: "a@x.io", Status: model.UserStatusActive}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Status = model.UserStatusInactive

	again, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusActive, again.Status)
}

func TestAttachResponseSetsAllFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := &model.Message{ID: ids.New(), UserID: "client", Status: model.MessageStatusNew}
	require.NoError(t, s.CreateMessage(ctx, m))

	r := &model.Response{ID: ids.New(), MessageID: m.ID, MotivatorID: "mot"}
	require.NoError(t, s.AttachResponse(ctx, r))

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResponseID)
	assert.Equal(t, r.ID, *got.ResponseID)
	assert.True(t, got.HasResponse)
	assert.Equal(t, model.MessageStatusResponded, got.Status)

	err = s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: m.ID})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAttachResponseConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := &model.Message{ID: ids.New(), UserID: "client", Status: model.MessageStatusNew}
	require.NoError(t, s.CreateMessage(ctx, m))

	const n = 32
	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: m.ID})
			switch err {
			case nil:
				atomic.AddInt32(&wins, 1)
			case repository.ErrConflict:
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, n-1, conflicts)

	all, err := s.ListResponses(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListMessagesFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := &model.Message{ID: ids.New(), UserID: "a"}
	second := &model.Message{ID: ids.New(), UserID: "b"}
	third := &model.Message{ID: ids.New(), UserID: "a"}
	for _, m := range []*model.Message{first, second, third} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	got, err := s.ListMessages(ctx, model.MessageFilter{AuthorIDs: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, third.ID, got[0].ID, "newest first")

	none, err := s.ListMessages(ctx, model.MessageFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := s.ListMessages(ctx, model.MessageFilter{AllAuthors: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateMessageStatusGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := &model.Message{ID: ids.New(), UserID: "client", Status: model.MessageStatusNew}
	require.NoError(t, s.CreateMessage(ctx, m))

	_, err := s.UpdateMessageStatus(ctx, m.ID, model.MessageStatusResponded, model.WithResponse)
	assert.ErrorIs(t, err, repository.ErrStale)

	require.NoError(t, s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: m.ID}))
	_, err = s.UpdateMessageStatus(ctx, m.ID, model.MessageStatusNew, model.WithoutResponse)
	assert.ErrorIs(t, err, repository.ErrStale)

	got, err := s.UpdateMessageStatus(ctx, m.ID, model.MessageStatusArchived, model.AnyResponse)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusArchived, got.Status)
	assert.True(t, got.HasResponse)

	_, err = s.UpdateMessageStatus(ctx, "missing", model.MessageStatusNew, model.WithoutResponse)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSwapRefreshTokenHash(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &model.User{ID: ids.New(), Email: "a@x.io", RefreshTokenHash: "one"}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.SwapRefreshTokenHash(ctx, u.ID, "one", "two"))
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, u.ID, "one", "three"), repository.ErrStale)
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, "missing", "two", "three"), repository.ErrNotFound)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", got.RefreshTokenHash)
}
