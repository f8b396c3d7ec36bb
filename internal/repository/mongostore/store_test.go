package mongostore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-support/internal/ids"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

// testStore connects to MONGO_TEST_URI and uses a throwaway database.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, uri, "peer_support_test_"+ids.New())
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := &model.User{ID: ids.New(), FullName: "Ann", Email: "Ann@X.io", Role: model.RoleClient,
		Status: model.UserStatusActive, Gender: model.GenderFemale, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{ID: ids.New(), Email: "ann@x.io"}), repository.ErrEmailExists)

	got, err := s.GetUserByEmail(ctx, "ANN@x.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	upd, err := s.UpdateUserStatus(ctx, u.ID, model.UserStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusInactive, upd.Status)

	require.NoError(t, s.SetRefreshTokenHash(ctx, u.ID, "abc"))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.RefreshTokenHash)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), repository.ErrNotFound)
}

func TestAttachResponseOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	m := &model.Message{ID: ids.New(), Content: "hello", UserID: "c1", Status: model.MessageStatusNew}
	require.NoError(t, s.CreateMessage(ctx, m))

	const n = 16
	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: m.ID, MotivatorID: "m1"})
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

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.HasResponse)
	assert.Equal(t, model.MessageStatusResponded, got.Status)

	all, err := s.ListResponses(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, *got.ResponseID, all[0].ID)

	err = s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListMessagesNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	first := &model.Message{ID: ids.New(), UserID: "a", Status: model.MessageStatusNew}
	second := &model.Message{ID: ids.New(), UserID: "a", Status: model.MessageStatusNew}
	other := &model.Message{ID: ids.New(), UserID: "b", Status: model.MessageStatusNew}
	for _, m := range []*model.Message{first, second, other} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	got, err := s.ListMessages(ctx, model.MessageFilter{AuthorIDs: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.False(t, got[0].HasResponse)
}

func TestGuardedWrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	m := &model.Message{ID: ids.New(), UserID: "c1", Status: model.MessageStatusNew}
	require.NoError(t, s.CreateMessage(ctx, m))
	require.NoError(t, s.AttachResponse(ctx, &model.Response{ID: ids.New(), MessageID: m.ID}))

	_, err := s.UpdateMessageStatus(ctx, m.ID, model.MessageStatusNew, model.WithoutResponse)
	assert.ErrorIs(t, err, repository.ErrStale)
	got, err := s.UpdateMessageStatus(ctx, m.ID, model.MessageStatusArchived, model.WithResponse)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusArchived, got.Status)

	u := &model.User{ID: ids.New(), Email: ids.New() + "@x.io"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SwapRefreshTokenHash(ctx, u.ID, "", "one"))
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, u.ID, "stale", "two"), repository.ErrStale)
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, "missing", "one", "two"), repository.ErrNotFound)
}
