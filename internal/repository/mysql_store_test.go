package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-support/internal/model"
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(db), mock
}

var messageCols = []string{"id", "content", "file_url", "user_id", "status", "has_response",
	"response_id", "created_at", "updated_at"}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"})

	u := &model.User{ID: "01J", Email: " Jane@Example.com"}
	err := s.CreateUser(context.Background(), u)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserStatusUnknownID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status=?")).
		WithArgs("inactive", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.UpdateUserStatus(context.Background(), "missing", model.UserStatusInactive)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachResponseCommits(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	r := &model.Response{ID: "r1", Content: "hi", MessageID: "m1", MotivatorID: "u2", CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET response_id=?")).
		WithArgs("r1", "responded", sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responses")).
		WithArgs("r1", "hi", "", "m1", "u2", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.AttachResponse(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachResponseLostRace(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET response_id=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM messages WHERE id=?")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	err := s.AttachResponse(context.Background(), &model.Response{ID: "r2", MessageID: "m1"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachResponseMissingMessage(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET response_id=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM messages WHERE id=?")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.AttachResponse(context.Background(), &model.Response{ID: "r2", MessageID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachResponseUniqueKeyBackstop(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET response_id=?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responses")).
		WillReturnError(&mysql.MySQLError{Number: mysqlDuplicateEntry})
	mock.ExpectRollback()

	err := s.AttachResponse(context.Background(), &model.Response{ID: "r3", MessageID: "m1"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesScopes(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	// No authors and not unrestricted: nothing is queried.
	none, err := s.ListMessages(ctx, model.MessageFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE user_id IN (?,?) ORDER BY id DESC")).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m2", "later", "", "b", "responded", false, "r1", now, now).
			AddRow("m1", "first", "", "a", "new", false, nil, now, now))

	got, err := s.ListMessages(ctx, model.MessageFilter{AuthorIDs: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].ResponseID)
	assert.True(t, got[0].HasResponse, "flag derived from the response reference")
	assert.Nil(t, got[1].ResponseID)
	assert.False(t, got[1].HasResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageStatusGuardedStale(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET status=?, updated_at=? WHERE id=? AND response_id IS NULL")).
		WithArgs("new", sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM messages WHERE id=?")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	_, err := s.UpdateMessageStatus(context.Background(), "m1", model.MessageStatusNew, model.WithoutResponse)
	assert.ErrorIs(t, err, ErrStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageStatusGuardedWrite(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id=? AND response_id IS NOT NULL")).
		WithArgs("responded", sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE id=?")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "hi", "", "a", "responded", true, "r1", now, now))

	got, err := s.UpdateMessageStatus(context.Background(), "m1", model.MessageStatusResponded, model.WithResponse)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusResponded, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRefreshTokenHash(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	swap := regexp.QuoteMeta("UPDATE users SET refresh_token_hash=? WHERE id=? AND refresh_token_hash=?")

	mock.ExpectExec(swap).WithArgs("next", "u1", "cur").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SwapRefreshTokenHash(ctx, "u1", "cur", "next"))

	mock.ExpectExec(swap).WithArgs("again", "u1", "cur").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE id=?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, "u1", "cur", "again"), ErrStale)

	mock.ExpectExec(swap).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE id=?")).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, s.SwapRefreshTokenHash(ctx, "gone", "cur", "x"), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
