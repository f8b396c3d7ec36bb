package repository

import (
	"context"

	"github.com/iliyamo/peer-support/internal/model"
)

// UserStore persists accounts.  Emails are compared case-insensitively;
// implementations store them lower-cased.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, f model.UserFilter) ([]*model.User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserPhoto(ctx context.Context, id, url string) error
	// SetRefreshTokenHash overwrites the single refresh-token slot.  An
	// empty hash clears it (logout).
	SetRefreshTokenHash(ctx context.Context, id, hash string) error
	// SwapRefreshTokenHash replaces the slot with next only while it still
	// holds expected.  It returns ErrStale when the slot moved on.
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error
	DeleteUser(ctx context.Context, id string) error
}

// MessageStore persists client messages.  Listings are newest first.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, f model.MessageFilter) ([]*model.Message, error)
	// UpdateMessageStatus writes status only if guard holds at write time
	// and returns ErrStale otherwise.
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, guard model.ResponseGuard) (*model.Message, error)
}

// ResponseStore persists responses.
type ResponseStore interface {
	// AttachResponse is the only write path that binds a response to a
	// message.  It stores r and sets the message's response reference,
	// has-response flag and status=responded as one unit, and only if the
	// message has no response yet.  It returns ErrNotFound when the message
	// is absent and ErrConflict when another response won.
	AttachResponse(ctx context.Context, r *model.Response) error
	GetResponse(ctx context.Context, id string) (*model.Response, error)
	ListResponsesByIDs(ctx context.Context, ids []string) ([]*model.Response, error)
	// ListResponses returns responses authored by motivatorID, or all
	// responses when motivatorID is empty.
	ListResponses(ctx context.Context, motivatorID string) ([]*model.Response, error)
}

// Store bundles the three stores a backend provides.
type Store interface {
	UserStore
	MessageStore
	ResponseStore
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
