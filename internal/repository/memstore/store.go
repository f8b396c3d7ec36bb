// Package memstore is an in-process implementation of repository.Store.
// It backs the test suites and STORE_DRIVER=memory for local development.
// A single mutex serializes all writes, which also makes AttachResponse
// trivially atomic.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
)

// Store keeps every collection in maps guarded by one RWMutex.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*model.User
	emails    map[string]string // lower-cased email -> user id
	messages  map[string]*model.Message
	responses map[string]*model.Response
	byMessage map[string]string // message id -> response id (unique index)
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]*model.User),
		emails:    make(map[string]string),
		messages:  make(map[string]*model.Message),
		responses: make(map[string]*model.Response),
		byMessage: make(map[string]string),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func copyMessage(m *model.Message) *model.Message {
	c := *m
	if m.ResponseID != nil {
		id := *m.ResponseID
		c.ResponseID = &id
	}
	c.Normalize()
	return &c
}

func copyResponse(r *model.Response) *model.Response {
	c := *r
	return &c
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = normEmail(u.Email)
	if _, ok := s.emails[u.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[u.ID] = copyUser(u)
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *Store) ListUsers(ctx context.Context, f model.UserFilter) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.User{}
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Gender != "" && u.Gender != f.Gender {
			continue
		}
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	return s.mutateUser(ctx, id, func(u *model.User) error {
		u.Status = status
		return nil
	})
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	return s.mutateUser(ctx, id, func(u *model.User) error {
		if upd.Email != nil {
			e := normEmail(*upd.Email)
			if owner, ok := s.emails[e]; ok && owner != id {
				return repository.ErrEmailExists
			}
			delete(s.emails, u.Email)
			u.Email = e
			s.emails[e] = id
		}
		if upd.FullName != nil {
			u.FullName = *upd.FullName
		}
		if upd.Bio != nil {
			u.Bio = *upd.Bio
		}
		if upd.Specialities != nil {
			u.Specialities = *upd.Specialities
		}
		return nil
	})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	_, err := s.mutateUser(ctx, id, func(u *model.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (s *Store) UpdateUserPhoto(ctx context.Context, id, url string) error {
	_, err := s.mutateUser(ctx, id, func(u *model.User) error {
		u.ProfilePhoto = url
		return nil
	})
	return err
}

func (s *Store) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	_, err := s.mutateUser(ctx, id, func(u *model.User) error {
		u.RefreshTokenHash = hash
		return nil
	})
	return err
}

func (s *Store) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error {
	_, err := s.mutateUser(ctx, id, func(u *model.User) error {
		if u.RefreshTokenHash != expected {
			return repository.ErrStale
		}
		u.RefreshTokenHash = next
		return nil
	})
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.emails, u.Email)
	delete(s.users, id)
	return nil
}

func (s *Store) mutateUser(ctx context.Context, id string, fn func(*model.User) error) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := copyUser(u)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.users[id] = next
	return copyUser(next), nil
}

// ---- messages ----

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = copyMessage(m)
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyMessage(m), nil
}

func (s *Store) ListMessages(ctx context.Context, f model.MessageFilter) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	authors := make(map[string]struct{}, len(f.AuthorIDs))
	for _, id := range f.AuthorIDs {
		authors[id] = struct{}{}
	}
	out := []*model.Message{}
	for _, m := range s.messages {
		if !f.AllAuthors {
			if _, ok := authors[m.UserID]; !ok {
				continue
			}
		}
		out = append(out, copyMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, guard model.ResponseGuard) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !guard.Allows(m) {
		return nil, repository.ErrStale
	}
	next := copyMessage(m)
	next.Status = status
	next.UpdatedAt = time.Now().UTC()
	s.messages[id] = next
	return copyMessage(next), nil
}

// ---- responses ----

func (s *Store) AttachResponse(ctx context.Context, r *model.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[r.MessageID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.Responded() {
		return repository.ErrConflict
	}
	if _, taken := s.byMessage[r.MessageID]; taken {
		return repository.ErrConflict
	}
	s.responses[r.ID] = copyResponse(r)
	s.byMessage[r.MessageID] = r.ID

	next := copyMessage(m)
	id := r.ID
	next.ResponseID = &id
	next.HasResponse = true
	next.Status = model.MessageStatusResponded
	next.UpdatedAt = time.Now().UTC()
	s.messages[m.ID] = next
	return nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyResponse(r), nil
}

func (s *Store) ListResponsesByIDs(ctx context.Context, ids []string) ([]*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Response, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.responses[id]; ok {
			out = append(out, copyResponse(r))
		}
	}
	return out, nil
}

func (s *Store) ListResponses(ctx context.Context, motivatorID string) ([]*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.Response{}
	for _, r := range s.responses {
		if motivatorID != "" && r.MotivatorID != motivatorID {
			continue
		}
		out = append(out, copyResponse(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
