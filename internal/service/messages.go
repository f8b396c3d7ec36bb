package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/peer-support/internal/ids"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/queue"
	"github.com/iliyamo/peer-support/internal/repository"
)

// Messaging is the message/response state machine.  A message moves from
// new to responded when a response is attached, and may be archived from
// either state by an explicit status edit.  A response, once attached, is
// never detached.
type Messaging struct {
	*base
	strict   bool
	adminAll bool
}

// CreateMessageInput is a new client post.
type CreateMessageInput struct {
	Content string
	File    *Upload
}

// CreateMessage stores a client's post with status new.
func (m *Messaging) CreateMessage(ctx context.Context, actor *model.User, in CreateMessageInput) (*model.MessageView, error) {
	if err := authorize(actor, model.RoleClient); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, newErr(Validation, "content is required")
	}

	var fileURL string
	if in.File != nil {
		url, err := m.put(ctx, folderMessages, in.File)
		if err != nil {
			return nil, err
		}
		fileURL = url
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:        ids.New(),
		Content:   content,
		FileURL:   fileURL,
		UserID:    actor.ID,
		Status:    model.MessageStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sctx, cancel := m.bounded(ctx)
	err := m.store().CreateMessage(sctx, msg)
	cancel()
	if err != nil {
		m.discard(fileURL)
		return nil, storeErr(err, "")
	}

	m.deps.Metrics.MessageCreated()
	m.emit(ctx, queue.Event{Type: queue.EventMessageCreated, ActorID: actor.ID, SubjectID: msg.ID,
		Status: string(msg.Status)})

	r := &resolver{users: map[string]*model.User{actor.ID: actor}}
	v := r.message(msg)
	return &v, nil
}

// ListMessages returns the messages actor may see, newest first: a
// client's own, a motivator's gender-matched queue, or everything for an
// admin.
func (m *Messaging) ListMessages(ctx context.Context, actor *model.User) ([]model.MessageView, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	f, err := m.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	sctx, cancel := m.bounded(ctx)
	msgs, err := m.store().ListMessages(sctx, f)
	cancel()
	if err != nil {
		return nil, storeErr(err, "")
	}
	if actor.Role == model.RoleMotivator {
		kept := msgs[:0]
		for _, msg := range msgs {
			if motivatorListable(msg) {
				kept = append(kept, msg)
			}
		}
		msgs = kept
	}

	r, err := m.resolve(ctx, msgs)
	if err != nil {
		return nil, err
	}
	out := make([]model.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, r.message(msg))
	}
	return out, nil
}

// scope turns the visibility rule into a store filter.
func (m *Messaging) scope(ctx context.Context, actor *model.User) (model.MessageFilter, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return model.MessageFilter{AllAuthors: true}, nil
	case model.RoleClient:
		return model.MessageFilter{AuthorIDs: []string{actor.ID}}, nil
	case model.RoleMotivator:
		if actor.Gender == "" {
			return model.MessageFilter{}, nil
		}
		sctx, cancel := m.bounded(ctx)
		defer cancel()
		clients, err := m.store().ListUsers(sctx, model.UserFilter{Role: model.RoleClient, Gender: actor.Gender})
		if err != nil {
			return model.MessageFilter{}, storeErr(err, "")
		}
		f := model.MessageFilter{AuthorIDs: make([]string, 0, len(clients))}
		for _, c := range clients {
			f.AuthorIDs = append(f.AuthorIDs, c.ID)
		}
		return f, nil
	}
	return model.MessageFilter{}, newErr(Forbidden, "you do not have permission to view messages")
}

// GetMessage returns one message if actor may see it.
func (m *Messaging) GetMessage(ctx context.Context, actor *model.User, id string) (*model.MessageView, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	msg, r, err := m.visibleMessage(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	v := r.message(msg)
	return &v, nil
}

// visibleMessage loads a message with its references resolved and applies
// the per-message visibility rule.
func (m *Messaging) visibleMessage(ctx context.Context, actor *model.User, id string) (*model.Message, *resolver, error) {
	sctx, cancel := m.bounded(ctx)
	msg, err := m.store().GetMessage(sctx, id)
	cancel()
	if err != nil {
		return nil, nil, storeErr(err, "message not found")
	}
	r, err := m.resolve(ctx, []*model.Message{msg})
	if err != nil {
		return nil, nil, err
	}
	if !canViewMessage(actor, msg, r.users[msg.UserID]) {
		return nil, nil, newErr(Forbidden, "you do not have permission to view this message")
	}
	return msg, r, nil
}

// UpdateMessageStatus edits the status directly.  Admins and motivators
// only; a motivator must be able to see the message.  In strict mode the
// new status must agree with the attached-response state: "new" is
// refused once a response exists and "responded" is refused before one.
func (m *Messaging) UpdateMessageStatus(ctx context.Context, actor *model.User, id string, status model.MessageStatus) (*model.MessageView, error) {
	if err := authorize(actor, model.RoleAdmin, model.RoleMotivator); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, newErr(Validation, "status must be one of: new, responded, archived")
	}
	msg, r, err := m.visibleMessage(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	guard := model.AnyResponse
	if m.strict {
		switch status {
		case model.MessageStatusNew:
			guard = model.WithoutResponse
		case model.MessageStatusResponded:
			guard = model.WithResponse
		}
	}
	// The store re-checks the guard at write time.
	if !guard.Allows(msg) {
		return nil, newErr(Validation, guardMsg(guard))
	}

	sctx, cancel := m.bounded(ctx)
	updated, err := m.store().UpdateMessageStatus(sctx, id, status, guard)
	cancel()
	if errors.Is(err, repository.ErrStale) {
		return nil, wrapErr(Validation, guardMsg(guard), err)
	}
	if err != nil {
		return nil, storeErr(err, "message not found")
	}
	m.log().Info("message status changed", "message_id", id, "from", msg.Status, "to", status, "by", actor.ID)
	m.emit(ctx, queue.Event{Type: queue.EventMessageStatus, ActorID: actor.ID, SubjectID: id, Status: string(status)})

	v := r.message(updated)
	return &v, nil
}

func guardMsg(g model.ResponseGuard) string {
	if g == model.WithResponse {
		return "message has no response yet"
	}
	return "message already has a response and cannot be new"
}
