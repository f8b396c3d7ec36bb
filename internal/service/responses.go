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

// CreateResponseInput is a reply to one message.
type CreateResponseInput struct {
	MessageID string
	Content   string
	File      *Upload
}

// CreateResponse attaches the single response a message may carry.  The
// checks before the attach give early, specific errors; the attach itself
// is the store's conditional write, so of any number of concurrent calls
// for one message exactly one succeeds and the rest get Conflict.
func (m *Messaging) CreateResponse(ctx context.Context, actor *model.User, in CreateResponseInput) (*model.ResponseView, error) {
	if err := authorize(actor, model.RoleMotivator, model.RoleAdmin); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	messageID := strings.TrimSpace(in.MessageID)
	if content == "" {
		return nil, newErr(Validation, "content is required")
	}
	if messageID == "" {
		return nil, newErr(Validation, "messageId is required")
	}

	sctx, cancel := m.bounded(ctx)
	msg, err := m.store().GetMessage(sctx, messageID)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, wrapErr(Validation, "message not found", err)
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	if msg.Responded() {
		m.deps.Metrics.ResponseConflict()
		return nil, newErr(Conflict, "message already has a response")
	}
	if actor.Role == model.RoleMotivator {
		sctx, cancel := m.bounded(ctx)
		author, err := m.store().GetUserByID(sctx, msg.UserID)
		cancel()
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err, "")
		}
		if !genderMatch(actor, author) {
			return nil, newErr(Forbidden, "you can only respond to messages from users of your gender")
		}
	}

	var fileURL string
	if in.File != nil {
		url, err := m.put(ctx, folderResponses, in.File)
		if err != nil {
			return nil, err
		}
		fileURL = url
	}

	now := time.Now().UTC()
	resp := &model.Response{
		ID:          ids.New(),
		Content:     content,
		FileURL:     fileURL,
		MessageID:   messageID,
		MotivatorID: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sctx, cancel = m.bounded(ctx)
	err = m.store().AttachResponse(sctx, resp)
	cancel()
	if err != nil {
		m.discard(fileURL)
		switch {
		case errors.Is(err, repository.ErrConflict):
			m.deps.Metrics.ResponseConflict()
			m.log().Info("response attach lost race", "message_id", messageID, "by", actor.ID)
			return nil, wrapErr(Conflict, "message already has a response", err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, wrapErr(Validation, "message not found", err)
		}
		return nil, storeErr(err, "")
	}

	m.deps.Metrics.ResponseCreated(string(actor.Role))
	m.log().Info("response attached", "message_id", messageID, "response_id", resp.ID, "by", actor.ID)
	m.emit(ctx, queue.Event{Type: queue.EventResponseCreated, ActorID: actor.ID, SubjectID: resp.ID,
		MessageID: messageID, Role: string(actor.Role)})

	r := &resolver{users: map[string]*model.User{actor.ID: actor}}
	v := r.response(resp)
	return &v, nil
}

// GetResponse returns one response if actor may see its parent message.
func (m *Messaging) GetResponse(ctx context.Context, actor *model.User, id string) (*model.ResponseView, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	sctx, cancel := m.bounded(ctx)
	resp, err := m.store().GetResponse(sctx, id)
	cancel()
	if err != nil {
		return nil, storeErr(err, "response not found")
	}

	msg, r, err := m.visibleMessage(ctx, actor, resp.MessageID)
	if err != nil {
		if IsKind(err, NotFound) {
			return nil, newErr(NotFound, "response not found")
		}
		if IsKind(err, Forbidden) {
			return nil, newErr(Forbidden, "you do not have permission to view this response")
		}
		return nil, err
	}
	if _, ok := r.users[resp.MotivatorID]; !ok {
		r, err = m.resolve(ctx, []*model.Message{msg}, resp.MotivatorID)
		if err != nil {
			return nil, err
		}
	}
	v := r.response(resp)
	mv := r.message(msg)
	mv.Response = nil
	v.Message = &mv
	return &v, nil
}

// ListResponses is the "my responses" view.  Motivators get the responses
// they wrote.  Admins get every response, or only their own when the
// service is configured with the narrower admin scope.
func (m *Messaging) ListResponses(ctx context.Context, actor *model.User) ([]model.ResponseView, error) {
	if err := authorize(actor, model.RoleMotivator, model.RoleAdmin); err != nil {
		return nil, err
	}
	author := actor.ID
	if actor.Role == model.RoleAdmin && m.adminAll {
		author = ""
	}

	sctx, cancel := m.bounded(ctx)
	resps, err := m.store().ListResponses(sctx, author)
	cancel()
	if err != nil {
		return nil, storeErr(err, "")
	}

	msgs := make([]*model.Message, 0, len(resps))
	byID := make(map[string]*model.Message, len(resps))
	for _, x := range resps {
		sctx, cancel := m.bounded(ctx)
		msg, err := m.store().GetMessage(sctx, x.MessageID)
		cancel()
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "")
		}
		msgs = append(msgs, msg)
		byID[msg.ID] = msg
	}
	extra := make([]string, 0, len(resps))
	for _, x := range resps {
		extra = append(extra, x.MotivatorID)
	}
	r, err := m.resolve(ctx, msgs, extra...)
	if err != nil {
		return nil, err
	}

	out := make([]model.ResponseView, 0, len(resps))
	for _, x := range resps {
		v := r.response(x)
		if msg, ok := byID[x.MessageID]; ok {
			mv := r.message(msg)
			mv.Response = nil
			v.Message = &mv
		}
		out = append(out, v)
	}
	return out, nil
}
