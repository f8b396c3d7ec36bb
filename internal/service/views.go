package service

import (
	"context"

	"github.com/iliyamo/peer-support/internal/model"
)

// resolver batches user and response lookups for view assembly so a
// listing costs a fixed number of store round-trips.
type resolver struct {
	users     map[string]*model.User
	responses map[string]*model.Response
}

func (m *Messaging) resolve(ctx context.Context, msgs []*model.Message, extraUsers ...string) (*resolver, error) {
	r := &resolver{users: map[string]*model.User{}, responses: map[string]*model.Response{}}

	var respIDs []string
	for _, msg := range msgs {
		if msg.Responded() {
			respIDs = append(respIDs, *msg.ResponseID)
		}
	}
	if len(respIDs) > 0 {
		sctx, cancel := m.bounded(ctx)
		resps, err := m.store().ListResponsesByIDs(sctx, respIDs)
		cancel()
		if err != nil {
			return nil, storeErr(err, "")
		}
		for _, x := range resps {
			r.responses[x.ID] = x
		}
	}

	seen := map[string]bool{}
	var userIDs []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			userIDs = append(userIDs, id)
		}
	}
	for _, msg := range msgs {
		add(msg.UserID)
	}
	for _, x := range r.responses {
		add(x.MotivatorID)
	}
	for _, id := range extraUsers {
		add(id)
	}
	if len(userIDs) > 0 {
		sctx, cancel := m.bounded(ctx)
		users, err := m.store().ListUsersByIDs(sctx, userIDs)
		cancel()
		if err != nil {
			return nil, storeErr(err, "")
		}
		for _, u := range users {
			r.users[u.ID] = u
		}
	}
	return r, nil
}

// ref resolves id to a summary, or leaves it as a bare reference when the
// account is gone.
func (r *resolver) ref(id string) model.UserRef {
	if u, ok := r.users[id]; ok {
		return model.Resolved(u.Summary())
	}
	return model.RefTo(id)
}

// responderRef omits gender; responders are shown by name and email only.
func (r *resolver) responderRef(id string) model.UserRef {
	if u, ok := r.users[id]; ok {
		s := u.Summary()
		s.Gender = ""
		return model.Resolved(s)
	}
	return model.RefTo(id)
}

func (r *resolver) message(msg *model.Message) model.MessageView {
	v := model.MessageView{
		ID:          msg.ID,
		Content:     msg.Content,
		FileURL:     msg.FileURL,
		Author:      r.ref(msg.UserID),
		Status:      msg.Status,
		HasResponse: msg.Responded(),
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
	if msg.Responded() {
		if x, ok := r.responses[*msg.ResponseID]; ok {
			rv := r.response(x)
			v.Response = &rv
		}
	}
	return v
}

func (r *resolver) response(x *model.Response) model.ResponseView {
	return model.ResponseView{
		ID:        x.ID,
		Content:   x.Content,
		FileURL:   x.FileURL,
		MessageID: x.MessageID,
		Responder: r.responderRef(x.MotivatorID),
		CreatedAt: x.CreatedAt,
	}
}
