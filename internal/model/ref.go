package model

import "encoding/json"

// UserSummary is the public identity attached to messages and responses.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Gender   Gender `json:"gender,omitempty"`
}

// UserRef is a reference to a user that is either unresolved (only the id
// is known) or resolved (the public summary has been loaded).  Services
// always resolve before returning to callers; a reference whose target was
// deleted stays unresolved and serializes as {"id": "..."}.
type UserRef struct {
	id      string
	summary *UserSummary
}

// RefTo returns an unresolved reference.
func RefTo(id string) UserRef { return UserRef{id: id} }

// Resolved returns a resolved reference.
func Resolved(s UserSummary) UserRef { return UserRef{id: s.ID, summary: &s} }

// ID returns the referenced id regardless of resolution state.
func (r UserRef) ID() string { return r.id }

// Summary returns the resolved summary, if any.
func (r UserRef) Summary() (UserSummary, bool) {
	if r.summary == nil {
		return UserSummary{}, false
	}
	return *r.summary, true
}

// IsResolved reports whether the summary is available.
func (r UserRef) IsResolved() bool { return r.summary != nil }

// MarshalJSON emits the summary when resolved and a bare id object otherwise.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.summary != nil {
		return json.Marshal(r.summary)
	}
	return json.Marshal(struct {
		ID string `json:"id"`
	}{ID: r.id})
}
