package model

import "time"

// MessageStatus is the state of a message in the response state machine.
type MessageStatus string

const (
	MessageStatusNew       MessageStatus = "new"
	MessageStatusResponded MessageStatus = "responded"
	MessageStatusArchived  MessageStatus = "archived"
)

// Valid reports whether s is one of the known message statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusNew, MessageStatusResponded, MessageStatusArchived:
		return true
	}
	return false
}

// Message is an anonymous client post.  ResponseID is the single owning
// reference to the attached Response; HasResponse is the denormalized flag
// kept for cheap status queries.  Only the response-attach path of the
// store writes either field.
type Message struct {
	ID          string        `bson:"_id" json:"id"`
	Content     string        `bson:"content" json:"content"`
	FileURL     string        `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	UserID      string        `bson:"user_id" json:"userId"`
	Status      MessageStatus `bson:"status" json:"status"`
	HasResponse bool          `bson:"has_response" json:"hasResponse"`
	ResponseID  *string       `bson:"response" json:"responseId,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Responded reports whether a response is attached.  This is the source of
// truth; the HasResponse field is recomputed from it on read.
func (m *Message) Responded() bool { return m.ResponseID != nil && *m.ResponseID != "" }

// ResponseGuard conditions a status write on the response reference as it
// is at the moment of the write.
type ResponseGuard uint8

const (
	AnyResponse ResponseGuard = iota
	WithoutResponse
	WithResponse
)

// Allows reports whether m satisfies g.
func (g ResponseGuard) Allows(m *Message) bool {
	switch g {
	case WithoutResponse:
		return !m.Responded()
	case WithResponse:
		return m.Responded()
	}
	return true
}

// Normalize recomputes the derived flag from the response reference.
func (m *Message) Normalize() {
	m.HasResponse = m.Responded()
}

// MessageView is the caller-facing shape of a message with its author and
// response resolved.
type MessageView struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	FileURL     string        `json:"fileUrl,omitempty"`
	Author      UserRef       `json:"user"`
	Status      MessageStatus `json:"status"`
	HasResponse bool          `json:"hasResponse"`
	Response    *ResponseView `json:"response,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// MessageFilter narrows message listings.  An empty AuthorIDs slice with
// AllAuthors false matches nothing.
type MessageFilter struct {
	AllAuthors bool
	AuthorIDs  []string
}
