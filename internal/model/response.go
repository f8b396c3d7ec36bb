package model

import "time"

// Response is a motivator's or admin's single reply to one message.
// Responses are never mutated after creation.
type Response struct {
	ID          string    `bson:"_id" json:"id"`
	Content     string    `bson:"content" json:"content"`
	FileURL     string    `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	MessageID   string    `bson:"message_id" json:"messageId"`
	MotivatorID string    `bson:"motivator_id" json:"motivatorId"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// ResponseView is the caller-facing shape of a response with the responder
// resolved.  Message is populated on listings so the caller can see what
// was answered.
type ResponseView struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	FileURL   string       `json:"fileUrl,omitempty"`
	MessageID string       `json:"messageId"`
	Responder UserRef      `json:"motivator"`
	Message   *MessageView `json:"message,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
