package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID                 string     `json:"id"`
	UserA              uuid.UUID  `json:"user_a"`
	UserB              uuid.UUID  `json:"user_b"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Other returns the participant that is not viewer.
func (c *Conversation) Other(viewer uuid.UUID) uuid.UUID {
	if c.UserA == viewer {
		return c.UserB
	}
	return c.UserA
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	return c.UserA == id || c.UserB == id
}

type ConversationSummary struct {
	ID                 string      `json:"id"`
	Other              UserSummary `json:"other"`
	LastMessageAt      *time.Time  `json:"last_message_at,omitempty"`
	LastMessagePreview *string     `json:"last_message_preview,omitempty"`
	HasUnread          bool        `json:"has_unread"`
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Content        *string    `json:"content,omitempty"`
	ImageRef       *string    `json:"-"`
	ReplyParentID  *uuid.UUID `json:"reply_parent_id,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ReplyPreview summarises the parent of a reply. Unavailable is set when the
// parent has since been deleted.
type ReplyPreview struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    *uuid.UUID `json:"sender_id,omitempty"`
	Content     *string    `json:"content,omitempty"`
	HasImage    bool       `json:"has_image"`
	Unavailable bool       `json:"unavailable"`
}

type MessageView struct {
	Message
	Sender   UserSummary   `json:"sender"`
	ImageURL string        `json:"image_url,omitempty"`
	Reply    *ReplyPreview `json:"reply,omitempty"`
}

type SendMessageParams struct {
	RecipientID   uuid.UUID  `json:"recipient_id" validate:"required"`
	Content       *string    `json:"content,omitempty"`
	ImageRef      *string    `json:"image_ref,omitempty"`
	ReplyParentID *uuid.UUID `json:"reply_parent_id,omitempty"`
}

// TimelineEntry is either a date separator or a message in a rendered thread.
type TimelineEntry struct {
	Separator *time.Time   `json:"separator,omitempty"`
	Message   *MessageView `json:"message,omitempty"`
}
