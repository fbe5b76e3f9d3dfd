package models

import (
	"time"

	"github.com/google/uuid"
)

type LetterStatus string

const (
	LetterStatusScheduled LetterStatus = "scheduled"
	LetterStatusDelivered LetterStatus = "delivered"
)

type Letter struct {
	ID          uuid.UUID    `json:"id"`
	SenderID    uuid.UUID    `json:"sender_id"`
	RecipientID uuid.UUID    `json:"recipient_id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Status      LetterStatus `json:"status"`
	DeliverAt   time.Time    `json:"deliver_at"`
	DeliveredAt *time.Time   `json:"delivered_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

type LetterWithUser struct {
	Letter
	Counterpart UserSummary `json:"user"`
}

type ScheduleLetterParams struct {
	RecipientID       uuid.UUID `json:"recipient_id" validate:"required"`
	Title             string    `json:"title" validate:"required,max=100"`
	Content           string    `json:"content" validate:"required,max=5000"`
	DaysUntilDelivery int       `json:"days_until_delivery" validate:"min=1,max=30"`
}
