package models

import "time"

type BlockedUser struct {
	User      UserSummary `json:"user"`
	BlockedAt time.Time   `json:"blocked_at"`
}
