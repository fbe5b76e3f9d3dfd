package models

import (
	"time"

	"github.com/google/uuid"
)

var AllowedEmojis = []string{"❤️", "👍", "😂", "😮", "😢", "🎉"}

func IsAllowedEmoji(emoji string) bool {
	for _, e := range AllowedEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

type Reaction struct {
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}
