package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationFriendRequestSent       NotificationType = "friend_request_sent"
	NotificationFriendRequestAccepted   NotificationType = "friend_request_accepted"
	NotificationFriendRequestRejected   NotificationType = "friend_request_rejected"
	NotificationFriendRemoved           NotificationType = "friend_removed"
	NotificationCommunityJoinRequest    NotificationType = "community_join_request"
	NotificationPostReaction            NotificationType = "post_reaction"
	NotificationPostCommented           NotificationType = "post_commented"
	NotificationCommentReplied          NotificationType = "comment_replied"
	NotificationDiscussionThreadReplied NotificationType = "discussion_thread_replied"
	NotificationLetterScheduled         NotificationType = "letter_scheduled"
	NotificationGiftReceived            NotificationType = "gift_received"
	NotificationConversationDeleted     NotificationType = "conversation_deleted"
	NotificationUserBlocked             NotificationType = "user_blocked"
)

// Collapsible types keep at most one unread row per (recipient, actor, subject).
func (t NotificationType) Collapsible() bool {
	return t == NotificationPostReaction
}

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	ActorID     *uuid.UUID       `json:"actor_id,omitempty"`
	Type        NotificationType `json:"type"`
	SubjectRef  *string          `json:"subject_ref,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

type NotificationWithActor struct {
	Notification
	Actor *UserSummary `json:"actor,omitempty"`
}
