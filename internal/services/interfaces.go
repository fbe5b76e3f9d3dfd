package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
)

// Notifier records notifications inside a caller's transaction and delivers
// them once that transaction has committed.
type Notifier interface {
	Record(ctx context.Context, q DBConn, p EmitParams) (*models.Notification, error)
	Dispatch(n *models.Notification)
}

// UserServiceInterface defines the contract for user operations used by handlers.
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*models.UserSummary, error)
	RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// FriendServiceInterface defines the contract for friend operations.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	RespondRequest(ctx context.Context, actorID, requestID uuid.UUID, accept bool) (*models.FriendRequest, error)
	CancelRequest(ctx context.Context, actorID, requestID uuid.UUID) error
	Unfriend(ctx context.Context, actorID, otherID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.Friend], error)
	ListIncomingRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error)
	ListSentRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error)
	IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

// BlockServiceInterface defines the contract for block operations.
type BlockServiceInterface interface {
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error)
}

// CommunityServiceInterface defines the contract for community membership operations.
type CommunityServiceInterface interface {
	CreateCommunity(ctx context.Context, creatorID uuid.UUID, params models.CreateCommunityParams) (*models.Community, error)
	GetCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error)
	RequestToJoin(ctx context.Context, userID, communityID uuid.UUID, params models.JoinCommunityParams) (*models.CommunityMembership, error)
	AcceptJoin(ctx context.Context, actorID, membershipID uuid.UUID) (*models.CommunityMembership, error)
	RejectJoin(ctx context.Context, actorID, membershipID uuid.UUID) error
	Leave(ctx context.Context, actorID, communityID uuid.UUID) error
	DeleteCommunity(ctx context.Context, actorID, communityID uuid.UUID) error
	ListMembers(ctx context.Context, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error)
	ListJoinRequests(ctx context.Context, actorID, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error)
}

// MessageServiceInterface defines the contract for conversation operations.
type MessageServiceInterface interface {
	SendMessage(ctx context.Context, senderID uuid.UUID, params models.SendMessageParams) (*models.MessageView, error)
	ListMessages(ctx context.Context, viewerID uuid.UUID, conversationID string, req pagination.Request) (pagination.Page[models.MessageView], error)
	ListReplies(ctx context.Context, viewerID uuid.UUID, conversationID string, parentID uuid.UUID, req pagination.Request) (pagination.Page[models.MessageView], error)
	MarkRead(ctx context.Context, viewerID, messageID uuid.UUID) (*models.Message, error)
	ListConversations(ctx context.Context, viewerID uuid.UUID, req pagination.Request) (pagination.Page[models.ConversationSummary], error)
	DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error
	DeleteConversation(ctx context.Context, actorID uuid.UUID, conversationID string) error
	SeparatorGap() time.Duration
}

// LetterServiceInterface defines the contract for scheduled letter operations.
type LetterServiceInterface interface {
	ScheduleLetter(ctx context.Context, senderID uuid.UUID, params models.ScheduleLetterParams) (*models.Letter, error)
	ListInbox(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.LetterWithUser], error)
	ListSent(ctx context.Context, senderID uuid.UUID, status *models.LetterStatus, req pagination.Request) (pagination.Page[models.LetterWithUser], error)
	CountOnTheWay(ctx context.Context, recipientID uuid.UUID) (int, error)
	GetLetter(ctx context.Context, viewerID, letterID uuid.UUID) (*models.Letter, error)
	DeleteLetter(ctx context.Context, actorID, letterID uuid.UUID) error
}

// NotificationServiceInterface defines the contract for notification operations.
type NotificationServiceInterface interface {
	List(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.NotificationWithActor], error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteAll(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// ReactionServiceInterface defines the contract for post reactions.
type ReactionServiceInterface interface {
	AddReaction(ctx context.Context, userID, postID uuid.UUID, emoji string) (*models.Reaction, error)
	RemoveReaction(ctx context.Context, userID, postID uuid.UUID) error
}
