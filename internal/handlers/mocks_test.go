package handlers

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
	"github.com/HammerMeetNail/penpals/internal/realtime"
)

type mockUserService struct {
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetSummaryFunc     func(ctx context.Context, id uuid.UUID) (*models.UserSummary, error)
	RegisterDeviceFunc func(ctx context.Context, userID uuid.UUID, token string) error
	ExistsFunc         func(ctx context.Context, id uuid.UUID) (bool, error)
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetSummary(ctx context.Context, id uuid.UUID) (*models.UserSummary, error) {
	if m.GetSummaryFunc != nil {
		return m.GetSummaryFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	if m.RegisterDeviceFunc != nil {
		return m.RegisterDeviceFunc(ctx, userID, token)
	}
	return nil
}

func (m *mockUserService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return true, nil
}

type mockFriendService struct {
	SendRequestFunc          func(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	RespondRequestFunc       func(ctx context.Context, actorID, requestID uuid.UUID, accept bool) (*models.FriendRequest, error)
	CancelRequestFunc        func(ctx context.Context, actorID, requestID uuid.UUID) error
	UnfriendFunc             func(ctx context.Context, actorID, otherID uuid.UUID) error
	ListFriendsFunc          func(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.Friend], error)
	ListIncomingRequestsFunc func(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error)
	ListSentRequestsFunc     func(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error)
	IsFriendFunc             func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

func (m *mockFriendService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, senderID, receiverID)
	}
	return nil, nil
}

func (m *mockFriendService) RespondRequest(ctx context.Context, actorID, requestID uuid.UUID, accept bool) (*models.FriendRequest, error) {
	if m.RespondRequestFunc != nil {
		return m.RespondRequestFunc(ctx, actorID, requestID, accept)
	}
	return nil, nil
}

func (m *mockFriendService) CancelRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, actorID, requestID)
	}
	return nil
}

func (m *mockFriendService) Unfriend(ctx context.Context, actorID, otherID uuid.UUID) error {
	if m.UnfriendFunc != nil {
		return m.UnfriendFunc(ctx, actorID, otherID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.Friend], error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID, req)
	}
	return pagination.Page[models.Friend]{IsDone: true}, nil
}

func (m *mockFriendService) ListIncomingRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error) {
	if m.ListIncomingRequestsFunc != nil {
		return m.ListIncomingRequestsFunc(ctx, userID, req)
	}
	return pagination.Page[models.FriendRequestWithUser]{IsDone: true}, nil
}

func (m *mockFriendService) ListSentRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error) {
	if m.ListSentRequestsFunc != nil {
		return m.ListSentRequestsFunc(ctx, userID, req)
	}
	return pagination.Page[models.FriendRequestWithUser]{IsDone: true}, nil
}

func (m *mockFriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.IsFriendFunc != nil {
		return m.IsFriendFunc(ctx, userID, otherUserID)
	}
	return false, nil
}

type mockBlockService struct {
	BlockFunc       func(ctx context.Context, blockerID, blockedID uuid.UUID) error
	UnblockFunc     func(ctx context.Context, blockerID, blockedID uuid.UUID) error
	IsBlockedFunc   func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListBlockedFunc func(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error)
}

func (m *mockBlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, blockerID, blockedID)
	}
	return nil
}

func (m *mockBlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, blockerID, blockedID)
	}
	return nil
}

func (m *mockBlockService) IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, userID, otherUserID)
	}
	return false, nil
}

func (m *mockBlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error) {
	if m.ListBlockedFunc != nil {
		return m.ListBlockedFunc(ctx, blockerID)
	}
	return []models.BlockedUser{}, nil
}

type mockCommunityService struct {
	CreateCommunityFunc  func(ctx context.Context, creatorID uuid.UUID, params models.CreateCommunityParams) (*models.Community, error)
	GetCommunityFunc     func(ctx context.Context, communityID uuid.UUID) (*models.Community, error)
	RequestToJoinFunc    func(ctx context.Context, userID, communityID uuid.UUID, params models.JoinCommunityParams) (*models.CommunityMembership, error)
	AcceptJoinFunc       func(ctx context.Context, actorID, membershipID uuid.UUID) (*models.CommunityMembership, error)
	RejectJoinFunc       func(ctx context.Context, actorID, membershipID uuid.UUID) error
	LeaveFunc            func(ctx context.Context, actorID, communityID uuid.UUID) error
	DeleteCommunityFunc  func(ctx context.Context, actorID, communityID uuid.UUID) error
	ListMembersFunc      func(ctx context.Context, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error)
	ListJoinRequestsFunc func(ctx context.Context, actorID, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error)
}

func (m *mockCommunityService) CreateCommunity(ctx context.Context, creatorID uuid.UUID, params models.CreateCommunityParams) (*models.Community, error) {
	if m.CreateCommunityFunc != nil {
		return m.CreateCommunityFunc(ctx, creatorID, params)
	}
	return nil, nil
}

func (m *mockCommunityService) GetCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	if m.GetCommunityFunc != nil {
		return m.GetCommunityFunc(ctx, communityID)
	}
	return nil, nil
}

func (m *mockCommunityService) RequestToJoin(ctx context.Context, userID, communityID uuid.UUID, params models.JoinCommunityParams) (*models.CommunityMembership, error) {
	if m.RequestToJoinFunc != nil {
		return m.RequestToJoinFunc(ctx, userID, communityID, params)
	}
	return nil, nil
}

func (m *mockCommunityService) AcceptJoin(ctx context.Context, actorID, membershipID uuid.UUID) (*models.CommunityMembership, error) {
	if m.AcceptJoinFunc != nil {
		return m.AcceptJoinFunc(ctx, actorID, membershipID)
	}
	return nil, nil
}

func (m *mockCommunityService) RejectJoin(ctx context.Context, actorID, membershipID uuid.UUID) error {
	if m.RejectJoinFunc != nil {
		return m.RejectJoinFunc(ctx, actorID, membershipID)
	}
	return nil
}

func (m *mockCommunityService) Leave(ctx context.Context, actorID, communityID uuid.UUID) error {
	if m.LeaveFunc != nil {
		return m.LeaveFunc(ctx, actorID, communityID)
	}
	return nil
}

func (m *mockCommunityService) DeleteCommunity(ctx context.Context, actorID, communityID uuid.UUID) error {
	if m.DeleteCommunityFunc != nil {
		return m.DeleteCommunityFunc(ctx, actorID, communityID)
	}
	return nil
}

func (m *mockCommunityService) ListMembers(ctx context.Context, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error) {
	if m.ListMembersFunc != nil {
		return m.ListMembersFunc(ctx, communityID, req)
	}
	return pagination.Page[models.MemberWithUser]{IsDone: true}, nil
}

func (m *mockCommunityService) ListJoinRequests(ctx context.Context, actorID, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error) {
	if m.ListJoinRequestsFunc != nil {
		return m.ListJoinRequestsFunc(ctx, actorID, communityID, req)
	}
	return pagination.Page[models.MemberWithUser]{IsDone: true}, nil
}

type mockMessageService struct {
	SendMessageFunc        func(ctx context.Context, senderID uuid.UUID, params models.SendMessageParams) (*models.MessageView, error)
	ListMessagesFunc       func(ctx context.Context, viewerID uuid.UUID, conversationID string, req pagination.Request) (pagination.Page[models.MessageView], error)
	ListRepliesFunc        func(ctx context.Context, viewerID uuid.UUID, conversationID string, parentID uuid.UUID, req pagination.Request) (pagination.Page[models.MessageView], error)
	MarkReadFunc           func(ctx context.Context, viewerID, messageID uuid.UUID) (*models.Message, error)
	ListConversationsFunc  func(ctx context.Context, viewerID uuid.UUID, req pagination.Request) (pagination.Page[models.ConversationSummary], error)
	DeleteMessageFunc      func(ctx context.Context, actorID, messageID uuid.UUID) error
	DeleteConversationFunc func(ctx context.Context, actorID uuid.UUID, conversationID string) error
	Gap                    time.Duration
}

func (m *mockMessageService) SendMessage(ctx context.Context, senderID uuid.UUID, params models.SendMessageParams) (*models.MessageView, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, senderID, params)
	}
	return nil, nil
}

func (m *mockMessageService) ListMessages(ctx context.Context, viewerID uuid.UUID, conversationID string, req pagination.Request) (pagination.Page[models.MessageView], error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, viewerID, conversationID, req)
	}
	return pagination.Page[models.MessageView]{IsDone: true}, nil
}

func (m *mockMessageService) ListReplies(ctx context.Context, viewerID uuid.UUID, conversationID string, parentID uuid.UUID, req pagination.Request) (pagination.Page[models.MessageView], error) {
	if m.ListRepliesFunc != nil {
		return m.ListRepliesFunc(ctx, viewerID, conversationID, parentID, req)
	}
	return pagination.Page[models.MessageView]{IsDone: true}, nil
}

func (m *mockMessageService) MarkRead(ctx context.Context, viewerID, messageID uuid.UUID) (*models.Message, error) {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, viewerID, messageID)
	}
	return nil, nil
}

func (m *mockMessageService) ListConversations(ctx context.Context, viewerID uuid.UUID, req pagination.Request) (pagination.Page[models.ConversationSummary], error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, viewerID, req)
	}
	return pagination.Page[models.ConversationSummary]{IsDone: true}, nil
}

func (m *mockMessageService) DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, actorID, messageID)
	}
	return nil
}

func (m *mockMessageService) DeleteConversation(ctx context.Context, actorID uuid.UUID, conversationID string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, actorID, conversationID)
	}
	return nil
}

func (m *mockMessageService) SeparatorGap() time.Duration {
	if m.Gap == 0 {
		return 15 * time.Minute
	}
	return m.Gap
}

type mockLetterService struct {
	ScheduleLetterFunc func(ctx context.Context, senderID uuid.UUID, params models.ScheduleLetterParams) (*models.Letter, error)
	ListInboxFunc      func(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.LetterWithUser], error)
	ListSentFunc       func(ctx context.Context, senderID uuid.UUID, status *models.LetterStatus, req pagination.Request) (pagination.Page[models.LetterWithUser], error)
	CountOnTheWayFunc  func(ctx context.Context, recipientID uuid.UUID) (int, error)
	GetLetterFunc      func(ctx context.Context, viewerID, letterID uuid.UUID) (*models.Letter, error)
	DeleteLetterFunc   func(ctx context.Context, actorID, letterID uuid.UUID) error
}

func (m *mockLetterService) ScheduleLetter(ctx context.Context, senderID uuid.UUID, params models.ScheduleLetterParams) (*models.Letter, error) {
	if m.ScheduleLetterFunc != nil {
		return m.ScheduleLetterFunc(ctx, senderID, params)
	}
	return nil, nil
}

func (m *mockLetterService) ListInbox(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.LetterWithUser], error) {
	if m.ListInboxFunc != nil {
		return m.ListInboxFunc(ctx, recipientID, req)
	}
	return pagination.Page[models.LetterWithUser]{IsDone: true}, nil
}

func (m *mockLetterService) ListSent(ctx context.Context, senderID uuid.UUID, status *models.LetterStatus, req pagination.Request) (pagination.Page[models.LetterWithUser], error) {
	if m.ListSentFunc != nil {
		return m.ListSentFunc(ctx, senderID, status, req)
	}
	return pagination.Page[models.LetterWithUser]{IsDone: true}, nil
}

func (m *mockLetterService) CountOnTheWay(ctx context.Context, recipientID uuid.UUID) (int, error) {
	if m.CountOnTheWayFunc != nil {
		return m.CountOnTheWayFunc(ctx, recipientID)
	}
	return 0, nil
}

func (m *mockLetterService) GetLetter(ctx context.Context, viewerID, letterID uuid.UUID) (*models.Letter, error) {
	if m.GetLetterFunc != nil {
		return m.GetLetterFunc(ctx, viewerID, letterID)
	}
	return nil, nil
}

func (m *mockLetterService) DeleteLetter(ctx context.Context, actorID, letterID uuid.UUID) error {
	if m.DeleteLetterFunc != nil {
		return m.DeleteLetterFunc(ctx, actorID, letterID)
	}
	return nil
}

type mockNotificationService struct {
	ListFunc        func(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.NotificationWithActor], error)
	UnreadCountFunc func(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkReadFunc    func(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllReadFunc func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteAllFunc   func(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

func (m *mockNotificationService) List(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.NotificationWithActor], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, recipientID, req)
	}
	return pagination.Page[models.NotificationWithActor]{IsDone: true}, nil
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, recipientID)
	}
	return 0, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, recipientID, notificationID)
	}
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, recipientID)
	}
	return 0, nil
}

func (m *mockNotificationService) DeleteAll(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if m.DeleteAllFunc != nil {
		return m.DeleteAllFunc(ctx, recipientID)
	}
	return 0, nil
}

type mockReactionService struct {
	AddReactionFunc    func(ctx context.Context, userID, postID uuid.UUID, emoji string) (*models.Reaction, error)
	RemoveReactionFunc func(ctx context.Context, userID, postID uuid.UUID) error
}

func (m *mockReactionService) AddReaction(ctx context.Context, userID, postID uuid.UUID, emoji string) (*models.Reaction, error) {
	if m.AddReactionFunc != nil {
		return m.AddReactionFunc(ctx, userID, postID, emoji)
	}
	return nil, nil
}

func (m *mockReactionService) RemoveReaction(ctx context.Context, userID, postID uuid.UUID) error {
	if m.RemoveReactionFunc != nil {
		return m.RemoveReactionFunc(ctx, userID, postID)
	}
	return nil
}

type mockBlobStore struct {
	SaveFunc func(filename string, r io.Reader) (string, error)
	paths    map[string]string
	saved    bytes.Buffer
}

func (m *mockBlobStore) Save(filename string, r io.Reader) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(filename, r)
	}
	if _, err := io.Copy(&m.saved, r); err != nil {
		return "", err
	}
	return "blob-" + filename, nil
}

func (m *mockBlobStore) URL(ref string) string {
	return "https://blobs.test/" + ref
}

func (m *mockBlobStore) Path(ref string) (string, bool) {
	p, ok := m.paths[ref]
	return p, ok
}

type mockBroker struct {
	SubscribeFunc func(ctx context.Context, userID uuid.UUID) (realtime.Subscription, error)
	published     []realtime.Event
}

func (m *mockBroker) Publish(ctx context.Context, userID uuid.UUID, event realtime.Event) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockBroker) Subscribe(ctx context.Context, userID uuid.UUID) (realtime.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, userID)
	}
	return nil, nil
}
