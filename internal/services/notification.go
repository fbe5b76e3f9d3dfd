package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/logging"
	"github.com/HammerMeetNail/penpals/internal/metrics"
	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
	"github.com/HammerMeetNail/penpals/internal/push"
	"github.com/HammerMeetNail/penpals/internal/realtime"
)

// EmitParams describes one notification. ActorID is nil for system events;
// SubjectRef identifies the thing the notification is about (request id,
// post id, letter id, ...).
type EmitParams struct {
	RecipientID uuid.UUID
	ActorID     *uuid.UUID
	Type        models.NotificationType
	SubjectRef  string
}

// EventPublisher fans realtime events out to a user's open streams.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event realtime.Event) error
}

type NotificationService struct {
	db       DB
	push     push.Channel
	events   EventPublisher
	urls     URLResolver
	now      func() time.Time
	async    func(fn func())
	asyncCtx context.Context
}

func NewNotificationService(db DB, channel push.Channel, events EventPublisher, urls URLResolver) *NotificationService {
	return &NotificationService{
		db:     db,
		push:   channel,
		events: events,
		urls:   urls,
		now:    time.Now,
		async: func(fn func()) {
			go fn()
		},
		asyncCtx: context.Background(),
	}
}

func (s *NotificationService) SetAsync(fn func(fn func())) {
	s.async = fn
}

func (s *NotificationService) SetAsyncContext(ctx context.Context) {
	if ctx == nil {
		s.asyncCtx = context.Background()
		return
	}
	s.asyncCtx = ctx
}

const notificationColumns = "id, recipient_id, actor_id, type, subject_ref, read_at, created_at"

// Record inserts a notification using q, which is normally the caller's open
// transaction so the notification commits or rolls back with the state change.
// It returns nil when the pair is blocked and the notification was skipped.
func (s *NotificationService) Record(ctx context.Context, q DBConn, p EmitParams) (*models.Notification, error) {
	if p.ActorID != nil && *p.ActorID == p.RecipientID {
		return nil, nil
	}

	onConflict := ""
	if p.Type.Collapsible() {
		onConflict = ` ON CONFLICT (recipient_id, actor_id, type, subject_ref)
		 WHERE read_at IS NULL AND type = 'post_reaction'
		 DO UPDATE SET created_at = EXCLUDED.created_at`
	}

	query := `INSERT INTO notifications (recipient_id, actor_id, type, subject_ref, created_at)
		 SELECT $1::uuid, $2::uuid, $3::text, NULLIF($4::text, ''), $5::timestamptz
		 WHERE $6::boolean OR NOT EXISTS (
		   SELECT 1 FROM user_blocks
		   WHERE (blocker_id = $1 AND blocked_id = $2)
		      OR (blocker_id = $2 AND blocked_id = $1)
		 )` + onConflict + `
		 RETURNING ` + notificationColumns

	bypassBlocks := p.Type == models.NotificationUserBlocked
	n, err := scanNotification(q.QueryRow(ctx, query,
		p.RecipientID, p.ActorID, string(p.Type), p.SubjectRef, s.now().UTC(), bypassBlocks,
	))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// Emit records a notification outside any caller transaction and dispatches it.
func (s *NotificationService) Emit(ctx context.Context, p EmitParams) error {
	n, err := s.Record(ctx, s.db, p)
	if err != nil {
		return err
	}
	s.Dispatch(n)
	return nil
}

// Dispatch pushes a committed notification to the recipient's devices and open
// streams. Delivery is best effort: failures are logged and never surface to
// the operation that produced the notification.
func (s *NotificationService) Dispatch(n *models.Notification) {
	if n == nil || s.async == nil {
		return
	}
	s.async(func() {
		baseCtx := s.asyncCtx
		if baseCtx == nil {
			baseCtx = context.Background()
		}
		ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
		defer cancel()
		s.deliver(ctx, n)
	})
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	fields := map[string]interface{}{
		"notification_id": n.ID.String(),
		"type":            string(n.Type),
		"recipient_id":    n.RecipientID.String(),
	}
	metrics.NotificationsDispatched.WithLabelValues(string(n.Type)).Inc()

	if s.events != nil {
		if err := s.events.Publish(ctx, n.RecipientID, realtime.Event{Type: realtime.EventNotification, Payload: n}); err != nil {
			logging.Warn("Failed to publish notification event", withError(fields, err))
		}
	}

	if s.push == nil {
		return
	}

	var deviceToken, email, actorName *string
	err := s.db.QueryRow(ctx,
		`SELECT u.device_token, u.email, a.display_name
		 FROM users u
		 LEFT JOIN users a ON a.id = $2
		 WHERE u.id = $1`,
		n.RecipientID, n.ActorID,
	).Scan(&deviceToken, &email, &actorName)
	if err != nil {
		logging.Error("Failed to load push target", withError(fields, err))
		return
	}
	if deviceToken == nil && email == nil {
		return
	}

	title, body := renderAlert(n.Type, actorName)
	alert := push.Alert{
		UserID:      n.RecipientID.String(),
		DeviceToken: deref(deviceToken),
		Email:       deref(email),
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"notification_id": n.ID.String(),
			"type":            string(n.Type),
		},
	}
	if n.SubjectRef != nil {
		alert.Data["subject_ref"] = *n.SubjectRef
	}

	if err := s.push.Send(ctx, alert); err != nil {
		metrics.PushFailures.Inc()
		logging.Error("Failed to send push alert", withError(fields, err))
	}
}

func (s *NotificationService) List(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.NotificationWithActor], error) {
	sb := psql.Select(
		"n.id", "n.recipient_id", "n.actor_id", "n.type", "n.subject_ref", "n.read_at", "n.created_at",
		"a.username", "a.display_name", "a.avatar_ref",
	).
		From("notifications n").
		LeftJoin("users a ON a.id = n.actor_id").
		Where("n.recipient_id = ?", recipientID)
	sb = pagination.Apply(sb, "n.created_at", "n.id", pagination.Desc, req)

	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.NotificationWithActor]{}, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var items []models.NotificationWithActor
	for rows.Next() {
		var n models.NotificationWithActor
		var nType string
		var username, displayName, avatarRef *string
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.ActorID, &nType, &n.SubjectRef, &n.ReadAt, &n.CreatedAt,
			&username, &displayName, &avatarRef,
		); err != nil {
			return pagination.Page[models.NotificationWithActor]{}, fmt.Errorf("scanning notification: %w", err)
		}
		n.Type = models.NotificationType(nType)
		if n.ActorID != nil && username != nil {
			summary := newUserSummary(*n.ActorID, *username, deref(displayName), avatarRef, s.urls)
			n.Actor = &summary
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.NotificationWithActor]{}, fmt.Errorf("iterating notifications: %w", err)
	}

	return pagination.Build(items, req.NormalizedLimit(), func(n models.NotificationWithActor) pagination.Cursor {
		return pagination.Cursor{SortKey: n.CreatedAt, ID: n.ID.String()}
	}), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL",
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND recipient_id = $2",
		notificationID, recipientID, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead is idempotent; it reports how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result, err := s.db.Exec(ctx,
		"UPDATE notifications SET read_at = $2 WHERE recipient_id = $1 AND read_at IS NULL",
		recipientID, s.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result, err := s.db.Exec(ctx, "DELETE FROM notifications WHERE recipient_id = $1", recipientID)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanNotification(row Row) (*models.Notification, error) {
	n := &models.Notification{}
	var nType string
	if err := row.Scan(&n.ID, &n.RecipientID, &n.ActorID, &nType, &n.SubjectRef, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(nType)
	return n, nil
}

func renderAlert(t models.NotificationType, actorName *string) (string, string) {
	actor := "Someone"
	if actorName != nil && *actorName != "" {
		actor = *actorName
	}

	switch t {
	case models.NotificationFriendRequestSent:
		return "New friend request", actor + " sent you a friend request."
	case models.NotificationFriendRequestAccepted:
		return "Friend request accepted", actor + " accepted your friend request."
	case models.NotificationFriendRequestRejected:
		return "Friend request declined", actor + " declined your friend request."
	case models.NotificationFriendRemoved:
		return "Friend removed", actor + " removed you as a friend."
	case models.NotificationCommunityJoinRequest:
		return "New join request", actor + " wants to join your community."
	case models.NotificationPostReaction:
		return "New reaction", actor + " reacted to your post."
	case models.NotificationPostCommented:
		return "New comment", actor + " commented on your post."
	case models.NotificationCommentReplied:
		return "New reply", actor + " replied to your comment."
	case models.NotificationDiscussionThreadReplied:
		return "New reply", actor + " replied in a discussion you follow."
	case models.NotificationLetterScheduled:
		return "A letter has arrived", actor + " sent you a letter."
	case models.NotificationGiftReceived:
		return "You received a gift", actor + " sent you a gift."
	case models.NotificationConversationDeleted:
		return "Conversation deleted", actor + " deleted your conversation."
	case models.NotificationUserBlocked:
		return "Account update", "A user restricted contact with you."
	default:
		return "New notification", "You have a new notification."
	}
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
