package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/HammerMeetNail/penpals/internal/logging"
	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
	"github.com/HammerMeetNail/penpals/internal/realtime"
)

const (
	maxMessageLength    = 2000
	maxPreviewLength    = 80
	imagePreview        = "[image]"
	DefaultSeparatorGap = 15 * time.Minute
)

type MessageService struct {
	db           DB
	notifier     Notifier
	events       EventPublisher
	urls         URLResolver
	now          func() time.Time
	separatorGap time.Duration
}

func NewMessageService(db DB, notifier Notifier, events EventPublisher, urls URLResolver, separatorGap time.Duration) *MessageService {
	if separatorGap <= 0 {
		separatorGap = DefaultSeparatorGap
	}
	return &MessageService{
		db:           db,
		notifier:     notifier,
		events:       events,
		urls:         urls,
		now:          time.Now,
		separatorGap: separatorGap,
	}
}

func (s *MessageService) SeparatorGap() time.Duration {
	return s.separatorGap
}

const messageColumns = "id, conversation_id, sender_id, content, image_ref, reply_parent_id, read_at, created_at"

// ConversationID derives the id of the one-to-one conversation between a and b.
// Both participants compute the same value without a lookup.
func ConversationID(a, b uuid.UUID) string {
	lo, hi := orderedPair(a, b)
	buf := make([]byte, 0, 32)
	buf = append(buf, lo[:]...)
	buf = append(buf, hi[:]...)
	sum := blake2b.Sum256(buf)
	return "dm_" + hex.EncodeToString(sum[:])
}

// orderedPair sorts two ids by their bytes, which matches Postgres uuid ordering.
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func (s *MessageService) SendMessage(ctx context.Context, senderID uuid.UUID, params models.SendMessageParams) (*models.MessageView, error) {
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	if params.RecipientID == senderID {
		return nil, ErrInvalidTarget
	}

	content, imageRef, err := normalizeMessageBody(params.Content, params.ImageRef)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	conversationID := ConversationID(senderID, params.RecipientID)
	userA, userB := orderedPair(senderID, params.RecipientID)

	view := &models.MessageView{}
	err = inTx(ctx, s.db, "send message", func(tx Tx) error {
		blocked, err := isBlockedPair(ctx, tx, senderID, params.RecipientID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrUserBlocked
		}
		exists, err := userExists(ctx, tx, params.RecipientID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO conversations (id, user_a, user_b, last_message_at, last_message_preview, created_at)
			 VALUES ($1, $2, $3, $4, $5, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET last_message_at = EXCLUDED.last_message_at,
			     last_message_preview = EXCLUDED.last_message_preview`,
			conversationID, userA, userB, now, messagePreview(content, imageRef != nil),
		)
		if err != nil {
			return fmt.Errorf("upserting conversation: %w", err)
		}

		if params.ReplyParentID != nil {
			reply, err := replyParent(ctx, tx, *params.ReplyParentID, conversationID)
			if err != nil {
				return err
			}
			view.Reply = reply
		}

		msg, err := scanMessage(tx.QueryRow(ctx,
			`INSERT INTO messages (conversation_id, sender_id, content, image_ref, reply_parent_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+messageColumns,
			conversationID, senderID, content, imageRef, params.ReplyParentID, now,
		))
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		view.Message = *msg

		view.Sender, err = loadUserSummary(ctx, tx, senderID, s.urls)
		return err
	})
	if err != nil {
		return nil, err
	}

	if view.ImageRef != nil && s.urls != nil {
		view.ImageURL = s.urls.URL(*view.ImageRef)
	}
	s.publish(ctx, view, params.RecipientID, senderID)
	return view, nil
}

func (s *MessageService) publish(ctx context.Context, view *models.MessageView, userIDs ...uuid.UUID) {
	if s.events == nil {
		return
	}
	event := realtime.Event{Type: realtime.EventMessageSent, Payload: view}
	for _, id := range userIDs {
		if err := s.events.Publish(ctx, id, event); err != nil {
			logging.Warn("Failed to publish message event", map[string]interface{}{
				"message_id": view.ID.String(),
				"user_id":    id.String(),
				"error":      err.Error(),
			})
		}
	}
}

func normalizeMessageBody(content, imageRef *string) (*string, *string, error) {
	if content != nil {
		trimmed := strings.TrimSpace(*content)
		content = &trimmed
		if trimmed == "" {
			content = nil
		}
	}
	if imageRef != nil {
		trimmed := strings.TrimSpace(*imageRef)
		imageRef = &trimmed
		if trimmed == "" {
			imageRef = nil
		}
	}
	if (content == nil) == (imageRef == nil) {
		return nil, nil, ErrMessageBody
	}
	if content != nil && len([]rune(*content)) > maxMessageLength {
		return nil, nil, ErrMessageTooLong
	}
	return content, imageRef, nil
}

func messagePreview(content *string, hasImage bool) *string {
	var preview string
	switch {
	case content != nil:
		preview = *content
		if r := []rune(preview); len(r) > maxPreviewLength {
			preview = string(r[:maxPreviewLength])
		}
	case hasImage:
		preview = imagePreview
	default:
		return nil
	}
	return &preview
}

func replyParent(ctx context.Context, q DBConn, parentID uuid.UUID, conversationID string) (*models.ReplyPreview, error) {
	var parentConversation string
	preview := &models.ReplyPreview{ID: parentID}
	var senderID uuid.UUID
	var imageRef *string
	err := q.QueryRow(ctx,
		"SELECT conversation_id, sender_id, content, image_ref FROM messages WHERE id = $1",
		parentID,
	).Scan(&parentConversation, &senderID, &preview.Content, &imageRef)
	if isNoRows(err) {
		return nil, ErrReplyParentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting reply parent: %w", err)
	}
	if parentConversation != conversationID {
		return nil, ErrReplyCrossConversation
	}
	preview.SenderID = &senderID
	preview.HasImage = imageRef != nil
	return preview, nil
}

// ListMessages returns the newest messages first. Unread messages from the
// other participant on the returned page are marked read.
func (s *MessageService) ListMessages(ctx context.Context, viewerID uuid.UUID, conversationID string, req pagination.Request) (pagination.Page[models.MessageView], error) {
	cutoff, err := s.participantCutoff(ctx, viewerID, conversationID)
	if err != nil {
		return pagination.Page[models.MessageView]{}, err
	}

	sb := s.messageViewQuery().Where("m.conversation_id = ?", conversationID)
	if cutoff != nil {
		sb = sb.Where("m.created_at > ?", *cutoff)
	}
	sb = pagination.Apply(sb, "m.created_at", "m.id", pagination.Desc, req)
	page, err := s.listMessageViews(ctx, sb, req)
	if err != nil {
		return pagination.Page[models.MessageView]{}, err
	}

	if err := s.markFetchedRead(ctx, viewerID, page.Items); err != nil {
		return pagination.Page[models.MessageView]{}, err
	}
	return page, nil
}

// markFetchedRead sets read_at on the unread messages in views that viewer
// received. Messages outside the returned page are left alone.
func (s *MessageService) markFetchedRead(ctx context.Context, viewerID uuid.UUID, views []models.MessageView) error {
	var ids []string
	for _, v := range views {
		if v.SenderID != viewerID && v.ReadAt == nil {
			ids = append(ids, v.ID.String())
		}
	}
	if len(ids) == 0 {
		return nil
	}

	now := s.now().UTC()
	_, err := s.db.Exec(ctx,
		`UPDATE messages SET read_at = $3
		 WHERE id = ANY($1::uuid[]) AND sender_id <> $2 AND read_at IS NULL`,
		ids, viewerID, now,
	)
	if err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}

	for i := range views {
		if views[i].SenderID != viewerID && views[i].ReadAt == nil {
			views[i].ReadAt = &now
		}
	}
	return nil
}

// ListReplies returns the replies to parentID oldest first. The parent itself
// may already be deleted.
func (s *MessageService) ListReplies(ctx context.Context, viewerID uuid.UUID, conversationID string, parentID uuid.UUID, req pagination.Request) (pagination.Page[models.MessageView], error) {
	cutoff, err := s.participantCutoff(ctx, viewerID, conversationID)
	if err != nil {
		return pagination.Page[models.MessageView]{}, err
	}

	sb := s.messageViewQuery().
		Where("m.conversation_id = ?", conversationID).
		Where("m.reply_parent_id = ?", parentID)
	if cutoff != nil {
		sb = sb.Where("m.created_at > ?", *cutoff)
	}
	sb = pagination.Apply(sb, "m.created_at", "m.id", pagination.Asc, req)
	return s.listMessageViews(ctx, sb, req)
}

func (s *MessageService) participantCutoff(ctx context.Context, viewerID uuid.UUID, conversationID string) (*time.Time, error) {
	conv, err := getConversation(ctx, s.db, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	return hideCutoff(ctx, s.db, conversationID, viewerID)
}

func (s *MessageService) messageViewQuery() sq.SelectBuilder {
	return psql.Select(
		"m.id", "m.conversation_id", "m.sender_id", "m.content", "m.image_ref", "m.reply_parent_id", "m.read_at", "m.created_at",
		"u.username", "u.display_name", "u.avatar_ref",
		"p.id", "p.sender_id", "p.content", "p.image_ref",
	).
		From("messages m").
		Join("users u ON u.id = m.sender_id").
		LeftJoin("messages p ON p.id = m.reply_parent_id")
}

func (s *MessageService) listMessageViews(ctx context.Context, sb sq.SelectBuilder, req pagination.Request) (pagination.Page[models.MessageView], error) {
	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.MessageView]{}, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var views []models.MessageView
	for rows.Next() {
		var v models.MessageView
		var username, displayName string
		var avatarRef *string
		var parentID, parentSender *uuid.UUID
		var parentContent, parentImage *string
		if err := rows.Scan(
			&v.ID, &v.ConversationID, &v.SenderID, &v.Content, &v.ImageRef, &v.ReplyParentID, &v.ReadAt, &v.CreatedAt,
			&username, &displayName, &avatarRef,
			&parentID, &parentSender, &parentContent, &parentImage,
		); err != nil {
			return pagination.Page[models.MessageView]{}, fmt.Errorf("scanning message: %w", err)
		}
		v.Sender = newUserSummary(v.SenderID, username, displayName, avatarRef, s.urls)
		if v.ImageRef != nil && s.urls != nil {
			v.ImageURL = s.urls.URL(*v.ImageRef)
		}
		if v.ReplyParentID != nil {
			v.Reply = &models.ReplyPreview{ID: *v.ReplyParentID}
			if parentID == nil {
				v.Reply.Unavailable = true
			} else {
				v.Reply.SenderID = parentSender
				v.Reply.Content = parentContent
				v.Reply.HasImage = parentImage != nil
			}
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.MessageView]{}, fmt.Errorf("iterating messages: %w", err)
	}

	return pagination.Build(views, req.NormalizedLimit(), func(v models.MessageView) pagination.Cursor {
		return pagination.Cursor{SortKey: v.CreatedAt, ID: v.ID.String()}
	}), nil
}

// MarkRead sets read_at on a message received by viewer. Repeated calls keep
// the first timestamp.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, messageID uuid.UUID) (*models.Message, error) {
	msg, err := scanMessage(s.db.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1",
		messageID,
	))
	if isNoRows(err) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	conv, err := getConversation(ctx, s.db, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	if msg.SenderID == viewerID {
		return nil, ErrCannotMarkOwnMessage
	}

	var readAt time.Time
	err = s.db.QueryRow(ctx,
		"UPDATE messages SET read_at = COALESCE(read_at, $2) WHERE id = $1 RETURNING read_at",
		messageID, s.now().UTC(),
	).Scan(&readAt)
	if isNoRows(err) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("marking message read: %w", err)
	}
	msg.ReadAt = &readAt
	return msg, nil
}

// ListConversations returns the viewer's conversations by latest activity,
// skipping any hidden with no newer message since.
func (s *MessageService) ListConversations(ctx context.Context, viewerID uuid.UUID, req pagination.Request) (pagination.Page[models.ConversationSummary], error) {
	sb := psql.Select(
		"c.id", "c.user_a", "c.user_b", "c.last_message_at", "c.last_message_preview",
		"u.username", "u.display_name", "u.avatar_ref",
	).
		Column(sq.Expr(
			`EXISTS (
				SELECT 1 FROM messages um
				WHERE um.conversation_id = c.id
				  AND um.sender_id <> ?
				  AND um.read_at IS NULL
				  AND (h.hidden_at IS NULL OR um.created_at > h.hidden_at)
			) AS has_unread`, viewerID)).
		From("conversations c").
		Join("users u ON u.id = CASE WHEN c.user_a = ? THEN c.user_b ELSE c.user_a END", viewerID).
		LeftJoin("conversation_hides h ON h.conversation_id = c.id AND h.user_id = ?", viewerID).
		Where(sq.Or{sq.Eq{"c.user_a": viewerID}, sq.Eq{"c.user_b": viewerID}}).
		Where("c.last_message_at IS NOT NULL").
		Where("(h.hidden_at IS NULL OR c.last_message_at > h.hidden_at)")
	sb = pagination.Apply(sb, "c.last_message_at", "c.id", pagination.Desc, req)

	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.ConversationSummary]{}, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		var userA, userB uuid.UUID
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(
			&c.ID, &userA, &userB, &c.LastMessageAt, &c.LastMessagePreview,
			&username, &displayName, &avatarRef, &c.HasUnread,
		); err != nil {
			return pagination.Page[models.ConversationSummary]{}, fmt.Errorf("scanning conversation: %w", err)
		}
		other := userA
		if userA == viewerID {
			other = userB
		}
		c.Other = newUserSummary(other, username, displayName, avatarRef, s.urls)
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.ConversationSummary]{}, fmt.Errorf("iterating conversations: %w", err)
	}

	return pagination.Build(summaries, req.NormalizedLimit(), func(c models.ConversationSummary) pagination.Cursor {
		var key time.Time
		if c.LastMessageAt != nil {
			key = *c.LastMessageAt
		}
		return pagination.Cursor{SortKey: key, ID: c.ID}
	}), nil
}

// DeleteMessage hard-deletes the sender's own message and refreshes the
// conversation's last-message fields. Replies keep pointing at the removed id.
func (s *MessageService) DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error {
	return inTx(ctx, s.db, "delete message", func(tx Tx) error {
		msg, err := scanMessage(tx.QueryRow(ctx,
			"SELECT "+messageColumns+" FROM messages WHERE id = $1 FOR UPDATE",
			messageID,
		))
		if isNoRows(err) {
			return ErrMessageNotFound
		}
		if err != nil {
			return fmt.Errorf("getting message: %w", err)
		}
		if msg.SenderID != actorID {
			return ErrNotMessageSender
		}

		if _, err := tx.Exec(ctx, "DELETE FROM messages WHERE id = $1", messageID); err != nil {
			return fmt.Errorf("deleting message: %w", err)
		}

		var lastAt *time.Time
		var lastContent, lastImage *string
		err = tx.QueryRow(ctx,
			`SELECT created_at, content, image_ref FROM messages
			 WHERE conversation_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT 1`,
			msg.ConversationID,
		).Scan(&lastAt, &lastContent, &lastImage)
		if err != nil && !isNoRows(err) {
			return fmt.Errorf("finding latest message: %w", err)
		}

		_, err = tx.Exec(ctx,
			"UPDATE conversations SET last_message_at = $2, last_message_preview = $3 WHERE id = $1",
			msg.ConversationID, lastAt, messagePreview(lastContent, lastImage != nil),
		)
		if err != nil {
			return fmt.Errorf("updating conversation: %w", err)
		}
		return nil
	})
}

// DeleteConversation hides the conversation for actor up to now. Message rows
// are kept; the other participant still sees the full history.
func (s *MessageService) DeleteConversation(ctx context.Context, actorID uuid.UUID, conversationID string) error {
	var note *models.Notification
	err := inTx(ctx, s.db, "delete conversation", func(tx Tx) error {
		conv, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(actorID) {
			return ErrNotParticipant
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_hides (conversation_id, user_id, hidden_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (conversation_id, user_id) DO UPDATE SET hidden_at = EXCLUDED.hidden_at`,
			conversationID, actorID, s.now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("hiding conversation: %w", err)
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: conv.Other(actorID),
			ActorID:     uuidPtr(actorID),
			Type:        models.NotificationConversationDeleted,
			SubjectRef:  conversationID,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.Dispatch(note)
	return nil
}

func getConversation(ctx context.Context, q DBConn, conversationID string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := q.QueryRow(ctx,
		`SELECT id, user_a, user_b, last_message_at, last_message_preview, created_at
		 FROM conversations WHERE id = $1`,
		conversationID,
	).Scan(&c.ID, &c.UserA, &c.UserB, &c.LastMessageAt, &c.LastMessagePreview, &c.CreatedAt)
	if isNoRows(err) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return c, nil
}

func hideCutoff(ctx context.Context, q DBConn, conversationID string, userID uuid.UUID) (*time.Time, error) {
	var hiddenAt time.Time
	err := q.QueryRow(ctx,
		"SELECT hidden_at FROM conversation_hides WHERE conversation_id = $1 AND user_id = $2",
		conversationID, userID,
	).Scan(&hiddenAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting hide cutoff: %w", err)
	}
	return &hiddenAt, nil
}

func scanMessage(row Row) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.ImageRef, &m.ReplyParentID, &m.ReadAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}
