package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/logging"
	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
)

const DefaultDeliveryBatch = 100

type LetterService struct {
	db        DB
	notifier  Notifier
	urls      URLResolver
	now       func() time.Time
	batchSize int
}

func NewLetterService(db DB, notifier Notifier, urls URLResolver, batchSize int) *LetterService {
	if batchSize <= 0 {
		batchSize = DefaultDeliveryBatch
	}
	return &LetterService{
		db:        db,
		notifier:  notifier,
		urls:      urls,
		now:       time.Now,
		batchSize: batchSize,
	}
}

const letterColumns = "id, sender_id, recipient_id, title, content, status, deliver_at, delivered_at, created_at"

// ScheduleLetter stores a letter that becomes visible to the recipient after
// the chosen number of days. Nothing is sent to the recipient yet.
func (s *LetterService) ScheduleLetter(ctx context.Context, senderID uuid.UUID, params models.ScheduleLetterParams) (*models.Letter, error) {
	params.Title = strings.TrimSpace(params.Title)
	params.Content = strings.TrimSpace(params.Content)
	if err := validateStruct(params); err != nil {
		return nil, err
	}

	if senderID != params.RecipientID {
		blocked, err := isBlockedPair(ctx, s.db, senderID, params.RecipientID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrUserBlocked
		}
	}

	createdAt := s.now().UTC()
	deliverAt := createdAt.Add(time.Duration(params.DaysUntilDelivery) * 24 * time.Hour)

	letter, err := scanLetter(s.db.QueryRow(ctx,
		`INSERT INTO letters (sender_id, recipient_id, title, content, status, deliver_at, created_at)
		 VALUES ($1, $2, $3, $4, 'scheduled', $5, $6)
		 RETURNING `+letterColumns,
		senderID, params.RecipientID, params.Title, params.Content, deliverAt, createdAt,
	))
	if isForeignKeyViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling letter: %w", err)
	}
	return letter, nil
}

// DeliverDue delivers every scheduled letter whose time has come. Each letter
// is flipped in its own transaction guarded by its current status, so
// concurrent sweepers deliver and notify each letter exactly once.
func (s *LetterService) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	delivered := 0
	var errs []error

	for {
		ids, err := s.dueLetters(ctx, now)
		if err != nil {
			return delivered, err
		}

		batchDelivered := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return delivered, err
			}
			ok, err := s.deliverOne(ctx, id, now)
			if err != nil {
				logging.Error("Failed to deliver letter", map[string]interface{}{
					"letter_id": id.String(),
					"error":     err.Error(),
				})
				errs = append(errs, err)
				continue
			}
			if ok {
				batchDelivered++
			}
		}
		delivered += batchDelivered

		if len(ids) < s.batchSize || batchDelivered == 0 {
			break
		}
	}

	return delivered, errors.Join(errs...)
}

func (s *LetterService) dueLetters(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM letters
		 WHERE status = 'scheduled' AND deliver_at <= $1
		 ORDER BY deliver_at, id
		 LIMIT $2`,
		now, s.batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("finding due letters: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning due letter: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating due letters: %w", err)
	}
	return ids, nil
}

func (s *LetterService) deliverOne(ctx context.Context, letterID uuid.UUID, now time.Time) (bool, error) {
	var note *models.Notification
	delivered := false
	err := inTx(ctx, s.db, "deliver letter", func(tx Tx) error {
		letter, err := scanLetter(tx.QueryRow(ctx,
			`UPDATE letters SET status = 'delivered', delivered_at = $2
			 WHERE id = $1 AND status = 'scheduled'
			 RETURNING `+letterColumns,
			letterID, now,
		))
		if isNoRows(err) {
			// Another sweeper got here first.
			return nil
		}
		if err != nil {
			return fmt.Errorf("marking letter delivered: %w", err)
		}
		delivered = true

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: letter.RecipientID,
			ActorID:     uuidPtr(letter.SenderID),
			Type:        models.NotificationLetterScheduled,
			SubjectRef:  letter.ID.String(),
		})
		return err
	})
	if err != nil {
		return false, err
	}

	s.notifier.Dispatch(note)
	return delivered, nil
}

// ListInbox returns delivered letters, most recently delivered first.
func (s *LetterService) ListInbox(ctx context.Context, recipientID uuid.UUID, req pagination.Request) (pagination.Page[models.LetterWithUser], error) {
	sb := letterQuery("l.sender_id").
		Where("l.recipient_id = ?", recipientID).
		Where("l.status = 'delivered'")
	sb = pagination.Apply(sb, "l.delivered_at", "l.id", pagination.Desc, req)
	return s.listLetters(ctx, sb, req, func(l models.Letter) time.Time {
		if l.DeliveredAt != nil {
			return *l.DeliveredAt
		}
		return l.DeliverAt
	})
}

// ListSent returns everything the sender wrote, scheduled letters included.
func (s *LetterService) ListSent(ctx context.Context, senderID uuid.UUID, status *models.LetterStatus, req pagination.Request) (pagination.Page[models.LetterWithUser], error) {
	sb := letterQuery("l.recipient_id").Where("l.sender_id = ?", senderID)
	if status != nil {
		sb = sb.Where("l.status = ?", string(*status))
	}
	sb = pagination.Apply(sb, "l.created_at", "l.id", pagination.Desc, req)
	return s.listLetters(ctx, sb, req, func(l models.Letter) time.Time {
		return l.CreatedAt
	})
}

func letterQuery(counterpartCol string) sq.SelectBuilder {
	return psql.Select(
		"l.id", "l.sender_id", "l.recipient_id", "l.title", "l.content", "l.status", "l.deliver_at", "l.delivered_at", "l.created_at",
		"u.id", "u.username", "u.display_name", "u.avatar_ref",
	).
		From("letters l").
		Join("users u ON u.id = " + counterpartCol)
}

func (s *LetterService) listLetters(ctx context.Context, sb sq.SelectBuilder, req pagination.Request, sortKey func(models.Letter) time.Time) (pagination.Page[models.LetterWithUser], error) {
	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.LetterWithUser]{}, fmt.Errorf("listing letters: %w", err)
	}
	defer rows.Close()

	var letters []models.LetterWithUser
	for rows.Next() {
		var l models.LetterWithUser
		var status string
		var userID uuid.UUID
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(
			&l.ID, &l.SenderID, &l.RecipientID, &l.Title, &l.Content, &status, &l.DeliverAt, &l.DeliveredAt, &l.CreatedAt,
			&userID, &username, &displayName, &avatarRef,
		); err != nil {
			return pagination.Page[models.LetterWithUser]{}, fmt.Errorf("scanning letter: %w", err)
		}
		l.Status = models.LetterStatus(status)
		l.Counterpart = newUserSummary(userID, username, displayName, avatarRef, s.urls)
		letters = append(letters, l)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.LetterWithUser]{}, fmt.Errorf("iterating letters: %w", err)
	}

	return pagination.Build(letters, req.NormalizedLimit(), func(l models.LetterWithUser) pagination.Cursor {
		return pagination.Cursor{SortKey: sortKey(l.Letter), ID: l.ID.String()}
	}), nil
}

// CountOnTheWay reports how many letters are still travelling to recipient.
func (s *LetterService) CountOnTheWay(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM letters WHERE recipient_id = $1 AND status = 'scheduled'",
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting letters on the way: %w", err)
	}
	return count, nil
}

// GetLetter returns a letter to its sender, or to its recipient once delivered.
func (s *LetterService) GetLetter(ctx context.Context, viewerID, letterID uuid.UUID) (*models.Letter, error) {
	letter, err := s.getLetter(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if letter.SenderID == viewerID {
		return letter, nil
	}
	if letter.RecipientID == viewerID && letter.Status == models.LetterStatusDelivered {
		return letter, nil
	}
	return nil, ErrLetterNotFound
}

func (s *LetterService) DeleteLetter(ctx context.Context, actorID, letterID uuid.UUID) error {
	letter, err := s.getLetter(ctx, letterID)
	if err != nil {
		return err
	}
	delivered := letter.Status == models.LetterStatusDelivered
	switch {
	case letter.RecipientID != actorID && letter.SenderID != actorID:
		return ErrLetterNotFound
	case !delivered && letter.SenderID == actorID:
		return ErrLetterNotDelivered
	case !delivered:
		return ErrLetterNotFound
	case letter.RecipientID != actorID:
		return ErrNotLetterRecipient
	}

	result, err := s.db.Exec(ctx,
		"DELETE FROM letters WHERE id = $1 AND recipient_id = $2 AND status = 'delivered'",
		letterID, actorID,
	)
	if err != nil {
		return fmt.Errorf("deleting letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLetterNotFound
	}
	return nil
}

func (s *LetterService) getLetter(ctx context.Context, letterID uuid.UUID) (*models.Letter, error) {
	letter, err := scanLetter(s.db.QueryRow(ctx,
		"SELECT "+letterColumns+" FROM letters WHERE id = $1",
		letterID,
	))
	if isNoRows(err) {
		return nil, ErrLetterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting letter: %w", err)
	}
	return letter, nil
}

func scanLetter(row Row) (*models.Letter, error) {
	l := &models.Letter{}
	var status string
	if err := row.Scan(&l.ID, &l.SenderID, &l.RecipientID, &l.Title, &l.Content, &status, &l.DeliverAt, &l.DeliveredAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = models.LetterStatus(status)
	return l, nil
}
