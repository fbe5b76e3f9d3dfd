package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
)

type ReactionService struct {
	db       DB
	notifier Notifier
	now      func() time.Time
}

func NewReactionService(db DB, notifier Notifier) *ReactionService {
	return &ReactionService{db: db, notifier: notifier, now: time.Now}
}

// AddReaction sets the user's reaction on a post, replacing any earlier emoji.
// Repeated reactions while the author has not read the notification collapse
// into a single unread entry.
func (s *ReactionService) AddReaction(ctx context.Context, userID, postID uuid.UUID, emoji string) (*models.Reaction, error) {
	if !models.IsAllowedEmoji(emoji) {
		return nil, ErrInvalidEmoji
	}

	var reaction *models.Reaction
	var note *models.Notification
	err := inTx(ctx, s.db, "add reaction", func(tx Tx) error {
		var authorID uuid.UUID
		err := tx.QueryRow(ctx, "SELECT author_id FROM posts WHERE id = $1", postID).Scan(&authorID)
		if isNoRows(err) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("getting post: %w", err)
		}
		if authorID == userID {
			return ErrCannotReactToOwn
		}

		blocked, err := isBlockedPair(ctx, tx, userID, authorID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrUserBlocked
		}

		reaction = &models.Reaction{}
		err = tx.QueryRow(ctx,
			`INSERT INTO post_reactions (post_id, user_id, emoji, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (post_id, user_id) DO UPDATE
			 SET emoji = EXCLUDED.emoji, created_at = EXCLUDED.created_at
			 RETURNING post_id, user_id, emoji, created_at`,
			postID, userID, emoji, s.now().UTC(),
		).Scan(&reaction.PostID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt)
		if err != nil {
			return fmt.Errorf("upserting reaction: %w", err)
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: authorID,
			ActorID:     uuidPtr(userID),
			Type:        models.NotificationPostReaction,
			SubjectRef:  postID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(note)
	return reaction, nil
}

func (s *ReactionService) RemoveReaction(ctx context.Context, userID, postID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2",
		postID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing reaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrReactionNotFound
	}
	return nil
}
