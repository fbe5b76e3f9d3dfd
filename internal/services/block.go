package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
)

type BlockService struct {
	db       DB
	notifier Notifier
	urls     URLResolver
}

func NewBlockService(db DB, notifier Notifier, urls URLResolver) *BlockService {
	return &BlockService{db: db, notifier: notifier, urls: urls}
}

// Block records the block, severs any friendship and pending requests between
// the pair, and tells the blocked user.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if blockerID == blockedID {
		return ErrInvalidTarget
	}

	var note *models.Notification
	err := inTx(ctx, s.db, "block", func(tx Tx) error {
		result, err := tx.Exec(ctx,
			`INSERT INTO user_blocks (blocker_id, blocked_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			blockerID, blockedID,
		)
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrBlockExists
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM friendships
			 WHERE (user_id = $1 AND friend_id = $2)
			    OR (user_id = $2 AND friend_id = $1)`,
			blockerID, blockedID,
		)
		if err != nil {
			return fmt.Errorf("remove friendships: %w", err)
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM friend_requests
			 WHERE status = 'pending'
			   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`,
			blockerID, blockedID,
		)
		if err != nil {
			return fmt.Errorf("remove friend requests: %w", err)
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: blockedID,
			ActorID:     uuidPtr(blockerID),
			Type:        models.NotificationUserBlocked,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.Dispatch(note)
	return nil
}

func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2",
		blockerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (s *BlockService) IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	return isBlockedPair(ctx, s.db, userID, otherUserID)
}

func (s *BlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.display_name, u.avatar_ref, ub.created_at
		 FROM user_blocks ub
		 JOIN users u ON ub.blocked_id = u.id
		 WHERE ub.blocker_id = $1
		 ORDER BY u.username`,
		blockerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	defer rows.Close()

	var blocked []models.BlockedUser
	for rows.Next() {
		var b models.BlockedUser
		var id uuid.UUID
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(&id, &username, &displayName, &avatarRef, &b.BlockedAt); err != nil {
			return nil, fmt.Errorf("scan blocked user: %w", err)
		}
		b.User = newUserSummary(id, username, displayName, avatarRef, s.urls)
		blocked = append(blocked, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked users: %w", err)
	}
	if blocked == nil {
		blocked = []models.BlockedUser{}
	}
	return blocked, nil
}
