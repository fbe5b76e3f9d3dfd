package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
)

type FriendService struct {
	db       DB
	notifier Notifier
	urls     URLResolver
}

func NewFriendService(db DB, notifier Notifier, urls URLResolver) *FriendService {
	return &FriendService{db: db, notifier: notifier, urls: urls}
}

const friendRequestColumns = "id, sender_id, receiver_id, status, created_at"

func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrInvalidTarget
	}

	var req *models.FriendRequest
	var note *models.Notification
	err := inTx(ctx, s.db, "friend request", func(tx Tx) error {
		blocked, err := isBlockedPair(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrUserBlocked
		}

		friends, err := isFriend(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		var pending bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM friend_requests
				WHERE status = 'pending'
				  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
			)`,
			senderID, receiverID,
		).Scan(&pending)
		if err != nil {
			return fmt.Errorf("checking pending requests: %w", err)
		}
		if pending {
			return ErrDuplicatePending
		}

		req, err = scanFriendRequest(tx.QueryRow(ctx,
			`INSERT INTO friend_requests (sender_id, receiver_id, status)
			 VALUES ($1, $2, 'pending')
			 RETURNING `+friendRequestColumns,
			senderID, receiverID,
		))
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("creating friend request: %w", err)
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: receiverID,
			ActorID:     uuidPtr(senderID),
			Type:        models.NotificationFriendRequestSent,
			SubjectRef:  req.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(note)
	return req, nil
}

// RespondRequest accepts or rejects a pending request addressed to actorID.
func (s *FriendService) RespondRequest(ctx context.Context, actorID, requestID uuid.UUID, accept bool) (*models.FriendRequest, error) {
	if accept {
		return s.AcceptRequest(ctx, actorID, requestID)
	}
	return s.RejectRequest(ctx, actorID, requestID)
}

func (s *FriendService) AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.FriendRequestStatusAccepted)
}

func (s *FriendService) RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.FriendRequestStatusRejected)
}

func (s *FriendService) resolve(ctx context.Context, actorID, requestID uuid.UUID, outcome models.FriendRequestStatus) (*models.FriendRequest, error) {
	var req *models.FriendRequest
	var note *models.Notification
	err := inTx(ctx, s.db, "friend response", func(tx Tx) error {
		var err error
		req, err = lockFriendRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != actorID {
			return ErrNotRequestRecipient
		}
		if req.Status != models.FriendRequestStatusPending {
			return ErrRequestNotPending
		}

		if _, err := tx.Exec(ctx, "DELETE FROM friend_requests WHERE id = $1", requestID); err != nil {
			return fmt.Errorf("deleting friend request: %w", err)
		}

		nType := models.NotificationFriendRequestRejected
		if outcome == models.FriendRequestStatusAccepted {
			nType = models.NotificationFriendRequestAccepted
			_, err = tx.Exec(ctx,
				`INSERT INTO friendships (user_id, friend_id)
				 VALUES ($1, $2), ($2, $1)
				 ON CONFLICT DO NOTHING`,
				req.SenderID, req.ReceiverID,
			)
			if err != nil {
				return fmt.Errorf("creating friendship: %w", err)
			}
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: req.SenderID,
			ActorID:     uuidPtr(actorID),
			Type:        nType,
			SubjectRef:  req.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(note)
	req.Status = outcome
	return req, nil
}

// CancelRequest lets the sender withdraw a pending request. No one is notified.
func (s *FriendService) CancelRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	return inTx(ctx, s.db, "friend cancel", func(tx Tx) error {
		req, err := lockFriendRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.SenderID != actorID {
			return ErrNotRequestSender
		}
		if req.Status != models.FriendRequestStatusPending {
			return ErrRequestNotPending
		}
		if _, err := tx.Exec(ctx, "DELETE FROM friend_requests WHERE id = $1", requestID); err != nil {
			return fmt.Errorf("canceling friend request: %w", err)
		}
		return nil
	})
}

func (s *FriendService) Unfriend(ctx context.Context, actorID, otherID uuid.UUID) error {
	var note *models.Notification
	err := inTx(ctx, s.db, "unfriend", func(tx Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM friendships
			 WHERE (user_id = $1 AND friend_id = $2)
			    OR (user_id = $2 AND friend_id = $1)`,
			actorID, otherID,
		)
		if err != nil {
			return fmt.Errorf("removing friendship: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFriends
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: otherID,
			ActorID:     uuidPtr(actorID),
			Type:        models.NotificationFriendRemoved,
			SubjectRef:  actorID.String(),
		})
		return err
	})
	if err != nil {
		return err
	}
	s.notifier.Dispatch(note)
	return nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.Friend], error) {
	sb := psql.Select("f.created_at", "u.id", "u.username", "u.display_name", "u.avatar_ref").
		From("friendships f").
		Join("users u ON u.id = f.friend_id").
		Where("f.user_id = ?", userID)
	sb = pagination.Apply(sb, "f.created_at", "f.friend_id", pagination.Desc, req)

	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.Friend]{}, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	var friends []models.Friend
	for rows.Next() {
		var f models.Friend
		var id uuid.UUID
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(&f.Since, &id, &username, &displayName, &avatarRef); err != nil {
			return pagination.Page[models.Friend]{}, fmt.Errorf("scanning friend: %w", err)
		}
		f.User = newUserSummary(id, username, displayName, avatarRef, s.urls)
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.Friend]{}, fmt.Errorf("iterating friends: %w", err)
	}

	return pagination.Build(friends, req.NormalizedLimit(), func(f models.Friend) pagination.Cursor {
		return pagination.Cursor{SortKey: f.Since, ID: f.User.ID.String()}
	}), nil
}

// ListIncomingRequests returns pending requests addressed to userID, newest first.
func (s *FriendService) ListIncomingRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error) {
	return s.listRequests(ctx, "r.receiver_id", "r.sender_id", userID, req)
}

func (s *FriendService) ListSentRequests(ctx context.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error) {
	return s.listRequests(ctx, "r.sender_id", "r.receiver_id", userID, req)
}

func (s *FriendService) listRequests(ctx context.Context, ownerCol, counterpartCol string, userID uuid.UUID, req pagination.Request) (pagination.Page[models.FriendRequestWithUser], error) {
	sb := psql.Select(
		"r.id", "r.sender_id", "r.receiver_id", "r.status", "r.created_at",
		"u.username", "u.display_name", "u.avatar_ref",
	).
		From("friend_requests r").
		Join("users u ON u.id = "+counterpartCol).
		Where(ownerCol+" = ?", userID).
		Where("r.status = 'pending'")
	sb = pagination.Apply(sb, "r.created_at", "r.id", pagination.Desc, req)

	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.FriendRequestWithUser]{}, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequestWithUser
	for rows.Next() {
		var r models.FriendRequestWithUser
		var status string
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &status, &r.CreatedAt, &username, &displayName, &avatarRef); err != nil {
			return pagination.Page[models.FriendRequestWithUser]{}, fmt.Errorf("scanning friend request: %w", err)
		}
		r.Status = models.FriendRequestStatus(status)
		counterpart := r.SenderID
		if counterpart == userID {
			counterpart = r.ReceiverID
		}
		r.Counterpart = newUserSummary(counterpart, username, displayName, avatarRef, s.urls)
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.FriendRequestWithUser]{}, fmt.Errorf("iterating friend requests: %w", err)
	}

	return pagination.Build(requests, req.NormalizedLimit(), func(r models.FriendRequestWithUser) pagination.Cursor {
		return pagination.Cursor{SortKey: r.CreatedAt, ID: r.ID.String()}
	}), nil
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	return isFriend(ctx, s.db, userID, otherUserID)
}

func isFriend(ctx context.Context, q DBConn, userID, otherUserID uuid.UUID) (bool, error) {
	var friends bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)",
		userID, otherUserID,
	).Scan(&friends)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return friends, nil
}

func lockFriendRequest(ctx context.Context, tx Tx, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := scanFriendRequest(tx.QueryRow(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = $1 FOR UPDATE",
		requestID,
	))
	if isNoRows(err) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return req, nil
}

func scanFriendRequest(row Row) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	var status string
	if err := row.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &status, &req.CreatedAt); err != nil {
		return nil, err
	}
	req.Status = models.FriendRequestStatus(status)
	return req, nil
}
