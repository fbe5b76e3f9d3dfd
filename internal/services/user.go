package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
)

// URLResolver turns stored blob references into client-facing URLs.
type URLResolver interface {
	URL(ref string) string
}

type UserService struct {
	db   DBConn
	urls URLResolver
}

func NewUserService(db DBConn, urls URLResolver) *UserService {
	return &UserService{db: db, urls: urls}
}

const userColumns = "id, username, display_name, avatar_ref, gender, email, device_token, created_at, updated_at"

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var gender *string
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarRef, &gender, &user.Email, &user.DeviceToken, &user.CreatedAt, &user.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	if gender != nil {
		g := models.Gender(*gender)
		user.Gender = &g
	}
	return user, nil
}

func (s *UserService) GetSummary(ctx context.Context, id uuid.UUID) (*models.UserSummary, error) {
	summary, err := loadUserSummary(ctx, s.db, id, s.urls)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// RegisterDevice stores the push token for a user. An empty token clears it.
func (s *UserService) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	var value *string
	if token != "" {
		value = &token
	}
	result, err := s.db.Exec(ctx,
		"UPDATE users SET device_token = $2, updated_at = NOW() WHERE id = $1",
		userID, value,
	)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return userExists(ctx, s.db, id)
}

func userExists(ctx context.Context, q DBConn, id uuid.UUID) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return exists, nil
}

func loadUserSummary(ctx context.Context, q DBConn, id uuid.UUID, urls URLResolver) (models.UserSummary, error) {
	var username, displayName string
	var avatarRef *string
	err := q.QueryRow(ctx,
		"SELECT username, display_name, avatar_ref FROM users WHERE id = $1",
		id,
	).Scan(&username, &displayName, &avatarRef)
	if isNoRows(err) {
		return models.UserSummary{}, ErrUserNotFound
	}
	if err != nil {
		return models.UserSummary{}, fmt.Errorf("getting user summary: %w", err)
	}
	return newUserSummary(id, username, displayName, avatarRef, urls), nil
}

func newUserSummary(id uuid.UUID, username, displayName string, avatarRef *string, urls URLResolver) models.UserSummary {
	summary := models.UserSummary{ID: id, Username: username, DisplayName: displayName}
	if avatarRef != nil && *avatarRef != "" && urls != nil {
		summary.AvatarURL = urls.URL(*avatarRef)
	}
	return summary
}

// isBlockedPair reports whether either user has blocked the other.
func isBlockedPair(ctx context.Context, q DBConn, a, b uuid.UUID) (bool, error) {
	var blocked bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`,
		a, b,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("checking block status: %w", err)
	}
	return blocked, nil
}
