package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/pagination"
)

type CommunityService struct {
	db       DB
	notifier Notifier
	urls     URLResolver
}

func NewCommunityService(db DB, notifier Notifier, urls URLResolver) *CommunityService {
	return &CommunityService{db: db, notifier: notifier, urls: urls}
}

const (
	communityColumns  = "id, name, description, gender_restriction, created_by, created_at"
	membershipColumns = "id, community_id, user_id, role, request_message, created_at"
)

// CreateCommunity creates the community with its creator as the sole admin.
// A creator who does not satisfy the community's own restriction is refused.
func (s *CommunityService) CreateCommunity(ctx context.Context, creatorID uuid.UUID, params models.CreateCommunityParams) (*models.Community, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Description = strings.TrimSpace(params.Description)
	if err := validateStruct(params); err != nil {
		return nil, err
	}

	var community *models.Community
	err := inTx(ctx, s.db, "create community", func(tx Tx) error {
		gender, err := userGender(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		candidate := models.Community{GenderRestriction: params.GenderRestriction}
		if !candidate.Admits(gender) {
			return ErrGenderRestricted
		}

		community, err = scanCommunity(tx.QueryRow(ctx,
			`INSERT INTO communities (name, description, gender_restriction, created_by)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+communityColumns,
			params.Name, params.Description, genderString(params.GenderRestriction), creatorID,
		))
		if err != nil {
			return fmt.Errorf("creating community: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO community_memberships (community_id, user_id, role)
			 VALUES ($1, $2, 'admin')`,
			community.ID, creatorID,
		)
		if err != nil {
			return fmt.Errorf("creating admin membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return community, nil
}

func (s *CommunityService) GetCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	return getCommunity(ctx, s.db, communityID)
}

// RequestToJoin files a pending membership and tells the admin. Restricted
// communities reject mismatched users before anything is written.
func (s *CommunityService) RequestToJoin(ctx context.Context, userID, communityID uuid.UUID, params models.JoinCommunityParams) (*models.CommunityMembership, error) {
	if params.Message != nil {
		trimmed := strings.TrimSpace(*params.Message)
		params.Message = &trimmed
		if trimmed == "" {
			params.Message = nil
		}
	}
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	message := params.Message

	var membership *models.CommunityMembership
	var note *models.Notification
	err := inTx(ctx, s.db, "join request", func(tx Tx) error {
		community, err := getCommunity(ctx, tx, communityID)
		if err != nil {
			return err
		}

		gender, err := userGender(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !community.Admits(gender) {
			return ErrGenderRestricted
		}

		var role string
		err = tx.QueryRow(ctx,
			"SELECT role FROM community_memberships WHERE community_id = $1 AND user_id = $2",
			communityID, userID,
		).Scan(&role)
		switch {
		case err == nil && models.MembershipRole(role) == models.MembershipRolePending:
			return ErrDuplicateJoinRequest
		case err == nil:
			return ErrAlreadyMember
		case !isNoRows(err):
			return fmt.Errorf("checking membership: %w", err)
		}

		membership, err = scanMembership(tx.QueryRow(ctx,
			`INSERT INTO community_memberships (community_id, user_id, role, request_message)
			 VALUES ($1, $2, 'pending', $3)
			 RETURNING `+membershipColumns,
			communityID, userID, message,
		))
		if isUniqueViolation(err) {
			return ErrDuplicateJoinRequest
		}
		if err != nil {
			return fmt.Errorf("creating join request: %w", err)
		}

		var adminID uuid.UUID
		err = tx.QueryRow(ctx,
			"SELECT user_id FROM community_memberships WHERE community_id = $1 AND role = 'admin'",
			communityID,
		).Scan(&adminID)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("finding community admin: %w", err)
		}

		note, err = s.notifier.Record(ctx, tx, EmitParams{
			RecipientID: adminID,
			ActorID:     uuidPtr(userID),
			Type:        models.NotificationCommunityJoinRequest,
			SubjectRef:  membership.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(note)
	return membership, nil
}

// AcceptJoin promotes a pending membership to member.
func (s *CommunityService) AcceptJoin(ctx context.Context, actorID, membershipID uuid.UUID) (*models.CommunityMembership, error) {
	var membership *models.CommunityMembership
	err := inTx(ctx, s.db, "accept join", func(tx Tx) error {
		var err error
		membership, err = s.pendingForAdmin(ctx, tx, actorID, membershipID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE community_memberships SET role = 'member' WHERE id = $1", membershipID); err != nil {
			return fmt.Errorf("accepting join request: %w", err)
		}
		membership.Role = models.MembershipRoleMember
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *CommunityService) RejectJoin(ctx context.Context, actorID, membershipID uuid.UUID) error {
	return inTx(ctx, s.db, "reject join", func(tx Tx) error {
		if _, err := s.pendingForAdmin(ctx, tx, actorID, membershipID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM community_memberships WHERE id = $1", membershipID); err != nil {
			return fmt.Errorf("rejecting join request: %w", err)
		}
		return nil
	})
}

func (s *CommunityService) pendingForAdmin(ctx context.Context, tx Tx, actorID, membershipID uuid.UUID) (*models.CommunityMembership, error) {
	membership, err := scanMembership(tx.QueryRow(ctx,
		"SELECT "+membershipColumns+" FROM community_memberships WHERE id = $1 FOR UPDATE",
		membershipID,
	))
	if isNoRows(err) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting membership: %w", err)
	}

	admin, err := isCommunityAdmin(ctx, tx, membership.CommunityID, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, ErrNotCommunityAdmin
	}
	if membership.Role != models.MembershipRolePending {
		return nil, ErrMembershipNotPending
	}
	return membership, nil
}

// Leave removes a regular member. Admins cannot leave; pending requesters are
// not members yet.
func (s *CommunityService) Leave(ctx context.Context, actorID, communityID uuid.UUID) error {
	var role string
	err := s.db.QueryRow(ctx,
		"SELECT role FROM community_memberships WHERE community_id = $1 AND user_id = $2",
		communityID, actorID,
	).Scan(&role)
	if isNoRows(err) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("getting membership: %w", err)
	}

	switch models.MembershipRole(role) {
	case models.MembershipRoleAdmin:
		return ErrAdminCannotLeave
	case models.MembershipRolePending:
		return ErrNotMember
	}

	result, err := s.db.Exec(ctx,
		"DELETE FROM community_memberships WHERE community_id = $1 AND user_id = $2 AND role = 'member'",
		communityID, actorID,
	)
	if err != nil {
		return fmt.Errorf("leaving community: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// DeleteCommunity removes the community with its discussions and memberships.
func (s *CommunityService) DeleteCommunity(ctx context.Context, actorID, communityID uuid.UUID) error {
	return inTx(ctx, s.db, "delete community", func(tx Tx) error {
		if _, err := getCommunity(ctx, tx, communityID); err != nil {
			return err
		}
		admin, err := isCommunityAdmin(ctx, tx, communityID, actorID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNotCommunityAdmin
		}

		if _, err := tx.Exec(ctx, "DELETE FROM discussions WHERE community_id = $1", communityID); err != nil {
			return fmt.Errorf("deleting discussions: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM community_memberships WHERE community_id = $1", communityID); err != nil {
			return fmt.Errorf("deleting memberships: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM communities WHERE id = $1", communityID); err != nil {
			return fmt.Errorf("deleting community: %w", err)
		}
		return nil
	})
}

// ListMembers returns the admin and members in join order.
func (s *CommunityService) ListMembers(ctx context.Context, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error) {
	if _, err := getCommunity(ctx, s.db, communityID); err != nil {
		return pagination.Page[models.MemberWithUser]{}, err
	}
	return s.listMemberships(ctx, communityID, []string{"admin", "member"}, req)
}

// ListJoinRequests is visible to the admin only, oldest request first.
func (s *CommunityService) ListJoinRequests(ctx context.Context, actorID, communityID uuid.UUID, req pagination.Request) (pagination.Page[models.MemberWithUser], error) {
	if _, err := getCommunity(ctx, s.db, communityID); err != nil {
		return pagination.Page[models.MemberWithUser]{}, err
	}
	admin, err := isCommunityAdmin(ctx, s.db, communityID, actorID)
	if err != nil {
		return pagination.Page[models.MemberWithUser]{}, err
	}
	if !admin {
		return pagination.Page[models.MemberWithUser]{}, ErrNotCommunityAdmin
	}
	return s.listMemberships(ctx, communityID, []string{"pending"}, req)
}

func (s *CommunityService) listMemberships(ctx context.Context, communityID uuid.UUID, roles []string, req pagination.Request) (pagination.Page[models.MemberWithUser], error) {
	sb := psql.Select(
		"m.id", "m.community_id", "m.user_id", "m.role", "m.request_message", "m.created_at",
		"u.username", "u.display_name", "u.avatar_ref",
	).
		From("community_memberships m").
		Join("users u ON u.id = m.user_id").
		Where("m.community_id = ?", communityID).
		Where(map[string]interface{}{"m.role": roles})
	sb = pagination.Apply(sb, "m.created_at", "m.id", pagination.Asc, req)

	rows, err := queryBuilt(ctx, s.db, sb)
	if err != nil {
		return pagination.Page[models.MemberWithUser]{}, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var members []models.MemberWithUser
	for rows.Next() {
		var m models.MemberWithUser
		var role string
		var username, displayName string
		var avatarRef *string
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.UserID, &role, &m.RequestMessage, &m.CreatedAt, &username, &displayName, &avatarRef); err != nil {
			return pagination.Page[models.MemberWithUser]{}, fmt.Errorf("scanning membership: %w", err)
		}
		m.Role = models.MembershipRole(role)
		m.User = newUserSummary(m.UserID, username, displayName, avatarRef, s.urls)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.MemberWithUser]{}, fmt.Errorf("iterating memberships: %w", err)
	}

	return pagination.Build(members, req.NormalizedLimit(), func(m models.MemberWithUser) pagination.Cursor {
		return pagination.Cursor{SortKey: m.CreatedAt, ID: m.ID.String()}
	}), nil
}

func getCommunity(ctx context.Context, q DBConn, communityID uuid.UUID) (*models.Community, error) {
	community, err := scanCommunity(q.QueryRow(ctx,
		"SELECT "+communityColumns+" FROM communities WHERE id = $1",
		communityID,
	))
	if isNoRows(err) {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting community: %w", err)
	}
	return community, nil
}

func isCommunityAdmin(ctx context.Context, q DBConn, communityID, userID uuid.UUID) (bool, error) {
	var admin bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM community_memberships
			WHERE community_id = $1 AND user_id = $2 AND role = 'admin'
		)`,
		communityID, userID,
	).Scan(&admin)
	if err != nil {
		return false, fmt.Errorf("checking community admin: %w", err)
	}
	return admin, nil
}

func userGender(ctx context.Context, q DBConn, userID uuid.UUID) (*models.Gender, error) {
	var gender *string
	err := q.QueryRow(ctx, "SELECT gender FROM users WHERE id = $1", userID).Scan(&gender)
	if isNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user gender: %w", err)
	}
	if gender == nil {
		return nil, nil
	}
	g := models.Gender(*gender)
	return &g, nil
}

func genderString(g *models.Gender) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

func scanCommunity(row Row) (*models.Community, error) {
	c := &models.Community{}
	var restriction *string
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &restriction, &c.CreatedBy, &c.CreatedAt); err != nil {
		return nil, err
	}
	if restriction != nil {
		g := models.Gender(*restriction)
		c.GenderRestriction = &g
	}
	return c, nil
}

func scanMembership(row Row) (*models.CommunityMembership, error) {
	m := &models.CommunityMembership{}
	var role string
	if err := row.Scan(&m.ID, &m.CommunityID, &m.UserID, &role, &m.RequestMessage, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.MembershipRole(role)
	return m, nil
}
