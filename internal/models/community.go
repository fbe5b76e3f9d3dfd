package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipRole string

const (
	MembershipRoleAdmin   MembershipRole = "admin"
	MembershipRoleMember  MembershipRole = "member"
	MembershipRolePending MembershipRole = "pending"
)

type Community struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	GenderRestriction *Gender   `json:"gender_restriction,omitempty"`
	CreatedBy         uuid.UUID `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// Admits reports whether a user of gender g may join. An unrestricted
// community admits everyone; a restricted one requires a matching gender.
func (c *Community) Admits(g *Gender) bool {
	if c.GenderRestriction == nil {
		return true
	}
	return g != nil && *g == *c.GenderRestriction
}

type CommunityMembership struct {
	ID             uuid.UUID      `json:"id"`
	CommunityID    uuid.UUID      `json:"community_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Role           MembershipRole `json:"role"`
	RequestMessage *string        `json:"request_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type MemberWithUser struct {
	CommunityMembership
	User UserSummary `json:"user"`
}

type CreateCommunityParams struct {
	Name              string  `json:"name" validate:"required,min=3,max=60"`
	Description       string  `json:"description" validate:"max=500"`
	GenderRestriction *Gender `json:"gender_restriction,omitempty" validate:"omitempty,oneof=female male other"`
}

type JoinCommunityParams struct {
	Message *string `json:"message,omitempty" validate:"omitempty,max=500"`
}
