package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error kinds. Every domain error unwraps to exactly one of these so callers
// can branch on the category without knowing the specific failure.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
)

type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }
func (e *DomainError) Unwrap() error { return e.Kind }

func newDomainError(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// Relationships
var (
	ErrInvalidTarget         = newDomainError(ErrValidation, "cannot target yourself")
	ErrAlreadyFriends        = newDomainError(ErrConflict, "already friends")
	ErrDuplicatePending      = newDomainError(ErrConflict, "a pending friend request already exists")
	ErrFriendRequestNotFound = newDomainError(ErrNotFound, "friend request not found")
	ErrNotRequestRecipient   = newDomainError(ErrNotAuthorized, "only the recipient can respond to this request")
	ErrNotRequestSender      = newDomainError(ErrNotAuthorized, "only the sender can cancel this request")
	ErrRequestNotPending     = newDomainError(ErrInvalidState, "friend request is not pending")
	ErrNotFriends            = newDomainError(ErrNotFound, "you are not friends with this user")
	ErrUserBlocked           = newDomainError(ErrNotAuthorized, "user is blocked")
	ErrUserNotFound          = newDomainError(ErrNotFound, "user not found")
	ErrBlockExists           = newDomainError(ErrConflict, "user is already blocked")
	ErrBlockNotFound         = newDomainError(ErrNotFound, "block not found")
)

// Communities
var (
	ErrCommunityNotFound    = newDomainError(ErrNotFound, "community not found")
	ErrGenderRestricted     = newDomainError(ErrNotAuthorized, "community is restricted to another gender")
	ErrAlreadyMember        = newDomainError(ErrConflict, "already a member of this community")
	ErrDuplicateJoinRequest = newDomainError(ErrConflict, "a join request is already pending")
	ErrNotCommunityAdmin    = newDomainError(ErrNotAuthorized, "only the community admin can do this")
	ErrMembershipNotFound   = newDomainError(ErrNotFound, "membership not found")
	ErrMembershipNotPending = newDomainError(ErrInvalidState, "membership is not pending")
	ErrAdminCannotLeave     = newDomainError(ErrInvalidState, "the admin cannot leave their community")
	ErrNotMember            = newDomainError(ErrNotFound, "not a member of this community")
)

// Messaging
var (
	ErrConversationNotFound   = newDomainError(ErrNotFound, "conversation not found")
	ErrNotParticipant         = newDomainError(ErrNotAuthorized, "not a participant in this conversation")
	ErrMessageNotFound        = newDomainError(ErrNotFound, "message not found")
	ErrNotMessageSender       = newDomainError(ErrNotAuthorized, "only the sender can delete this message")
	ErrCannotMarkOwnMessage   = newDomainError(ErrInvalidState, "cannot mark your own message read")
	ErrReplyParentNotFound    = newDomainError(ErrNotFound, "reply parent not found")
	ErrReplyCrossConversation = newDomainError(ErrValidation, "reply parent belongs to another conversation")
	ErrMessageBody            = newDomainError(ErrValidation, "message needs exactly one of content or image")
	ErrMessageTooLong         = newDomainError(ErrValidation, "message content must be 1-2000 characters")
)

// Letters
var (
	ErrLetterNotFound     = newDomainError(ErrNotFound, "letter not found")
	ErrLetterNotDelivered = newDomainError(ErrInvalidState, "letter has not been delivered")
	ErrNotLetterRecipient = newDomainError(ErrNotAuthorized, "only the recipient can delete this letter")
)

// Notifications and reactions
var (
	ErrNotificationNotFound = newDomainError(ErrNotFound, "notification not found")
	ErrPostNotFound         = newDomainError(ErrNotFound, "post not found")
	ErrCannotReactToOwn     = newDomainError(ErrValidation, "cannot react to your own post")
	ErrInvalidEmoji         = newDomainError(ErrValidation, "emoji is not allowed")
	ErrReactionNotFound     = newDomainError(ErrNotFound, "reaction not found")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError converts validator output into an ErrValidation domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newDomainError(ErrValidation, err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return newDomainError(ErrValidation, strings.Join(parts, "; "))
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}
