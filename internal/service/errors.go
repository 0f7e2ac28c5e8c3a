package service

import (
	"net/http"

	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

// Precondition failures of the engines. Each carries its own code so the HTTP
// boundary never has to look at message text.
var (
	ErrTaskRequired   = apperrors.NewDomainError("VALIDATION_FAILED", "task is required", http.StatusBadRequest, nil)
	ErrSelfRequest    = apperrors.NewDomainError("SELF_REQUEST", "cannot send a friend request to yourself", http.StatusBadRequest, nil)
	ErrNotClaimant    = apperrors.NewForbidden("only a claimant can submit completion")
	ErrNotCreator     = apperrors.NewForbidden("only the ticket creator can verify completion")
	ErrBadCredentials = apperrors.NewUnauthorized("invalid email or password")

	ErrAlreadyFull            = apperrors.NewConflict("ALREADY_FULL", "ticket already has two claimants")
	ErrAlreadyClaimed         = apperrors.NewConflict("ALREADY_CLAIMED", "user already claimed this ticket")
	ErrCompletionPending      = apperrors.NewConflict("COMPLETION_PENDING", "a completion is already awaiting verification")
	ErrAlreadyVerified        = apperrors.NewConflict("ALREADY_VERIFIED", "ticket is already verified")
	ErrNoPendingRequest       = apperrors.NewConflict("NO_PENDING_REQUEST", "ticket has no completion awaiting verification")
	ErrAlreadyPending         = apperrors.NewConflict("ALREADY_PENDING", "a friend request between these users is already pending")
	ErrAlreadyFriends         = apperrors.NewConflict("ALREADY_FRIENDS", "users are already friends")
	ErrNoSuchRequest          = apperrors.NewConflict("NO_SUCH_REQUEST", "no pending friend request from this user")
	ErrEmailTaken             = apperrors.NewConflict("EMAIL_TAKEN", "account exists with this email")
	ErrConcurrentModification = apperrors.NewConflict("CONCURRENT_MODIFICATION", "record changed concurrently, retry the request")
)
