package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/lock"
	"github.com/spec-kit/taskboard/internal/repository"
	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

// FriendshipService runs the friend request state machine. Every transition
// updates both users' records in one transaction so the graph stays symmetric.
type FriendshipService struct {
	txRunner
}

// FriendshipDependencies bundles collaborators for the friendship service.
type FriendshipDependencies struct {
	Store      repository.Store
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	MaxRetries int
}

// NewFriendshipService constructs the service.
func NewFriendshipService(deps FriendshipDependencies) *FriendshipService {
	return &FriendshipService{
		txRunner: newTxRunner(deps.Store, deps.Locker, deps.Dispatcher, deps.Logger, deps.MaxRetries),
	}
}

// SendRequest records a pending request from senderID to recipientID.
func (s *FriendshipService) SendRequest(ctx context.Context, senderID, recipientID string) error {
	if senderID == recipientID {
		return ErrSelfRequest
	}

	err := s.run(ctx, lock.PairKey(senderID, recipientID), func(ctx context.Context, tx repository.Tx) error {
		users, err := tx.LockUsers(ctx, senderID, recipientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("user", map[string]any{"id": recipientID})
			}
			return err
		}
		sender, recipient := users[senderID], users[recipientID]

		if sender.IsFriend(recipientID) {
			return ErrAlreadyFriends
		}
		if sender.HasSentRequestTo(recipientID) || sender.HasRequestFrom(recipientID) {
			return ErrAlreadyPending
		}

		sender.AddSentRequest(recipientID)
		recipient.AddReceivedRequest(senderID)
		return saveUsers(ctx, tx, sender, recipient)
	})
	if err != nil {
		return err
	}

	s.logger.Info("friend request sent", zap.String("from", senderID), zap.String("to", recipientID))
	s.publish(ctx, events.Event{
		Type:    events.EventFriendRequestSent,
		Subject: recipientID,
		ActorID: senderID,
		Payload: events.FriendRequestPayload{FromUserID: senderID, ToUserID: recipientID},
	})
	return nil
}

// ApproveRequest accepts the pending request requesterID sent to approverID.
func (s *FriendshipService) ApproveRequest(ctx context.Context, approverID, requesterID string) error {
	return s.resolve(ctx, approverID, requesterID, true)
}

// RejectRequest discards the pending request requesterID sent to approverID.
func (s *FriendshipService) RejectRequest(ctx context.Context, approverID, requesterID string) error {
	return s.resolve(ctx, approverID, requesterID, false)
}

func (s *FriendshipService) resolve(ctx context.Context, approverID, requesterID string, approve bool) error {
	if approverID == requesterID {
		return ErrNoSuchRequest
	}

	err := s.run(ctx, lock.PairKey(approverID, requesterID), func(ctx context.Context, tx repository.Tx) error {
		users, err := tx.LockUsers(ctx, approverID, requesterID)
		if err != nil {
			// A user that does not exist cannot have sent a request.
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoSuchRequest
			}
			return err
		}
		approver, requester := users[approverID], users[requesterID]

		if !approver.HasRequestFrom(requesterID) {
			return ErrNoSuchRequest
		}

		approver.ClearPendingWith(requesterID)
		requester.ClearPendingWith(approverID)
		if approve {
			approver.AddFriend(requesterID)
			requester.AddFriend(approverID)
		}
		return saveUsers(ctx, tx, approver, requester)
	})
	if err != nil {
		return err
	}

	eventType := events.EventFriendRequestRejected
	if approve {
		eventType = events.EventFriendRequestApproved
	}
	s.logger.Info("friend request resolved",
		zap.String("from", requesterID),
		zap.String("to", approverID),
		zap.Bool("approved", approve))
	s.publish(ctx, events.Event{
		Type:    eventType,
		Subject: requesterID,
		ActorID: approverID,
		Payload: events.FriendRequestPayload{FromUserID: requesterID, ToUserID: approverID},
	})
	return nil
}

// ListFriends returns the user's friends.
func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]domain.User, error) {
	return s.listRelated(ctx, userID, func(u *domain.User) []string { return u.Friends })
}

// ListReceivedRequests returns users with a pending request to userID.
func (s *FriendshipService) ListReceivedRequests(ctx context.Context, userID string) ([]domain.User, error) {
	return s.listRelated(ctx, userID, func(u *domain.User) []string { return u.FriendRequestsReceived })
}

// ListSentRequests returns users userID has a pending request to.
func (s *FriendshipService) ListSentRequests(ctx context.Context, userID string) ([]domain.User, error) {
	return s.listRelated(ctx, userID, func(u *domain.User) []string { return u.FriendRequestsSent })
}

func (s *FriendshipService) listRelated(ctx context.Context, userID string, pick func(*domain.User) []string) ([]domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, s.storageError(err)
	}
	users, err := s.store.Users().ListByIDs(ctx, pick(user))
	if err != nil {
		return nil, s.storageError(err)
	}
	return users, nil
}

func saveUsers(ctx context.Context, tx repository.Tx, users ...*domain.User) error {
	for _, user := range users {
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
