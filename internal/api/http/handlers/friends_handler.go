package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/dto"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/service"
)

// FriendsHandler exposes the friend request endpoints.
type FriendsHandler struct {
	service *service.FriendshipService
}

// NewFriendsHandler constructs handler.
func NewFriendsHandler(friendshipService *service.FriendshipService) *FriendsHandler {
	return &FriendsHandler{service: friendshipService}
}

// SendRequest POST /friends/:id/request.
func (h *FriendsHandler) SendRequest(c *fiber.Ctx) error {
	return h.transition(c, h.service.SendRequest, "friend request sent")
}

// ApproveRequest POST /friends/:id/approve.
func (h *FriendsHandler) ApproveRequest(c *fiber.Ctx) error {
	return h.transition(c, h.service.ApproveRequest, "friend request approved")
}

// RejectRequest POST /friends/:id/reject.
func (h *FriendsHandler) RejectRequest(c *fiber.Ctx) error {
	return h.transition(c, h.service.RejectRequest, "friend request rejected")
}

// ListFriends GET /friends.
func (h *FriendsHandler) ListFriends(c *fiber.Ctx) error {
	return h.list(c, h.service.ListFriends)
}

// ListReceived GET /friends/requests.
func (h *FriendsHandler) ListReceived(c *fiber.Ctx) error {
	return h.list(c, h.service.ListReceivedRequests)
}

// ListSent GET /friends/requests/sent.
func (h *FriendsHandler) ListSent(c *fiber.Ctx) error {
	return h.list(c, h.service.ListSentRequests)
}

func (h *FriendsHandler) transition(c *fiber.Ctx, op func(ctx context.Context, callerID, otherID string) error, message string) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	other, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := op(c.UserContext(), user.ID, other); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": message})
}

func (h *FriendsHandler) list(c *fiber.Ctx, op func(ctx context.Context, userID string) ([]domain.User, error)) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := op(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserSummaries(users)})
}
