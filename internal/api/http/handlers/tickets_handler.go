package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/dto"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/service"
	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tasks.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user.ID, req.Task)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListOpen GET /tasks.
func (h *TicketsHandler) ListOpen(c *fiber.Ctx) error {
	tickets, err := h.service.ListOpenOrPartial(c.UserContext())
	return respondTickets(c, tickets, err)
}

// ListMine GET /tasks/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListByParticipant(c.UserContext(), user.ID)
	return respondTickets(c, tickets, err)
}

// ListCreated GET /tasks/created.
func (h *TicketsHandler) ListCreated(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListByCreator(c.UserContext(), user.ID)
	return respondTickets(c, tickets, err)
}

// ListTaken GET /tasks/taken.
func (h *TicketsHandler) ListTaken(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTasksTaken(c.UserContext(), user.ID)
	return respondTickets(c, tickets, err)
}

// GetTicket GET /tasks/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListHistory GET /tasks/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryList(entries)})
}

// ClaimTicket POST /tasks/:id/claim. The assignee comes from the body or the
// assignee_id query parameter and defaults to the caller.
func (h *TicketsHandler) ClaimTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ClaimTicketRequest
	if err := parseBody(c, &req, true); err != nil {
		return err
	}
	assignee := c.Query("assignee_id")
	if req.AssigneeID != nil && *req.AssigneeID != "" {
		assignee = *req.AssigneeID
	}

	ticket, err := h.service.ClaimTicket(c.UserContext(), id, user.ID, assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "task claimed",
		"data":    dto.NewTicketResponse(ticket),
	})
}

// SubmitCompletion POST /tasks/:id/complete.
func (h *TicketsHandler) SubmitCompletion(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.SubmitCompletion(c.UserContext(), id, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "completion submitted for verification",
		"data":    dto.NewTicketResponse(ticket),
	})
}

// VerifyCompletion POST /tasks/:id/verify.
func (h *TicketsHandler) VerifyCompletion(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.VerifyCompletionRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	if req.Approve == nil {
		return apperrors.NewValidationError("approve is required", map[string]any{"field": "approve"})
	}

	ticket, err := h.service.VerifyCompletion(c.UserContext(), id, user.ID, *req.Approve)
	if err != nil {
		return err
	}
	message := "completion rejected"
	if *req.Approve {
		message = "completion approved"
	}
	return c.JSON(fiber.Map{
		"message": message,
		"data":    dto.NewTicketResponse(ticket),
	})
}

func respondTickets(c *fiber.Ctx, tickets []domain.Ticket, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}
