package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/service"
)

// AdminHandler serves the admin surface: PT validation, the two
// approval queues and the global dashboard. Routes are mounted behind
// AuthorizeRole(ADMIN).
type AdminHandler struct {
	userRepo          domain.UserRepository
	assignmentService *service.AssignmentService
	statsService      *service.StatsService
}

func NewAdminHandler(
	userRepo domain.UserRepository,
	assignmentService *service.AssignmentService,
	statsService *service.StatsService,
) *AdminHandler {
	return &AdminHandler{
		userRepo:          userRepo,
		assignmentService: assignmentService,
		statsService:      statsService,
	}
}

// ListUsers GET /v1/admin/users?role=PT
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	role := c.Query("role")

	var (
		users []*domain.User
		err   error
	)
	if role != "" {
		users, err = h.userRepo.GetByRole(c.UserContext(), role)
	} else {
		users, err = h.userRepo.GetAll(c.UserContext())
	}
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// ListPendingPTs GET /v1/admin/pts/pending
func (h *AdminHandler) ListPendingPTs(c *fiber.Ctx) error {
	pts, err := h.userRepo.GetByRole(c.UserContext(), domain.RolePT)
	if err != nil {
		return err
	}

	pending := make([]*domain.User, 0)
	for _, pt := range pts {
		if !pt.Validated {
			pending = append(pending, pt)
		}
	}
	return c.JSON(pending)
}

// ValidatePT POST /v1/admin/pts/:id/validate
func (h *AdminHandler) ValidatePT(c *fiber.Ctx) error {
	ptID := c.Params("id")

	pt, err := h.userRepo.GetByID(c.UserContext(), ptID)
	if err != nil {
		return err
	}
	if pt.Role != domain.RolePT {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user is not a trainer"})
	}

	if err := h.userRepo.SetValidated(c.UserContext(), ptID, true); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "trainer validated"})
}

// RejectPT POST /v1/admin/pts/:id/reject
// A rejected registration is removed entirely; the email becomes free
// to register again.
func (h *AdminHandler) RejectPT(c *fiber.Ctx) error {
	ptID := c.Params("id")

	pt, err := h.userRepo.GetByID(c.UserContext(), ptID)
	if err != nil {
		return err
	}
	if pt.Role != domain.RolePT || pt.Validated {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user is not a pending trainer"})
	}

	if err := h.userRepo.Delete(c.UserContext(), ptID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "trainer registration rejected"})
}

// DeleteUser DELETE /v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")

	user, err := h.userRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	// Keep the denormalized counter consistent when removing a client.
	if user.Role == domain.RoleClient && user.PTID != "" {
		_ = h.userRepo.IncClientCount(c.UserContext(), user.PTID, -1)
	}

	if err := h.userRepo.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "deleted"})
}

// PendingPTChanges GET /v1/admin/requests/pt-changes
func (h *AdminHandler) PendingPTChanges(c *fiber.Ctx) error {
	users, err := h.assignmentService.PendingPTChangeRequests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// ApprovePTChange POST /v1/admin/requests/pt-changes/:clientId/:requestId/approve
func (h *AdminHandler) ApprovePTChange(c *fiber.Ctx) error {
	err := h.assignmentService.ApprovePTChange(
		c.UserContext(),
		middleware.UserID(c),
		c.Params("clientId"),
		c.Params("requestId"),
	)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request approved"})
}

// RejectPTChange POST /v1/admin/requests/pt-changes/:clientId/:requestId/reject
func (h *AdminHandler) RejectPTChange(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req) // body is optional

	err := h.assignmentService.RejectPTChange(
		c.UserContext(),
		middleware.UserID(c),
		c.Params("clientId"),
		c.Params("requestId"),
		req.Reason,
	)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request rejected"})
}

// ApproveClientRequest POST /v1/admin/requests/clients/:clientId/:requestId/approve
func (h *AdminHandler) ApproveClientRequest(c *fiber.Ctx) error {
	err := h.assignmentService.ApproveClientRequest(
		c.UserContext(),
		middleware.UserID(c),
		c.Params("clientId"),
		c.Params("requestId"),
	)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request approved"})
}

// RejectClientRequest POST /v1/admin/requests/clients/:clientId/:requestId/reject
func (h *AdminHandler) RejectClientRequest(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)

	err := h.assignmentService.RejectClientRequest(
		c.UserContext(),
		middleware.UserID(c),
		c.Params("clientId"),
		c.Params("requestId"),
		req.Reason,
	)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request rejected"})
}

// Dashboard GET /v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.statsService.GlobalDashboard(c.UserContext(), c.QueryInt("activity_limit"))
	if err != nil {
		return err
	}
	return c.JSON(dashboard)
}

// ClientHistory GET /v1/admin/clients/:clientId/history
func (h *AdminHandler) ClientHistory(c *fiber.Ctx) error {
	history, err := h.statsService.ClientHistory(
		c.UserContext(),
		middleware.UserID(c),
		middleware.Role(c),
		c.Params("clientId"),
	)
	if err != nil {
		return err
	}
	return c.JSON(history)
}
