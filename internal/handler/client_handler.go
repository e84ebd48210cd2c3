package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/service"
)

// ClientHandler serves the client surface. Routes are mounted behind
// AuthorizeRole(CLIENT).
type ClientHandler struct {
	userRepo          domain.UserRepository
	planService       *service.PlanService
	assignmentService *service.AssignmentService
	statsService      *service.StatsService
}

func NewClientHandler(
	userRepo domain.UserRepository,
	planService *service.PlanService,
	assignmentService *service.AssignmentService,
	statsService *service.StatsService,
) *ClientHandler {
	return &ClientHandler{
		userRepo:          userRepo,
		planService:       planService,
		assignmentService: assignmentService,
		statsService:      statsService,
	}
}

// ListPlans GET /v1/client/plans
func (h *ClientHandler) ListPlans(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	plans, err := h.planService.GetClientPlans(c.UserContext(), userID, middleware.Role(c), userID)
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

// GetPlan GET /v1/client/plans/:id
func (h *ClientHandler) GetPlan(c *fiber.Ctx) error {
	plan, err := h.planService.GetPlan(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(plan)
}

// CompletePlan POST /v1/client/plans/:id/complete
// Multipart form: status (required), feedback, proof (image file).
func (h *ClientHandler) CompletePlan(c *fiber.Ctx) error {
	req := service.CompletePlanRequest{
		Status:   c.FormValue("status"),
		Feedback: c.FormValue("feedback"),
	}

	if fileHeader, err := c.FormFile("proof"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proof file"})
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proof file"})
		}
		req.ProofData = data
		req.ProofName = fileHeader.Filename
		req.ProofType = fileHeader.Header.Get("Content-Type")
	}

	completion, err := h.planService.CompletePlan(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(completion)
}

// MyPT GET /v1/client/pt
// The client's assigned trainer; 404 while unassigned.
func (h *ClientHandler) MyPT(c *fiber.Ctx) error {
	client, err := h.userRepo.GetByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	if client.PTID == "" {
		return domain.ErrNotFound
	}

	pt, err := h.userRepo.GetByID(c.UserContext(), client.PTID)
	if err != nil {
		return err
	}
	return c.JSON(pt)
}

// ListPTs GET /v1/client/pts
// Validated trainers the client can pick from when requesting a change.
func (h *ClientHandler) ListPTs(c *fiber.Ctx) error {
	pts, err := h.userRepo.GetByRole(c.UserContext(), domain.RolePT)
	if err != nil {
		return err
	}

	validated := make([]*domain.User, 0, len(pts))
	for _, pt := range pts {
		if pt.Validated {
			validated = append(validated, pt)
		}
	}
	return c.JSON(validated)
}

// RequestPTChange POST /v1/client/pt-change
func (h *ClientHandler) RequestPTChange(c *fiber.Ctx) error {
	var req struct {
		ToPTID string `json:"to_pt_id"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	created, err := h.assignmentService.RequestPTChange(c.UserContext(), middleware.UserID(c), req.ToPTID, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// CancelPTChange DELETE /v1/client/pt-change/:requestId
func (h *ClientHandler) CancelPTChange(c *fiber.Ctx) error {
	err := h.assignmentService.CancelPTChange(c.UserContext(), middleware.UserID(c), c.Params("requestId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request cancelled"})
}

// Dashboard GET /v1/client/dashboard
func (h *ClientHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.statsService.ClientDashboard(c.UserContext(), middleware.UserID(c), c.QueryInt("activity_limit"))
	if err != nil {
		return err
	}
	return c.JSON(dashboard)
}

// History GET /v1/client/history
func (h *ClientHandler) History(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	history, err := h.statsService.ClientHistory(c.UserContext(), userID, middleware.Role(c), userID)
	if err != nil {
		return err
	}
	return c.JSON(history)
}
