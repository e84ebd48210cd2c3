package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/service"
)

// PTHandler serves the trainer surface. Routes are mounted behind
// AuthorizeRole(PT).
type PTHandler struct {
	userRepo          domain.UserRepository
	planService       *service.PlanService
	assignmentService *service.AssignmentService
	statsService      *service.StatsService
}

func NewPTHandler(
	userRepo domain.UserRepository,
	planService *service.PlanService,
	assignmentService *service.AssignmentService,
	statsService *service.StatsService,
) *PTHandler {
	return &PTHandler{
		userRepo:          userRepo,
		planService:       planService,
		assignmentService: assignmentService,
		statsService:      statsService,
	}
}

// ListClients GET /v1/pt/clients
func (h *PTHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.userRepo.GetClientsByPT(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(clients)
}

// AddClient POST /v1/pt/clients
func (h *PTHandler) AddClient(c *fiber.Ctx) error {
	var req service.AddClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	client, err := h.assignmentService.AddClientByPT(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

// RequestClient POST /v1/pt/clients/:clientId/request
func (h *PTHandler) RequestClient(c *fiber.Ctx) error {
	req, err := h.assignmentService.RequestClient(c.UserContext(), middleware.UserID(c), c.Params("clientId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// CreatePlan POST /v1/pt/plans
func (h *PTHandler) CreatePlan(c *fiber.Ctx) error {
	var plan domain.TrainingPlan
	if err := c.BodyParser(&plan); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	if err := h.planService.CreatePlan(c.UserContext(), middleware.UserID(c), &plan); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// ListPlans GET /v1/pt/plans
func (h *PTHandler) ListPlans(c *fiber.Ctx) error {
	plans, err := h.planService.GetPTPlans(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

// UpdatePlan PUT /v1/pt/plans/:id
func (h *PTHandler) UpdatePlan(c *fiber.Ctx) error {
	var plan domain.TrainingPlan
	if err := c.BodyParser(&plan); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	plan.ID = c.Params("id")

	if err := h.planService.UpdatePlan(c.UserContext(), middleware.UserID(c), &plan); err != nil {
		return err
	}
	return c.JSON(plan)
}

// DeletePlan DELETE /v1/pt/plans/:id
func (h *PTHandler) DeletePlan(c *fiber.Ctx) error {
	err := h.planService.DeletePlan(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "deleted"})
}

// ClientPlans GET /v1/pt/clients/:clientId/plans
func (h *PTHandler) ClientPlans(c *fiber.Ctx) error {
	plans, err := h.planService.GetClientPlans(
		c.UserContext(),
		middleware.UserID(c),
		middleware.Role(c),
		c.Params("clientId"),
	)
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

// ClientHistory GET /v1/pt/clients/:clientId/history
func (h *PTHandler) ClientHistory(c *fiber.Ctx) error {
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

// Dashboard GET /v1/pt/dashboard
func (h *PTHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.statsService.PTDashboard(c.UserContext(), middleware.UserID(c), c.QueryInt("activity_limit"))
	if err != nil {
		return err
	}
	return c.JSON(dashboard)
}
