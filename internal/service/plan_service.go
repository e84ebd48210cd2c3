package service

import (
	"context"
	"fmt"
	"time"

	"github.com/trainlink/trainlink/internal/domain"
)

// WorkoutNotifier pushes a best-effort completion alert to the
// assigned trainer. Satisfied by realtime.Dispatcher.
type WorkoutNotifier interface {
	NotifyWorkoutCompleted(ptID, clientName, planName string) bool
}

// PlanService owns training-plan CRUD and the completion path.
type PlanService struct {
	planRepo domain.PlanRepository
	userRepo domain.UserRepository
	media    domain.MediaStore
	notifier WorkoutNotifier
}

// NewPlanService creates a new plan service. media may be nil when no
// object store is configured; proof images are then skipped.
func NewPlanService(
	planRepo domain.PlanRepository,
	userRepo domain.UserRepository,
	media domain.MediaStore,
	notifier WorkoutNotifier,
) *PlanService {
	return &PlanService{
		planRepo: planRepo,
		userRepo: userRepo,
		media:    media,
		notifier: notifier,
	}
}

// CreatePlan creates a plan for one of the trainer's own clients.
func (s *PlanService) CreatePlan(ctx context.Context, ptID string, plan *domain.TrainingPlan) error {
	plan.PTID = ptID
	if err := plan.Validate(); err != nil {
		return err
	}

	client, err := s.userRepo.GetByID(ctx, plan.ClientID)
	if err != nil {
		return err
	}
	if client.Role != domain.RoleClient || client.PTID != ptID {
		return fmt.Errorf("client is not assigned to this trainer: %w", domain.ErrForbidden)
	}

	return s.planRepo.Create(ctx, plan)
}

// GetPlan fetches a plan the caller is allowed to see: the owning
// trainer, the plan's client, or an admin.
func (s *PlanService) GetPlan(ctx context.Context, callerID, callerRole, planID string) (*domain.TrainingPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !canAccessPlan(callerID, callerRole, plan) {
		return nil, domain.ErrForbidden
	}
	return plan, nil
}

// UpdatePlan replaces title, day and exercise list. Only the owning
// trainer may update.
func (s *PlanService) UpdatePlan(ctx context.Context, ptID string, plan *domain.TrainingPlan) error {
	existing, err := s.planRepo.GetByID(ctx, plan.ID)
	if err != nil {
		return err
	}
	if existing.PTID != ptID {
		return domain.ErrForbidden
	}

	plan.ClientID = existing.ClientID
	plan.PTID = existing.PTID
	if err := plan.Validate(); err != nil {
		return err
	}
	return s.planRepo.Update(ctx, plan)
}

// DeletePlan removes a plan; allowed for the owning trainer or an admin.
func (s *PlanService) DeletePlan(ctx context.Context, callerID, callerRole, planID string) error {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if callerRole != domain.RoleAdmin && plan.PTID != callerID {
		return domain.ErrForbidden
	}
	return s.planRepo.Delete(ctx, planID)
}

// GetClientPlans lists a client's plans, scoped by the caller's role.
func (s *PlanService) GetClientPlans(ctx context.Context, callerID, callerRole, clientID string) ([]*domain.TrainingPlan, error) {
	switch callerRole {
	case domain.RoleAdmin:
	case domain.RoleClient:
		if callerID != clientID {
			return nil, domain.ErrForbidden
		}
	case domain.RolePT:
		client, err := s.userRepo.GetByID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if client.PTID != callerID {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrForbidden
	}
	return s.planRepo.GetByClient(ctx, clientID)
}

// GetPTPlans lists every plan owned by the trainer.
func (s *PlanService) GetPTPlans(ctx context.Context, ptID string) ([]*domain.TrainingPlan, error) {
	return s.planRepo.GetByPT(ctx, ptID)
}

// CompletePlanRequest carries one completion submission.
type CompletePlanRequest struct {
	Status    string
	Feedback  string
	ProofData []byte
	ProofName string
	ProofType string
}

// CompletePlan appends a completion to the client's own plan, stores
// the optional proof image, and notifies the trainer if online. The
// completions array is the single source of truth; the latest view is
// derived on read.
func (s *PlanService) CompletePlan(ctx context.Context, clientID, planID string, req CompletePlanRequest) (*domain.Completion, error) {
	if !domain.ValidCompletionStatus(req.Status) {
		return nil, fmt.Errorf("status must be completed, late or failed: %w", domain.ErrValidation)
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.ClientID != clientID {
		return nil, domain.ErrForbidden
	}

	completion := domain.Completion{
		Date:     time.Now(),
		Status:   req.Status,
		Feedback: req.Feedback,
	}

	if len(req.ProofData) > 0 && s.media != nil {
		filename := fmt.Sprintf("completions/%s/%d_%s", planID, completion.Date.UnixMilli(), req.ProofName)
		url, err := s.media.Upload(ctx, req.ProofData, filename, req.ProofType)
		if err != nil {
			return nil, fmt.Errorf("failed to store proof image: %w", err)
		}
		completion.ProofImageURL = url
	}

	if err := s.planRepo.AppendCompletion(ctx, planID, completion); err != nil {
		return nil, err
	}

	// Best-effort: dropped when the trainer is offline.
	if s.notifier != nil && plan.PTID != "" {
		clientName := clientID
		if client, err := s.userRepo.GetByID(ctx, clientID); err == nil {
			clientName = client.Name
		}
		s.notifier.NotifyWorkoutCompleted(plan.PTID, clientName, plan.Title)
	}

	return &completion, nil
}

func canAccessPlan(callerID, callerRole string, plan *domain.TrainingPlan) bool {
	switch callerRole {
	case domain.RoleAdmin:
		return true
	case domain.RolePT:
		return plan.PTID == callerID
	case domain.RoleClient:
		return plan.ClientID == callerID
	}
	return false
}
