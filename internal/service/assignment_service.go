package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trainlink/trainlink/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AssignmentService owns the trainer/client roster: direct client
// creation by a PT and the two admin-approved state machines
// (PT-change requests and client requests). Both machines share the
// same shape: pending -> approved | rejected, terminal states retained
// as history.
//
// Counter maintenance uses the repository's atomic increment, so two
// concurrent approvals touching the same trainer cannot interleave a
// read-modify-write; the decrement floors at zero.
type AssignmentService struct {
	userRepo domain.UserRepository
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(userRepo domain.UserRepository) *AssignmentService {
	return &AssignmentService{userRepo: userRepo}
}

// AddClientRequest carries the params for a PT-created client account.
type AddClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddClientByPT creates a new CLIENT user already assigned to the
// trainer and bumps the trainer's client count.
func (s *AssignmentService) AddClientByPT(ctx context.Context, ptID string, req AddClientRequest) (*domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 6 {
		return nil, fmt.Errorf("name, email and a password of at least 6 characters are required: %w", domain.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	client := &domain.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		Role:      domain.RoleClient,
		Validated: true,
		PTID:      ptID,
	}
	if err := s.userRepo.Create(ctx, client); err != nil {
		return nil, err
	}

	if err := s.userRepo.IncClientCount(ctx, ptID, 1); err != nil {
		return nil, err
	}
	return client, nil
}

// --- PT-change requests (client asks to switch trainers) ---

// RequestPTChange creates a pending request to move the client to
// another trainer. A client holds at most one pending request at a
// time.
func (s *AssignmentService) RequestPTChange(ctx context.Context, clientID, toPTID, reason string) (*domain.PTChangeRequest, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, existing := range client.PTChangeRequests {
		if existing.IsPending() {
			return nil, fmt.Errorf("a pending trainer change request already exists: %w", domain.ErrStateConflict)
		}
	}

	if toPTID == client.PTID {
		return nil, fmt.Errorf("requested trainer is already assigned: %w", domain.ErrValidation)
	}

	toPT, err := s.userRepo.GetByID(ctx, toPTID)
	if err != nil {
		return nil, err
	}
	if toPT.Role != domain.RolePT || !toPT.Validated {
		return nil, fmt.Errorf("target user is not a validated trainer: %w", domain.ErrValidation)
	}

	req := domain.PTChangeRequest{
		ID:          primitive.NewObjectID().Hex(),
		FromPTID:    client.PTID,
		ToPTID:      toPTID,
		Status:      domain.RequestStatusPending,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
	if err := s.userRepo.AddPTChangeRequest(ctx, clientID, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// CancelPTChange removes the client's own pending request entirely.
// Terminal requests are history and cannot be cancelled.
func (s *AssignmentService) CancelPTChange(ctx context.Context, clientID, requestID string) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	req, ok := findPTChangeRequest(client, requestID)
	if !ok {
		return domain.ErrNotFound
	}
	if !req.IsPending() {
		return fmt.Errorf("only pending requests can be cancelled: %w", domain.ErrStateConflict)
	}

	return s.userRepo.RemovePTChangeRequest(ctx, clientID, requestID)
}

// ApprovePTChange transitions the request to approved and performs the
// reassignment: the client's trainer back-reference moves to the new
// PT, the old PT's counter drops by one and the new PT's rises by one.
func (s *AssignmentService) ApprovePTChange(ctx context.Context, adminID, clientID, requestID string) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	req, ok := findPTChangeRequest(client, requestID)
	if !ok {
		return domain.ErrNotFound
	}
	if !req.IsPending() {
		return domain.ErrStateConflict
	}

	now := time.Now()
	req.Status = domain.RequestStatusApproved
	req.RespondedAt = &now
	req.RespondedBy = adminID
	if err := s.userRepo.UpdatePTChangeRequest(ctx, clientID, req); err != nil {
		return err
	}

	if err := s.userRepo.AssignPT(ctx, clientID, req.ToPTID); err != nil {
		return err
	}
	if req.FromPTID != "" {
		if err := s.userRepo.IncClientCount(ctx, req.FromPTID, -1); err != nil {
			return err
		}
	}
	return s.userRepo.IncClientCount(ctx, req.ToPTID, 1)
}

// RejectPTChange records the rejection; no reassignment happens.
func (s *AssignmentService) RejectPTChange(ctx context.Context, adminID, clientID, requestID, reason string) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	req, ok := findPTChangeRequest(client, requestID)
	if !ok {
		return domain.ErrNotFound
	}
	if !req.IsPending() {
		return domain.ErrStateConflict
	}

	now := time.Now()
	req.Status = domain.RequestStatusRejected
	req.RespondedAt = &now
	req.RespondedBy = adminID
	if reason != "" {
		req.Reason = reason
	}
	return s.userRepo.UpdatePTChangeRequest(ctx, clientID, req)
}

// PendingPTChangeRequests lists every user holding a pending PT-change
// request, for the admin approval queue.
func (s *AssignmentService) PendingPTChangeRequests(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.GetPendingPTChangeRequests(ctx)
}

// --- Client requests (trainer asks to add an existing client) ---

// RequestClient creates a pending request from the trainer to take
// over an existing client.
func (s *AssignmentService) RequestClient(ctx context.Context, ptID, clientID string) (*domain.ClientRequest, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client.Role != domain.RoleClient {
		return nil, fmt.Errorf("target user is not a client: %w", domain.ErrValidation)
	}
	if client.PTID == ptID {
		return nil, fmt.Errorf("client is already assigned to this trainer: %w", domain.ErrValidation)
	}
	for _, existing := range client.ClientRequests {
		if existing.IsPending() && existing.PTID == ptID {
			return nil, fmt.Errorf("a pending request for this client already exists: %w", domain.ErrStateConflict)
		}
	}

	req := domain.ClientRequest{
		ID:          primitive.NewObjectID().Hex(),
		PTID:        ptID,
		Status:      domain.RequestStatusPending,
		RequestedAt: time.Now(),
	}
	if err := s.userRepo.AddClientRequest(ctx, clientID, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ApproveClientRequest reassigns the client to the requesting trainer,
// symmetric to ApprovePTChange but initiated from the PT's side.
func (s *AssignmentService) ApproveClientRequest(ctx context.Context, adminID, clientID, requestID string) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	req, ok := findClientRequest(client, requestID)
	if !ok {
		return domain.ErrNotFound
	}
	if !req.IsPending() {
		return domain.ErrStateConflict
	}

	now := time.Now()
	req.Status = domain.RequestStatusApproved
	req.RespondedAt = &now
	req.RespondedBy = adminID
	if err := s.userRepo.UpdateClientRequest(ctx, clientID, req); err != nil {
		return err
	}

	previousPT := client.PTID
	if err := s.userRepo.AssignPT(ctx, clientID, req.PTID); err != nil {
		return err
	}
	if previousPT != "" {
		if err := s.userRepo.IncClientCount(ctx, previousPT, -1); err != nil {
			return err
		}
	}
	return s.userRepo.IncClientCount(ctx, req.PTID, 1)
}

// RejectClientRequest records the rejection with an optional reason.
func (s *AssignmentService) RejectClientRequest(ctx context.Context, adminID, clientID, requestID, rejectionReason string) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	req, ok := findClientRequest(client, requestID)
	if !ok {
		return domain.ErrNotFound
	}
	if !req.IsPending() {
		return domain.ErrStateConflict
	}

	now := time.Now()
	req.Status = domain.RequestStatusRejected
	req.RespondedAt = &now
	req.RespondedBy = adminID
	req.RejectionReason = rejectionReason
	return s.userRepo.UpdateClientRequest(ctx, clientID, req)
}

func findPTChangeRequest(user *domain.User, requestID string) (domain.PTChangeRequest, bool) {
	for _, req := range user.PTChangeRequests {
		if req.ID == requestID {
			return req, true
		}
	}
	return domain.PTChangeRequest{}, false
}

func findClientRequest(user *domain.User, requestID string) (domain.ClientRequest, bool) {
	for _, req := range user.ClientRequests {
		if req.ID == requestID {
			return req, true
		}
	}
	return domain.ClientRequest{}, false
}
