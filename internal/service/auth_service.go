package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/trainlink/trainlink/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration and credential authentication.
type AuthService struct {
	userRepo     domain.UserRepository
	tokenService *TokenService
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo domain.UserRepository, tokenService *TokenService) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenService: tokenService,
	}
}

// RegisterRequest contains the registration params
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthResponse contains the user and issued tokens
type AuthResponse struct {
	User   *domain.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// Register creates a PT or CLIENT account. New trainers start
// unvalidated and cannot authenticate until an admin approves them, so
// no tokens are issued for them here.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, userAgent, ip string) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 6 {
		return nil, fmt.Errorf("name, email and a password of at least 6 characters are required: %w", domain.ErrValidation)
	}
	if req.Role != domain.RolePT && req.Role != domain.RoleClient {
		return nil, fmt.Errorf("role must be PT or CLIENT: %w", domain.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		Role:      req.Role,
		Validated: req.Role == domain.RoleClient, // clients need no approval
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	resp := &AuthResponse{User: user}
	if user.Role == domain.RolePT {
		return resp, nil
	}

	tokens, err := s.tokenService.GenerateTokenPair(ctx, user, userAgent, ip)
	if err != nil {
		return nil, err
	}
	resp.Tokens = tokens
	return resp, nil
}

// Login authenticates by email/password. An unvalidated PT is refused
// with a descriptive error even when the credentials are correct.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if user.Role == domain.RolePT && !user.Validated {
		return nil, domain.ErrNotValidated
	}

	tokens, err := s.tokenService.GenerateTokenPair(ctx, user, userAgent, ip)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Tokens: tokens}, nil
}
