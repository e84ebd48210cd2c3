package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trainlink/trainlink/internal/config"
	"github.com/trainlink/trainlink/internal/domain"
)

// TokenService handles JWT access/refresh token generation and validation
type TokenService struct {
	jwtConfig        config.JWTConfig
	refreshTokenRepo domain.RefreshTokenRepository
	userRepo         domain.UserRepository
}

// NewTokenService creates a new token service
func NewTokenService(
	jwtConfig config.JWTConfig,
	refreshTokenRepo domain.RefreshTokenRepository,
	userRepo domain.UserRepository,
) *TokenService {
	return &TokenService{
		jwtConfig:        jwtConfig,
		refreshTokenRepo: refreshTokenRepo,
		userRepo:         userRepo,
	}
}

// TokenPair contains both access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // Seconds until access token expires
}

// GenerateTokenPair creates both access and refresh tokens for a user
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateAndStoreRefreshToken(ctx, user.ID, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtConfig.AccessTokenExpiry.Seconds()),
	}, nil
}

// RefreshAccessToken validates a refresh token and returns a new token
// pair, rotating the stored token.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, userAgent, ipAddress string) (*TokenPair, error) {
	tokenHash := hashToken(refreshToken)

	storedToken, err := s.refreshTokenRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrInvalidCredentials)
	}
	if !storedToken.IsValid() {
		return nil, fmt.Errorf("refresh token expired or revoked: %w", domain.ErrInvalidCredentials)
	}

	user, err := s.userRepo.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Token rotation: the old refresh token is single-use.
	if err := s.refreshTokenRepo.RevokeByHash(ctx, tokenHash); err != nil {
		return nil, fmt.Errorf("failed to revoke old token: %w", err)
	}

	return s.GenerateTokenPair(ctx, user, userAgent, ipAddress)
}

// RevokeRefreshToken invalidates a specific refresh token (logout)
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.refreshTokenRepo.RevokeByHash(ctx, hashToken(refreshToken))
}

// RevokeAllUserTokens invalidates all refresh tokens for a user (force logout)
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.refreshTokenRepo.RevokeAllByUserID(ctx, userID)
}

// VerifyAccessToken parses and validates an access token. Used by the
// HTTP middleware and the socket handshake.
func VerifyAccessToken(tokenString, jwtSecret string) (*domain.TrainLinkClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.TrainLinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}

	claims, ok := token.Claims.(*domain.TrainLinkClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (s *TokenService) generateAccessToken(user *domain.User) (string, error) {
	claims := domain.TrainLinkClaims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

func (s *TokenService) generateAndStoreRefreshToken(ctx context.Context, userID, userAgent, ipAddress string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rawToken := hex.EncodeToString(tokenBytes)

	// Store hash in database (never store raw token)
	refreshToken := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.jwtConfig.RefreshTokenExpiry),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

// hashToken creates a SHA256 hash of the token
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
