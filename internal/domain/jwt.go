package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// TrainLinkClaims are the custom JWT claims carried by access tokens
// and socket handshake tokens.
type TrainLinkClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
