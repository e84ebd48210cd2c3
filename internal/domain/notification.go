package domain

import "time"

// Notification type constants
const (
	NotificationTypeMessage = "message"
	NotificationTypeWorkout = "workout"
)

// Notification is a best-effort, point-to-point alert delivered over an
// active connection. Never persisted: a notification for an offline
// user is dropped.
type Notification struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RefreshToken stores the SHA-256 hash of an issued refresh token.
// The raw token is never persisted.
type RefreshToken struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	TokenHash string    `bson:"token_hash" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	Revoked   bool      `bson:"revoked" json:"revoked"`
	UserAgent string    `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IPAddress string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid() bool {
	return !t.Revoked && time.Now().Before(t.ExpiresAt)
}
