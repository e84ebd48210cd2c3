package domain

import (
	"context"
	"time"
)

// Role constants
const (
	RoleAdmin  = "ADMIN"
	RolePT     = "PT"
	RoleClient = "CLIENT"
)

// Request status constants shared by both approval state machines
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// User is the single identity document for admins, trainers and clients.
// Trainer-only fields (Validated, ClientCount, ClientRequests) and
// client-only fields (PTID, PTChangeRequests) live on the same struct
// because the collection is shared.
type User struct {
	ID       string `bson:"_id,omitempty" json:"id"`
	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	Password string `bson:"password" json:"-"`
	Role     string `bson:"role" json:"role"`

	// Validated gates PT logins: a PT can only authenticate after an
	// admin approved the account.
	Validated bool `bson:"validated" json:"validated"`

	// PTID is the client's currently assigned trainer, empty when unassigned.
	PTID string `bson:"pt_id,omitempty" json:"pt_id,omitempty"`

	// ClientCount is denormalized for fast trainer-load lookups and is
	// maintained with atomic increments, never recomputed.
	ClientCount int `bson:"client_count" json:"client_count"`

	PTChangeRequests []PTChangeRequest `bson:"pt_change_requests,omitempty" json:"pt_change_requests,omitempty"`
	ClientRequests   []ClientRequest   `bson:"client_requests,omitempty" json:"client_requests,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PTChangeRequest is a client-initiated request to move from one
// trainer to another, awaiting admin approval. Terminal requests are
// retained as history.
type PTChangeRequest struct {
	ID          string     `bson:"id" json:"id"`
	FromPTID    string     `bson:"from_pt_id,omitempty" json:"from_pt_id,omitempty"`
	ToPTID      string     `bson:"to_pt_id" json:"to_pt_id"`
	Status      string     `bson:"status" json:"status"`
	Reason      string     `bson:"reason,omitempty" json:"reason,omitempty"`
	RequestedAt time.Time  `bson:"requested_at" json:"requested_at"`
	RespondedAt *time.Time `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	RespondedBy string     `bson:"responded_by,omitempty" json:"responded_by,omitempty"`
}

// ClientRequest is a trainer-initiated request to add an existing
// client to their roster, awaiting admin approval.
type ClientRequest struct {
	ID              string     `bson:"id" json:"id"`
	PTID            string     `bson:"pt_id" json:"pt_id"`
	Status          string     `bson:"status" json:"status"`
	RequestedAt     time.Time  `bson:"requested_at" json:"requested_at"`
	RespondedAt     *time.Time `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	RespondedBy     string     `bson:"responded_by,omitempty" json:"responded_by,omitempty"`
	RejectionReason string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
}

// IsPending reports whether the request can still be responded to or cancelled.
func (r PTChangeRequest) IsPending() bool { return r.Status == RequestStatusPending }

func (r ClientRequest) IsPending() bool { return r.Status == RequestStatusPending }

// UserRepository defines persistence operations for users and the
// embedded request collections.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error

	GetAll(ctx context.Context) ([]*User, error)
	GetByRole(ctx context.Context, role string) ([]*User, error)
	GetClientsByPT(ctx context.Context, ptID string) ([]*User, error)
	CountClientsByPT(ctx context.Context, ptID string) (int64, error)

	SetValidated(ctx context.Context, ptID string, validated bool) error

	// AssignPT sets the client's trainer back-reference.
	AssignPT(ctx context.Context, clientID, ptID string) error

	// IncClientCount adjusts a PT's denormalized counter atomically.
	// Decrements are floored at zero by the implementation.
	IncClientCount(ctx context.Context, ptID string, delta int) error

	AddPTChangeRequest(ctx context.Context, clientID string, req PTChangeRequest) error
	UpdatePTChangeRequest(ctx context.Context, clientID string, req PTChangeRequest) error
	RemovePTChangeRequest(ctx context.Context, clientID, requestID string) error
	GetPendingPTChangeRequests(ctx context.Context) ([]*User, error)

	AddClientRequest(ctx context.Context, clientID string, req ClientRequest) error
	UpdateClientRequest(ctx context.Context, clientID string, req ClientRequest) error
}
