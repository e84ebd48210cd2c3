package domain

import (
	"context"
	"time"
)

// Completion status constants
const (
	CompletionStatusCompleted = "completed"
	CompletionStatusLate      = "late"
	CompletionStatusFailed    = "failed"
)

// Exercise is one entry of a plan's ordered exercise list.
type Exercise struct {
	Name     string `bson:"name" json:"name"`
	Sets     int    `bson:"sets" json:"sets"`
	Reps     int    `bson:"reps" json:"reps"`
	VideoURL string `bson:"video_url,omitempty" json:"video_url,omitempty"`
}

// Completion is a timestamped record of a client's attempt at a
// scheduled workout.
type Completion struct {
	Date          time.Time `bson:"date" json:"date"`
	Status        string    `bson:"status" json:"status"`
	Feedback      string    `bson:"feedback,omitempty" json:"feedback,omitempty"`
	ProofImageURL string    `bson:"proof_image_url,omitempty" json:"proof_image_url,omitempty"`
}

// TrainingPlan belongs to exactly one client and one trainer, scheduled
// on a fixed day of the week. The completions array is the single
// source of truth for completion state; the "latest" view is derived
// on read, never stored.
type TrainingPlan struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	ClientID    string       `bson:"client_id" json:"client_id"`
	PTID        string       `bson:"pt_id" json:"pt_id"`
	Title       string       `bson:"title" json:"title"`
	DayOfWeek   int          `bson:"day_of_week" json:"day_of_week"` // 0=Sunday .. 6=Saturday
	Exercises   []Exercise   `bson:"exercises" json:"exercises"`
	Completions []Completion `bson:"completions,omitempty" json:"completions,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"updated_at"`
}

// LatestCompletion returns the most recent completion (last element)
// or false when the plan was never completed.
func (p *TrainingPlan) LatestCompletion() (Completion, bool) {
	if len(p.Completions) == 0 {
		return Completion{}, false
	}
	return p.Completions[len(p.Completions)-1], true
}

// IsCompleted reports whether the plan has at least one completion.
func (p *TrainingPlan) IsCompleted() bool { return len(p.Completions) > 0 }

// Validate rejects malformed plans before any side effect.
func (p *TrainingPlan) Validate() error {
	if p.ClientID == "" || p.PTID == "" || p.Title == "" {
		return ErrValidation
	}
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return ErrValidation
	}
	for _, ex := range p.Exercises {
		if ex.Name == "" || ex.Sets <= 0 || ex.Reps <= 0 {
			return ErrValidation
		}
	}
	return nil
}

// ValidCompletionStatus reports whether s is one of the accepted
// completion statuses.
func ValidCompletionStatus(s string) bool {
	switch s {
	case CompletionStatusCompleted, CompletionStatusLate, CompletionStatusFailed:
		return true
	}
	return false
}

// PlanRepository defines persistence operations for training plans.
type PlanRepository interface {
	Create(ctx context.Context, plan *TrainingPlan) error
	GetByID(ctx context.Context, id string) (*TrainingPlan, error)
	Update(ctx context.Context, plan *TrainingPlan) error
	Delete(ctx context.Context, id string) error

	GetByClient(ctx context.Context, clientID string) ([]*TrainingPlan, error)
	GetByPT(ctx context.Context, ptID string) ([]*TrainingPlan, error)
	GetAll(ctx context.Context) ([]*TrainingPlan, error)

	// AppendCompletion appends to the completions array atomically.
	AppendCompletion(ctx context.Context, planID string, completion Completion) error
}
