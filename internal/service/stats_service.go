package service

import (
	"context"
	"time"

	"github.com/trainlink/trainlink/internal/domain"
	"golang.org/x/sync/errgroup"
)

// LeaderboardSize is the fixed top-N of the dashboard rankings.
const LeaderboardSize = 5

// DefaultActivityLimit caps the recent-activity list when the caller
// does not pass a limit.
const DefaultActivityLimit = 20

// Dashboard is the aggregated view for one role scope.
type Dashboard struct {
	Stats          domain.CompletionStats    `json:"stats"`
	TopPTs         []domain.LeaderboardEntry `json:"top_pts,omitempty"`
	TopClients     []domain.LeaderboardEntry `json:"top_clients,omitempty"`
	RecentActivity []domain.ActivityEntry    `json:"recent_activity"`
}

// StatsService recomputes dashboard aggregates from the plan documents
// on every call. Nothing here is cached: the numbers are always a pure
// function of the store's current state.
type StatsService struct {
	planRepo domain.PlanRepository
	userRepo domain.UserRepository
	now      func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(planRepo domain.PlanRepository, userRepo domain.UserRepository) *StatsService {
	return &StatsService{
		planRepo: planRepo,
		userRepo: userRepo,
		now:      time.Now,
	}
}

// GlobalDashboard aggregates every plan: admin scope only (enforced at
// the route boundary). Leaderboards and activity are fanned out
// concurrently since each walks the same snapshot independently.
func (s *StatsService) GlobalDashboard(ctx context.Context, activityLimit int) (*Dashboard, error) {
	if activityLimit <= 0 {
		activityLimit = DefaultActivityLimit
	}

	plans, err := s.planRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dashboard := &Dashboard{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dashboard.Stats = domain.AggregateCompletions(plans, now)
		return nil
	})
	g.Go(func() error {
		dashboard.TopPTs = s.withNames(gCtx, domain.TopPTs(plans, now, LeaderboardSize))
		return nil
	})
	g.Go(func() error {
		dashboard.TopClients = s.withNames(gCtx, domain.TopClients(plans, now, LeaderboardSize))
		return nil
	})
	g.Go(func() error {
		dashboard.RecentActivity = domain.RecentActivity(plans, activityLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dashboard, nil
}

// PTDashboard aggregates only the trainer's own plans.
func (s *StatsService) PTDashboard(ctx context.Context, ptID string, activityLimit int) (*Dashboard, error) {
	if activityLimit <= 0 {
		activityLimit = DefaultActivityLimit
	}

	plans, err := s.planRepo.GetByPT(ctx, ptID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Dashboard{
		Stats:          domain.AggregateCompletions(plans, now),
		TopClients:     s.withNames(ctx, domain.TopClients(plans, now, LeaderboardSize)),
		RecentActivity: domain.RecentActivity(plans, activityLimit),
	}, nil
}

// ClientDashboard aggregates the client's own plans.
func (s *StatsService) ClientDashboard(ctx context.Context, clientID string, activityLimit int) (*Dashboard, error) {
	if activityLimit <= 0 {
		activityLimit = DefaultActivityLimit
	}

	plans, err := s.planRepo.GetByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Dashboard{
		Stats:          domain.AggregateCompletions(plans, now),
		RecentActivity: domain.RecentActivity(plans, activityLimit),
	}, nil
}

// ClientHistory returns all completions of one client plus the derived
// completion rate. Callers other than the client themself must be the
// assigned trainer or an admin.
func (s *StatsService) ClientHistory(ctx context.Context, callerID, callerRole, clientID string) (*domain.ClientHistory, error) {
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

	plans, err := s.planRepo.GetByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	history := domain.BuildClientHistory(clientID, plans)
	return &history, nil
}

// withNames enriches leaderboard rows with display names. A missing
// user keeps the bare id; the ranking is not affected.
func (s *StatsService) withNames(ctx context.Context, entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	for i := range entries {
		if user, err := s.userRepo.GetByID(ctx, entries[i].UserID); err == nil {
			entries[i].Name = user.Name
		}
	}
	return entries
}
