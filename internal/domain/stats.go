package domain

import (
	"sort"
	"time"
)

// PeriodCounts buckets completions by status for one period.
type PeriodCounts struct {
	Completed int `json:"completed"`
	Late      int `json:"late"`
	Failed    int `json:"failed"`
}

// Total returns the sum of all buckets.
func (c PeriodCounts) Total() int { return c.Completed + c.Late + c.Failed }

func (c *PeriodCounts) add(status string) {
	switch status {
	case CompletionStatusCompleted:
		c.Completed++
	case CompletionStatusLate:
		c.Late++
	case CompletionStatusFailed:
		c.Failed++
	}
}

// CompletionStats holds the weekly and monthly buckets derived from a
// set of plans at one point in time.
type CompletionStats struct {
	ThisWeek  PeriodCounts `json:"this_week"`
	ThisMonth PeriodCounts `json:"this_month"`
}

// LeaderboardEntry is one row of a top-N ranking.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name,omitempty"`
	Completions int    `json:"completions"`
}

// ActivityEntry is one recent-activity row: a completion joined with
// its plan context, newest first.
type ActivityEntry struct {
	PlanID    string    `json:"plan_id"`
	PlanTitle string    `json:"plan_title"`
	ClientID  string    `json:"client_id"`
	PTID      string    `json:"pt_id"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
}

// ClientHistory is the full completion history of one client across
// all their plans plus the derived completion rate.
type ClientHistory struct {
	ClientID       string          `json:"client_id"`
	Completions    []ActivityEntry `json:"completions"`
	CompletionRate int             `json:"completion_rate"`
}

// WeekStart returns local midnight of the most recent Sunday relative
// to now (now itself when now is a Sunday).
func WeekStart(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// MonthStart returns the first calendar day of now's month, local midnight.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// AggregateCompletions buckets every completion of the given plans into
// weekly and monthly counts relative to now. Pure function of its
// inputs; callers recompute per request.
func AggregateCompletions(plans []*TrainingPlan, now time.Time) CompletionStats {
	weekStart := WeekStart(now)
	monthStart := MonthStart(now)

	var stats CompletionStats
	for _, plan := range plans {
		for _, c := range plan.Completions {
			if c.Date.After(now) {
				continue
			}
			if !c.Date.Before(weekStart) {
				stats.ThisWeek.add(c.Status)
			}
			if !c.Date.Before(monthStart) {
				stats.ThisMonth.add(c.Status)
			}
		}
	}
	return stats
}

// TopClients ranks clients by completions with status completed or late
// within the current week, descending. Ties break ascending by user id
// so the ordering is stable across recomputations.
func TopClients(plans []*TrainingPlan, now time.Time, n int) []LeaderboardEntry {
	return topByKey(plans, now, n, func(p *TrainingPlan) string { return p.ClientID })
}

// TopPTs ranks trainers the same way, counting their clients' weekly
// completions against the plan's owning PT.
func TopPTs(plans []*TrainingPlan, now time.Time, n int) []LeaderboardEntry {
	return topByKey(plans, now, n, func(p *TrainingPlan) string { return p.PTID })
}

func topByKey(plans []*TrainingPlan, now time.Time, n int, key func(*TrainingPlan) string) []LeaderboardEntry {
	weekStart := WeekStart(now)
	counts := make(map[string]int)
	for _, plan := range plans {
		id := key(plan)
		if id == "" {
			continue
		}
		for _, c := range plan.Completions {
			if c.Date.Before(weekStart) || c.Date.After(now) {
				continue
			}
			if c.Status == CompletionStatusCompleted || c.Status == CompletionStatusLate {
				counts[id]++
			}
		}
	}

	entries := make([]LeaderboardEntry, 0, len(counts))
	for id, count := range counts {
		entries = append(entries, LeaderboardEntry{UserID: id, Completions: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Completions != entries[j].Completions {
			return entries[i].Completions > entries[j].Completions
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// RecentActivity flattens every completion of the given plans into
// entries sorted newest first, capped at limit.
func RecentActivity(plans []*TrainingPlan, limit int) []ActivityEntry {
	var entries []ActivityEntry
	for _, plan := range plans {
		for _, c := range plan.Completions {
			entries = append(entries, ActivityEntry{
				PlanID:    plan.ID,
				PlanTitle: plan.Title,
				ClientID:  plan.ClientID,
				PTID:      plan.PTID,
				Date:      c.Date,
				Status:    c.Status,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].PlanID < entries[j].PlanID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// BuildClientHistory collects all completions of one client's plans and
// derives the completion rate: (completed+late)/total as an integer
// percentage, 0 when the client has no completions.
func BuildClientHistory(clientID string, plans []*TrainingPlan) ClientHistory {
	history := ClientHistory{ClientID: clientID}
	var succeeded, total int
	for _, plan := range plans {
		for _, c := range plan.Completions {
			total++
			if c.Status == CompletionStatusCompleted || c.Status == CompletionStatusLate {
				succeeded++
			}
		}
	}
	history.Completions = RecentActivity(plans, 0)
	if total > 0 {
		history.CompletionRate = succeeded * 100 / total
	}
	return history
}
