// Package leaderboard provides leaderboard and ranking services.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/cache"
	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// Ranking metrics.
const (
	MetricPoints          = "points"
	MetricCalls           = "calls"
	MetricResolutionRate  = "resolution_rate"
	MetricAvgSatisfaction = "avg_satisfaction"
	MetricAvgHandleTime   = "avg_handle_time" // lower is better
)

const generationKey = "leaderboard:generation"

// ErrUnknownMetric is returned for a ranking metric the service does not know.
var ErrUnknownMetric = errors.New("unknown leaderboard metric")

// ErrNotRanked is returned when the operator does not appear on the requested board.
var ErrNotRanked = errors.New("operator not ranked")

// CallRepository interface for call history aggregation.
type CallRepository interface {
	AggregateByOperator(ctx context.Context, team string, from, to *time.Time) ([]repository.CallAggregate, error)
	Aggregate(ctx context.Context, operatorID uint, from, to *time.Time) (repository.CallAggregate, error)
}

// OperatorRepository interface for operator operations.
type OperatorRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Operator, error)
	List(ctx context.Context, team string) ([]models.Operator, error)
}

// ProgressRepository interface for completed goals and reward grants.
type ProgressRepository interface {
	ListCompleted(ctx context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error)
	GetRecentGrants(ctx context.Context, since time.Time) ([]models.RewardGrant, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	OperatorID      uint    `json:"operator_id"`
	Username        string  `json:"username"`
	DisplayName     string  `json:"display_name,omitempty"`
	Team            string  `json:"team"`
	Level           int     `json:"level"`
	Points          int64   `json:"points"` // earned within the period
	TotalCalls      int64   `json:"total_calls"`
	ResolvedCalls   int64   `json:"resolved_calls"`
	RatedCalls      int64   `json:"rated_calls"`
	ResolutionRate  float64 `json:"resolution_rate"`
	AvgHandleTime   float64 `json:"avg_handle_time"` // in seconds
	AvgSatisfaction float64 `json:"avg_satisfaction"`
	Rank            int     `json:"rank"`
}

// Service handles leaderboard generation and operator statistics.
type Service struct {
	callRepo     CallRepository
	operatorRepo OperatorRepository
	progressRepo ProgressRepository
	cache        cache.Cache
	cacheTTL     time.Duration
	loc          *time.Location
	now          func() time.Time
	log          *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
// A nil cache or a zero TTL disables caching.
func NewService(
	callRepo *repository.CallRepository,
	operatorRepo *repository.OperatorRepository,
	progressRepo *repository.ProgressRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(callRepo, operatorRepo, progressRepo, c, cacheTTL, loc, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	callRepo CallRepository,
	operatorRepo OperatorRepository,
	progressRepo ProgressRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		callRepo:     callRepo,
		operatorRepo: operatorRepo,
		progressRepo: progressRepo,
		cache:        c,
		cacheTTL:     cacheTTL,
		loc:          loc,
		now:          time.Now,
		log:          log,
	}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidMetric reports whether metric can rank a leaderboard. Empty means points.
func ValidMetric(metric string) bool {
	switch metric {
	case "", MetricPoints, MetricCalls, MetricResolutionRate, MetricAvgSatisfaction, MetricAvgHandleTime:
		return true
	}
	return false
}

// GetGlobalLeaderboard returns the global leaderboard for a given period and metric.
func (s *Service) GetGlobalLeaderboard(ctx context.Context, period, metric string, limit int) ([]Entry, error) {
	return s.getLeaderboard(ctx, "", period, metric, limit)
}

// GetTeamLeaderboard returns the leaderboard for a specific team.
func (s *Service) GetTeamLeaderboard(ctx context.Context, team, period, metric string, limit int) ([]Entry, error) {
	return s.getLeaderboard(ctx, team, period, metric, limit)
}

// GetOperatorRank returns the rank of an operator for a specific metric in a period.
// An empty team ranks globally.
func (s *Service) GetOperatorRank(ctx context.Context, operatorID uint, team, period, metric string) (int, error) {
	board, err := s.getLeaderboard(ctx, team, period, metric, 0)
	if err != nil {
		return 0, err
	}

	for _, entry := range board {
		if entry.OperatorID == operatorID {
			return entry.Rank, nil
		}
	}
	return 0, fmt.Errorf("%w: operator %d", ErrNotRanked, operatorID)
}

// Invalidate drops every cached leaderboard.
func (s *Service) Invalidate(ctx context.Context) error {
	if !s.cacheEnabled() {
		return nil
	}
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("failed to invalidate leaderboards: %w", err)
	}
	return nil
}

// Notify implements gamification.Notifier by invalidating cached boards after points or levels change.
func (s *Service) Notify(ctx context.Context, _ gamification.Notification) error {
	return s.Invalidate(ctx)
}

func (s *Service) getLeaderboard(ctx context.Context, team, period, metric string, limit int) ([]Entry, error) {
	if metric == "" {
		metric = MetricPoints
	}
	if !ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	window, err := statistics.Calendar(period, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, team, window, metric)
	entries, ok := s.fromCache(ctx, key)
	if !ok {
		entries, err = s.buildLeaderboard(ctx, team, window, metric)
		if err != nil {
			return nil, err
		}
		s.toCache(ctx, key, entries)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// buildLeaderboard ranks every operator of the team (all operators if team is empty).
func (s *Service) buildLeaderboard(ctx context.Context, team string, window statistics.Window, metric string) ([]Entry, error) {
	operators, err := s.operatorRepo.List(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}

	aggregates, err := s.callRepo.AggregateByOperator(ctx, team, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate calls: %w", err)
	}
	byOperator := make(map[uint]repository.CallAggregate, len(aggregates))
	for _, agg := range aggregates {
		byOperator[agg.OperatorID] = agg
	}

	points, err := s.pointsInWindow(ctx, operators, window)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(operators))
	for _, op := range operators {
		snap := statistics.FromAggregate(window.Name, byOperator[op.ID])
		entries = append(entries, Entry{
			OperatorID:      op.ID,
			Username:        op.Username,
			DisplayName:     op.DisplayName,
			Team:            op.Team,
			Level:           op.Level,
			Points:          points[op.ID],
			TotalCalls:      snap.TotalCalls,
			ResolvedCalls:   snap.ResolvedCalls,
			RatedCalls:      snap.RatedCalls,
			ResolutionRate:  snap.ResolutionRate,
			AvgHandleTime:   snap.AvgHandleTimeSeconds,
			AvgSatisfaction: snap.AvgSatisfaction,
		})
	}

	sortLeaderboard(entries, metric)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// pointsInWindow returns points earned per operator: lifetime points for the all-time board,
// otherwise the sum of reward grants inside the window.
func (s *Service) pointsInWindow(ctx context.Context, operators []models.Operator, window statistics.Window) (map[uint]int64, error) {
	points := make(map[uint]int64, len(operators))
	if window.From == nil {
		for _, op := range operators {
			points[op.ID] = op.Points
		}
		return points, nil
	}

	grants, err := s.progressRepo.GetRecentGrants(ctx, window.From.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get reward grants: %w", err)
	}
	for _, g := range grants {
		if window.To != nil && !g.GrantedAt.Before(*window.To) {
			continue
		}
		points[g.OperatorID] += int64(g.Points)
	}
	return points, nil
}

// sortLeaderboard sorts leaderboard entries by the specified metric.
// Operators without a sample for an average-based metric rank after everyone with one.
// Ties are broken by points, then username.
func sortLeaderboard(entries []Entry, metric string) {
	tieBreak := func(a, b Entry) bool {
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.Username < b.Username
	}

	switch metric {
	case MetricCalls:
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].TotalCalls != entries[j].TotalCalls {
				return entries[i].TotalCalls > entries[j].TotalCalls
			}
			return tieBreak(entries[i], entries[j])
		})
	case MetricResolutionRate:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if (a.TotalCalls > 0) != (b.TotalCalls > 0) {
				return a.TotalCalls > 0
			}
			if a.ResolutionRate != b.ResolutionRate {
				return a.ResolutionRate > b.ResolutionRate
			}
			return tieBreak(a, b)
		})
	case MetricAvgSatisfaction:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if (a.RatedCalls > 0) != (b.RatedCalls > 0) {
				return a.RatedCalls > 0
			}
			if a.AvgSatisfaction != b.AvgSatisfaction {
				return a.AvgSatisfaction > b.AvgSatisfaction
			}
			return tieBreak(a, b)
		})
	case MetricAvgHandleTime:
		// Lower is better for handle time
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if (a.TotalCalls > 0) != (b.TotalCalls > 0) {
				return a.TotalCalls > 0
			}
			if a.AvgHandleTime != b.AvgHandleTime {
				return a.AvgHandleTime < b.AvgHandleTime
			}
			return tieBreak(a, b)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return tieBreak(entries[i], entries[j])
		})
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// cacheKey includes the window's bounds, so a "today" board cached yesterday is never served.
func (s *Service) cacheKey(ctx context.Context, team string, window statistics.Window, metric string) string {
	if !s.cacheEnabled() {
		return ""
	}
	generation := "0"
	if val, err := s.cache.Get(ctx, generationKey); err == nil {
		generation = val
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn().Err(err).Msg("Failed to read leaderboard cache generation")
		return ""
	}
	if team == "" {
		team = "*"
	}
	if _, err := strconv.Atoi(generation); err != nil {
		generation = "0"
	}
	return fmt.Sprintf("leaderboard:%s:%s:%s:%s:%s", generation, team, window.Name, window.Key(), metric)
}

func (s *Service) fromCache(ctx context.Context, key string) ([]Entry, bool) {
	if key == "" {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read leaderboard cache")
		}
		prommetrics.RecordLeaderboardCache(false)
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt leaderboard cache entry")
		prommetrics.RecordLeaderboardCache(false)
		return nil, false
	}
	prommetrics.RecordLeaderboardCache(true)
	return entries, true
}

func (s *Service) toCache(ctx context.Context, key string, entries []Entry) {
	if key == "" {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to write leaderboard cache")
	}
}
