// Package statistics derives per-operator call statistics from the call history.
package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// CallRepository interface for call history aggregation.
type CallRepository interface {
	Aggregate(ctx context.Context, operatorID uint, from, to *time.Time) (repository.CallAggregate, error)
}

// Snapshot is the derived statistics of one operator over one window.
type Snapshot struct {
	Window               string  `json:"window"`
	TotalCalls           int64   `json:"total_calls"`
	ResolvedCalls        int64   `json:"resolved_calls"`
	RatedCalls           int64   `json:"rated_calls"`
	AvgHandleTimeSeconds float64 `json:"avg_handle_time_seconds"`
	AvgSatisfaction      float64 `json:"avg_satisfaction"`
	ResolutionRate       float64 `json:"resolution_rate"` // 0..1
}

// FromAggregate derives averages from raw sums. Empty inputs yield zeros.
func FromAggregate(window string, agg repository.CallAggregate) Snapshot {
	s := Snapshot{
		Window:        window,
		TotalCalls:    agg.TotalCalls,
		ResolvedCalls: agg.ResolvedCalls,
		RatedCalls:    agg.RatedCalls,
	}
	if agg.TotalCalls > 0 {
		s.AvgHandleTimeSeconds = float64(agg.TotalHandleSeconds) / float64(agg.TotalCalls)
		s.ResolutionRate = float64(agg.ResolvedCalls) / float64(agg.TotalCalls)
	}
	if agg.RatedCalls > 0 {
		s.AvgSatisfaction = float64(agg.TotalSatisfaction) / float64(agg.RatedCalls)
	}
	return s
}

// Service computes statistics snapshots.
type Service struct {
	callRepo CallRepository
	loc      *time.Location
	log      *logger.Logger
}

// NewService creates a new statistics service with concrete repository types.
func NewService(callRepo *repository.CallRepository, loc *time.Location, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(callRepo, loc, log)
}

// NewServiceWithInterfaces creates a new statistics service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(callRepo CallRepository, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{callRepo: callRepo, loc: loc, log: log}
}

// Location returns the timezone calendar windows are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Snapshot returns the operator's statistics over the window.
func (s *Service) Snapshot(ctx context.Context, operatorID uint, window Window) (Snapshot, error) {
	agg, err := s.callRepo.Aggregate(ctx, operatorID, window.From, window.To)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to aggregate statistics: %w", err)
	}

	snap := FromAggregate(window.Name, agg)
	s.log.Debug().
		Uint("operator_id", operatorID).
		Str("window", window.Name).
		Int64("total_calls", snap.TotalCalls).
		Msg("Computed statistics snapshot")
	return snap, nil
}

// SnapshotFor returns the operator's statistics over the named calendar window containing now.
func (s *Service) SnapshotFor(ctx context.Context, operatorID uint, name string, now time.Time) (Snapshot, error) {
	window, err := Calendar(name, now, s.loc)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(ctx, operatorID, window)
}
