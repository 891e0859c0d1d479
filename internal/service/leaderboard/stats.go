package leaderboard

import (
	"context"
	"fmt"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
)

// OperatorStats represents comprehensive statistics for an operator.
type OperatorStats struct {
	OperatorID   uint                  `json:"operator_id"`
	Username     string                `json:"username"`
	DisplayName  string                `json:"display_name,omitempty"`
	Team         string                `json:"team"`
	Status       models.OperatorStatus `json:"status"`
	Level        int                   `json:"level"`
	XPCurrent    int                   `json:"xp_current"`
	XPRequired   int                   `json:"xp_required"`
	Points       int64                 `json:"points"` // lifetime
	Period       string                `json:"period"`
	Calls        statistics.Snapshot   `json:"calls"`
	Achievements []models.Goal         `json:"achievements"`
	Missions     []models.Goal         `json:"missions_completed"`
	GlobalRank   int                   `json:"global_rank"`
	TeamRank     int                   `json:"team_rank"`
}

// GetOperatorStats returns comprehensive statistics for an operator.
func (s *Service) GetOperatorStats(ctx context.Context, operatorID uint, period string) (*OperatorStats, error) {
	operator, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	window, err := statistics.Calendar(period, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	agg, err := s.callRepo.Aggregate(ctx, operatorID, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator statistics: %w", err)
	}

	stats := &OperatorStats{
		OperatorID:   operator.ID,
		Username:     operator.Username,
		DisplayName:  operator.DisplayName,
		Team:         operator.Team,
		Status:       operator.Status,
		Level:        operator.Level,
		XPCurrent:    operator.XPCurrent,
		XPRequired:   operator.XPRequired,
		Points:       operator.Points,
		Period:       window.Name,
		Calls:        statistics.FromAggregate(window.Name, agg),
		Achievements: []models.Goal{},
		Missions:     []models.Goal{},
	}

	completed, err := s.progressRepo.ListCompleted(ctx, operatorID, "")
	if err != nil {
		s.log.Warn().Err(err).Uint("operator_id", operatorID).Msg("Failed to get completed goals")
	} else {
		for _, p := range completed {
			if p.Goal == nil {
				continue
			}
			if p.Goal.IsMission() {
				stats.Missions = append(stats.Missions, *p.Goal)
			} else {
				stats.Achievements = append(stats.Achievements, *p.Goal)
			}
		}
	}

	globalRank, err := s.GetOperatorRank(ctx, operatorID, "", period, MetricPoints)
	if err != nil {
		s.log.Warn().Err(err).Uint("operator_id", operatorID).Msg("Failed to get global rank")
	} else {
		stats.GlobalRank = globalRank
	}

	if operator.Team != "" {
		teamRank, err := s.GetOperatorRank(ctx, operatorID, operator.Team, period, MetricPoints)
		if err != nil {
			s.log.Warn().Err(err).Uint("operator_id", operatorID).Str("team", operator.Team).Msg("Failed to get team rank")
		} else {
			stats.TeamRank = teamRank
		}
	}

	return stats, nil
}
