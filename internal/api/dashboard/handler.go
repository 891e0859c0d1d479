// Package dashboard provides REST API handlers for the call-center gamification dashboard.
// It exposes endpoints for leaderboards, operator statistics and progress, the goal catalog,
// the call lifecycle, and the real-time notification stream.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/notify"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/calls"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/internal/service/leaderboard"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetGlobalLeaderboard(ctx context.Context, period, metric string, limit int) ([]leaderboard.Entry, error)
	GetTeamLeaderboard(ctx context.Context, team, period, metric string, limit int) ([]leaderboard.Entry, error)
	GetOperatorStats(ctx context.Context, operatorID uint, period string) (*leaderboard.OperatorStats, error)
}

// CallService interface for the call lifecycle.
type CallService interface {
	RegisterOperator(ctx context.Context, username, displayName, team string) (*models.Operator, error)
	StartCall(ctx context.Context, operatorID uint) (*models.Call, error)
	CompleteCall(ctx context.Context, operatorID uint, req calls.CompleteRequest) (*calls.CompleteResult, error)
	SetStatus(ctx context.Context, operatorID uint, status models.OperatorStatus) (*models.Operator, error)
	History(ctx context.Context, operatorID uint, limit int) ([]models.Call, error)
	Reevaluate(ctx context.Context, operatorID uint, eventID string) (*gamification.Result, error)
}

// GoalCatalog interface for goal definitions.
type GoalCatalog interface {
	GetAll(ctx context.Context, kind models.GoalKind, activeOnly bool) ([]models.Goal, error)
}

// ProgressReader interface for operator progress.
type ProgressReader interface {
	ListByOperator(ctx context.Context, operatorID uint) ([]models.Progress, error)
	ListCompleted(ctx context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error)
}

// Subscriber serves real-time notification streams.
type Subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, sub notify.Subscription)
}

// Handler handles dashboard API requests.
type Handler struct {
	leaderboardService LeaderboardService
	callService        CallService
	goals              GoalCatalog
	progress           ProgressReader
	subscriber         Subscriber
	defaultLimit       int
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler. A nil realtime handler disables the websocket endpoint.
func NewHandler(
	leaderboardService *leaderboard.Service,
	callService *calls.Service,
	goalRepo *repository.GoalRepository,
	progressRepo *repository.ProgressRepository,
	realtime *notify.Handler,
	log *logger.Logger,
) *Handler {
	var subscriber Subscriber
	if realtime != nil {
		subscriber = realtime
	}
	return NewHandlerWithInterfaces(leaderboardService, callService, goalRepo, progressRepo, subscriber, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	leaderboardService LeaderboardService,
	callService CallService,
	goals GoalCatalog,
	progress ProgressReader,
	subscriber Subscriber,
	log *logger.Logger,
) *Handler {
	return &Handler{
		leaderboardService: leaderboardService,
		callService:        callService,
		goals:              goals,
		progress:           progress,
		subscriber:         subscriber,
		defaultLimit:       10,
		log:                log,
	}
}

// WithDefaultLimit sets the leaderboard size used when the request has no limit.
func (h *Handler) WithDefaultLimit(limit int) *Handler {
	if limit > 0 {
		h.defaultLimit = limit
	}
	return h
}

// RegisterRoutes mounts the dashboard API on group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/leaderboard", h.GetGlobalLeaderboard)
	group.GET("/leaderboard/:team", h.GetTeamLeaderboard)

	group.GET("/goals", h.GetGoalCatalog)

	group.POST("/operators", h.RegisterOperator)
	group.GET("/operators/:id/stats", h.GetOperatorStats)
	group.GET("/operators/:id/progress", h.GetOperatorProgress)
	group.GET("/operators/:id/achievements", h.GetOperatorAchievements)
	group.GET("/operators/:id/calls", h.GetCallHistory)
	group.POST("/operators/:id/calls", h.StartCall)
	group.POST("/operators/:id/calls/complete", h.CompleteCall)
	group.POST("/operators/:id/calls/:event_id/evaluate", h.ReevaluateCall)
	group.PUT("/operators/:id/status", h.SetStatus)

	group.GET("/ws", h.ServeWebSocket)
}

// GetGlobalLeaderboard returns the global leaderboard.
// GET /api/v1/leaderboard?period=week&metric=points&limit=10.
func (h *Handler) GetGlobalLeaderboard(c *gin.Context) {
	period, metric, limit, ok := h.leaderboardParams(c)
	if !ok {
		return
	}

	entries, err := h.leaderboardService.GetGlobalLeaderboard(c.Request.Context(), period, metric, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get global leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("period", period).
		Str("metric", metric).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved global leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"period":        period,
		"metric":        metric,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetTeamLeaderboard returns the leaderboard for a specific team.
// GET /api/v1/leaderboard/:team?period=week&metric=points&limit=10.
func (h *Handler) GetTeamLeaderboard(c *gin.Context) {
	team := c.Param("team")
	if team == "" {
		h.errorResponse(c, http.StatusBadRequest, "team parameter is required")
		return
	}

	period, metric, limit, ok := h.leaderboardParams(c)
	if !ok {
		return
	}

	entries, err := h.leaderboardService.GetTeamLeaderboard(c.Request.Context(), team, period, metric, limit)
	if err != nil {
		h.log.Error().Err(err).Str("team", team).Msg("Failed to get team leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve team leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team":          team,
		"leaderboard":   entries,
		"period":        period,
		"metric":        metric,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetOperatorStats returns statistics for a specific operator.
// GET /api/v1/operators/:id/stats?period=month.
func (h *Handler) GetOperatorStats(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	period := c.DefaultQuery("period", statistics.WindowAllTime)
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.leaderboardService.GetOperatorStats(c.Request.Context(), operatorID, period)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Operator not found")
			return
		}
		h.log.Error().Err(err).Uint("operator_id", operatorID).Msg("Failed to get operator stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve operator statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetOperatorProgress returns the operator's progress toward every goal it has touched.
// GET /api/v1/operators/:id/progress.
func (h *Handler) GetOperatorProgress(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.progress.ListByOperator(c.Request.Context(), operatorID)
	if err != nil {
		h.log.Error().Err(err).Uint("operator_id", operatorID).Msg("Failed to get operator progress")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operator_id":  operatorID,
		"progress":     rows,
		"generated_at": time.Now().UTC(),
	})
}

// GetOperatorAchievements returns the achievements an operator has unlocked.
// GET /api/v1/operators/:id/achievements.
func (h *Handler) GetOperatorAchievements(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.progress.ListCompleted(c.Request.Context(), operatorID, models.GoalKindAchievement)
	if err != nil {
		h.log.Error().Err(err).Uint("operator_id", operatorID).Msg("Failed to get operator achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operator_id":        operatorID,
		"achievements":       rows,
		"total_achievements": len(rows),
		"generated_at":       time.Now().UTC(),
	})
}

// GetGoalCatalog returns active goal definitions.
// GET /api/v1/goals?kind=mission.
func (h *Handler) GetGoalCatalog(c *gin.Context) {
	kind := models.GoalKind(c.Query("kind"))
	if kind != "" && kind != models.GoalKindMission && kind != models.GoalKindAchievement {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid kind: %s (valid: mission, achievement)", kind))
		return
	}

	goals, err := h.goals.GetAll(c.Request.Context(), kind, true)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get goal catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve goal catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"goals":        goals,
		"total_goals":  len(goals),
		"generated_at": time.Now().UTC(),
	})
}

// ServeWebSocket streams notifications. operator_id subscribes to one operator, otherwise the
// connection receives every notification, optionally restricted to team.
// GET /api/v1/ws?operator_id=12 or GET /api/v1/ws?team=support.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if h.subscriber == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, "Real-time notifications are disabled")
		return
	}

	var sub notify.Subscription
	if raw := c.Query("operator_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid operator ID: %s", raw))
			return
		}
		sub.OperatorID = uint(id)
	}
	sub.Team = c.Query("team")

	h.subscriber.Serve(c.Writer, c.Request, sub)
}

// Helper functions

// leaderboardParams parses and validates period, metric and limit, writing the error response itself.
func (h *Handler) leaderboardParams(c *gin.Context) (string, string, int, bool) {
	period := c.DefaultQuery("period", statistics.WindowAllTime)
	metric := c.DefaultQuery("metric", leaderboard.MetricPoints)
	limit, err := h.parseLimit(c, h.defaultLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return "", "", 0, false
	}
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return "", "", 0, false
	}
	if !leaderboard.ValidMetric(metric) {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf(
			"invalid metric: %s (valid: points, calls, resolution_rate, avg_satisfaction, avg_handle_time)", metric))
		return "", "", 0, false
	}
	return period, metric, limit, true
}

// parseOperatorID extracts and validates the operator ID from the URL parameter.
func (h *Handler) parseOperatorID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid operator ID: %s", idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// validatePeriod validates the period parameter.
func (h *Handler) validatePeriod(period string) error {
	switch period {
	case statistics.WindowToday, "day", statistics.WindowWeek, statistics.WindowMonth, statistics.WindowAllTime:
		return nil
	}
	return fmt.Errorf("invalid period: %s (valid: today, week, month, all_time)", period)
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
