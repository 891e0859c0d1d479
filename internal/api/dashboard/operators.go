package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/service/calls"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
)

// RegisterOperatorRequest is the body of POST /operators.
type RegisterOperatorRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Team        string `json:"team"`
}

// SetStatusRequest is the body of PUT /operators/:id/status.
type SetStatusRequest struct {
	Status models.OperatorStatus `json:"status" binding:"required"`
}

// RegisterOperator creates or refreshes an operator.
// POST /api/v1/operators.
func (h *Handler) RegisterOperator(c *gin.Context) {
	var req RegisterOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "username is required")
		return
	}

	operator, err := h.callService.RegisterOperator(c.Request.Context(), req.Username, req.DisplayName, req.Team)
	if err != nil {
		h.log.Error().Err(err).Str("username", req.Username).Msg("Failed to register operator")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to register operator")
		return
	}

	h.log.Info().
		Uint("operator_id", operator.ID).
		Str("username", operator.Username).
		Str("team", operator.Team).
		Msg("Registered operator")

	c.JSON(http.StatusCreated, gin.H{"operator": operator})
}

// StartCall opens a call for the operator.
// POST /api/v1/operators/:id/calls.
func (h *Handler) StartCall(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	call, err := h.callService.StartCall(c.Request.Context(), operatorID)
	if err != nil {
		h.callError(c, err, operatorID, "Failed to start call")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"call": call})
}

// CompleteCall finalizes the operator's active call and reports what it changed in the game.
// The call is finalized even when goal evaluation fails.
// POST /api/v1/operators/:id/calls/complete.
func (h *Handler) CompleteCall(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req calls.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.callService.CompleteCall(c.Request.Context(), operatorID, req)
	if err != nil {
		h.callError(c, err, operatorID, "Failed to complete call")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReevaluateCall runs goal evaluation again for a completed call, for instance after
// CompleteCall reported evaluation_skipped. Retrying an evaluated call is a no-op.
// POST /api/v1/operators/:id/calls/:event_id/evaluate.
func (h *Handler) ReevaluateCall(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	eventID := c.Param("event_id")

	result, err := h.callService.Reevaluate(c.Request.Context(), operatorID, eventID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"event_id": eventID, "gamification": result})
	case errors.Is(err, calls.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, "Call not found")
	case errors.Is(err, calls.ErrCallNotCompleted):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, gamification.ErrEvaluationSkipped), errors.Is(err, calls.ErrEvaluationDisabled):
		h.log.Warn().Err(err).Uint("operator_id", operatorID).Str("event_id", eventID).Msg("Goal re-evaluation unavailable")
		h.errorResponse(c, http.StatusServiceUnavailable, "Goal evaluation unavailable, retry later")
	default:
		h.log.Error().Err(err).Uint("operator_id", operatorID).Str("event_id", eventID).Msg("Failed to re-evaluate call")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to re-evaluate call")
	}
}

// SetStatus changes the operator's availability.
// PUT /api/v1/operators/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		h.errorResponse(c, http.StatusBadRequest, "status must be one of awaiting_call, on_break, offline")
		return
	}

	operator, err := h.callService.SetStatus(c.Request.Context(), operatorID, req.Status)
	if err != nil {
		h.callError(c, err, operatorID, "Failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"operator": operator})
}

// GetCallHistory returns the operator's most recent calls.
// GET /api/v1/operators/:id/calls?limit=50.
func (h *Handler) GetCallHistory(c *gin.Context) {
	operatorID, err := h.parseOperatorID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.callService.History(c.Request.Context(), operatorID, limit)
	if err != nil {
		h.callError(c, err, operatorID, "Failed to retrieve call history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operator_id":  operatorID,
		"calls":        history,
		"total_calls":  len(history),
		"generated_at": time.Now().UTC(),
	})
}

// callError maps call lifecycle errors to status codes.
func (h *Handler) callError(c *gin.Context, err error, operatorID uint, message string) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, "Operator not found")
	case errors.Is(err, calls.ErrInvalidSatisfaction):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, calls.ErrInvalidTransition), errors.Is(err, calls.ErrNoActiveCall):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Uint("operator_id", operatorID).Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}
