//nolint:noctx // Test file uses http.NewRequest for simplicity
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/notify"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/calls"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/internal/service/leaderboard"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
	"github.com/aimd54/callcenter-gamification/test/mocks"
)

// Mock Leaderboard Service
type mockLeaderboardService struct {
	globalLeaderboard map[string][]leaderboard.Entry
	teamLeaderboard   map[string][]leaderboard.Entry
	operatorStats     map[uint]*leaderboard.OperatorStats
	err               error
}

func newMockLeaderboardService() *mockLeaderboardService {
	return &mockLeaderboardService{
		globalLeaderboard: make(map[string][]leaderboard.Entry),
		teamLeaderboard:   make(map[string][]leaderboard.Entry),
		operatorStats:     make(map[uint]*leaderboard.OperatorStats),
	}
}

func (m *mockLeaderboardService) GetGlobalLeaderboard(_ context.Context, period, metric string, limit int) ([]leaderboard.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	entries := m.globalLeaderboard[fmt.Sprintf("%s:%s", period, metric)]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLeaderboardService) GetTeamLeaderboard(_ context.Context, team, period, metric string, limit int) ([]leaderboard.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	entries := m.teamLeaderboard[fmt.Sprintf("%s:%s:%s", team, period, metric)]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLeaderboardService) GetOperatorStats(_ context.Context, operatorID uint, _ string) (*leaderboard.OperatorStats, error) {
	stats, exists := m.operatorStats[operatorID]
	if !exists {
		return nil, fmt.Errorf("failed to get operator: %w", repository.ErrNotFound)
	}
	return stats, nil
}

// Mock Call Service
type mockCallService struct {
	operators map[uint]*models.Operator
	active    map[uint]*models.Call
	history   map[uint][]models.Call
	lastReq   calls.CompleteRequest
	skips     int
}

func newMockCallService() *mockCallService {
	return &mockCallService{
		operators: make(map[uint]*models.Operator),
		active:    make(map[uint]*models.Call),
		history:   make(map[uint][]models.Call),
	}
}

func (m *mockCallService) RegisterOperator(_ context.Context, username, displayName, team string) (*models.Operator, error) {
	op := &models.Operator{
		ID: uint(len(m.operators) + 1), Username: username, DisplayName: displayName, Team: team,
		Level: 1, XPRequired: 100, Status: models.StatusOffline,
	}
	m.operators[op.ID] = op
	return op, nil
}

func (m *mockCallService) StartCall(_ context.Context, operatorID uint) (*models.Call, error) {
	op, ok := m.operators[operatorID]
	if !ok {
		return nil, calls.ErrNotFound
	}
	if op.Status != models.StatusAwaitingCall {
		return nil, fmt.Errorf("%w: operator is %s", calls.ErrInvalidTransition, op.Status)
	}
	op.Status = models.StatusOnCall
	call := &models.Call{ID: 1, EventID: "evt-1", OperatorID: operatorID, Status: models.CallStatusInProgress}
	m.active[operatorID] = call
	return call, nil
}

func (m *mockCallService) CompleteCall(_ context.Context, operatorID uint, req calls.CompleteRequest) (*calls.CompleteResult, error) {
	m.lastReq = req
	if _, ok := m.operators[operatorID]; !ok {
		return nil, calls.ErrNotFound
	}
	if req.Satisfaction != nil && !calls.ValidSatisfaction(req.Satisfaction) {
		return nil, calls.ErrInvalidSatisfaction
	}
	call, ok := m.active[operatorID]
	if !ok {
		return nil, calls.ErrNoActiveCall
	}
	delete(m.active, operatorID)
	call.Status = models.CallStatusCompleted
	call.Resolved = req.Resolved
	return &calls.CompleteResult{
		Call: call,
		Gamification: &gamification.Result{
			NewlyCompleted: []gamification.Completion{{GoalID: 3, Code: "first_call", RewardGranted: 10}},
			PointsAwarded:  10,
		},
	}, nil
}

func (m *mockCallService) SetStatus(_ context.Context, operatorID uint, status models.OperatorStatus) (*models.Operator, error) {
	op, ok := m.operators[operatorID]
	if !ok {
		return nil, calls.ErrNotFound
	}
	if status == models.StatusOnCall || op.Status == models.StatusOnCall {
		return nil, calls.ErrInvalidTransition
	}
	op.Status = status
	return op, nil
}

func (m *mockCallService) History(_ context.Context, operatorID uint, limit int) ([]models.Call, error) {
	if _, ok := m.operators[operatorID]; !ok {
		return nil, calls.ErrNotFound
	}
	h := m.history[operatorID]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (m *mockCallService) Reevaluate(_ context.Context, operatorID uint, eventID string) (*gamification.Result, error) {
	if _, ok := m.operators[operatorID]; !ok {
		return nil, calls.ErrNotFound
	}
	if call, ok := m.active[operatorID]; ok && call.EventID == eventID {
		return nil, calls.ErrCallNotCompleted
	}
	for _, call := range m.history[operatorID] {
		if call.EventID != eventID {
			continue
		}
		if m.skips > 0 {
			m.skips--
			return nil, fmt.Errorf("event %s: %w", eventID, gamification.ErrEvaluationSkipped)
		}
		return &gamification.Result{Replayed: true}, nil
	}
	return nil, fmt.Errorf("call %s: %w", eventID, calls.ErrNotFound)
}

type mockSubscriber struct {
	sub    notify.Subscription
	called bool
}

func (m *mockSubscriber) Serve(w http.ResponseWriter, _ *http.Request, sub notify.Subscription) {
	m.called = true
	m.sub = sub
	w.WriteHeader(http.StatusSwitchingProtocols)
}

// Test Setup
type testDeps struct {
	leaderboard *mockLeaderboardService
	calls       *mockCallService
	goals       *mocks.MockGoalRepository
	progress    *mocks.MockProgressRepository
	subscriber  *mockSubscriber
}

func setupTestHandler() (*Handler, *testDeps) {
	deps := &testDeps{
		leaderboard: newMockLeaderboardService(),
		calls:       newMockCallService(),
		goals:       &mocks.MockGoalRepository{},
		progress:    &mocks.MockProgressRepository{},
		subscriber:  &mockSubscriber{},
	}
	handler := NewHandlerWithInterfaces(deps.leaderboard, deps.calls, deps.goals, deps.progress, deps.subscriber, logger.Nop())
	return handler, deps
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, http.NoBody)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// Tests

func TestGetGlobalLeaderboard_Success(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	deps.leaderboard.globalLeaderboard["week:points"] = []leaderboard.Entry{
		{Rank: 1, OperatorID: 1, Username: "alice", Team: "support", Points: 400},
		{Rank: 2, OperatorID: 2, Username: "bob", Team: "support", Points: 150},
	}

	w := doRequest(router, "GET", "/api/v1/leaderboard?period=week&metric=points&limit=10", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "week", response["period"])
	assert.Equal(t, "points", response["metric"])
	assert.Equal(t, float64(2), response["total_entries"])
}

func TestGetGlobalLeaderboard_Defaults(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler.WithDefaultLimit(1))

	deps.leaderboard.globalLeaderboard["all_time:points"] = []leaderboard.Entry{
		{Rank: 1, Username: "charlie"}, {Rank: 2, Username: "alice"},
	}

	w := doRequest(router, "GET", "/api/v1/leaderboard", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "all_time", response["period"])
	assert.Equal(t, float64(1), response["total_entries"])
}

func TestGetGlobalLeaderboard_InvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"invalid period", "?period=year", "invalid period"},
		{"invalid metric", "?metric=engagement", "invalid metric"},
		{"invalid limit", "?limit=abc", "invalid limit"},
		{"zero limit", "?limit=0", "greater than 0"},
		{"limit too large", "?limit=5000", "cannot exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := setupTestHandler()
			router := setupRouter(handler)

			w := doRequest(router, "GET", "/api/v1/leaderboard"+tt.query, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.wantErr)
		})
	}
}

func TestGetGlobalLeaderboard_ServiceError(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.leaderboard.err = fmt.Errorf("database unavailable")

	w := doRequest(router, "GET", "/api/v1/leaderboard", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve leaderboard", decode(t, w)["error"])
}

func TestGetTeamLeaderboard_Success(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	deps.leaderboard.teamLeaderboard["billing:month:avg_handle_time"] = []leaderboard.Entry{
		{Rank: 1, OperatorID: 3, Username: "charlie", Team: "billing", AvgHandleTime: 180},
	}

	w := doRequest(router, "GET", "/api/v1/leaderboard/billing?period=month&metric=avg_handle_time", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "billing", response["team"])
	assert.Equal(t, "avg_handle_time", response["metric"])
	assert.Equal(t, float64(1), response["total_entries"])
}

func TestGetOperatorStats(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	deps.leaderboard.operatorStats[1] = &leaderboard.OperatorStats{
		OperatorID: 1, Username: "alice", Team: "support", Level: 3, Points: 400, GlobalRank: 2, TeamRank: 1,
	}

	w := doRequest(router, "GET", "/api/v1/operators/1/stats?period=week", "")
	assert.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.Equal(t, "alice", stats["username"])
	assert.Equal(t, float64(2), stats["global_rank"])

	w = doRequest(router, "GET", "/api/v1/operators/99/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, "GET", "/api/v1/operators/abc/stats", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid operator ID")
}

func TestGetOperatorProgressAndAchievements(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	achievement := &models.Goal{ID: 1, Code: "first_call", Kind: models.GoalKindAchievement}
	mission := &models.Goal{ID: 2, Code: "daily_dozen", Kind: models.GoalKindMission}
	rows := []models.Progress{
		{OperatorID: 1, GoalID: 1, Goal: achievement, Value: 1, Completed: true},
		{OperatorID: 1, GoalID: 2, Goal: mission, Value: 12, Completed: true},
		{OperatorID: 2, GoalID: 1, Goal: achievement, Value: 0},
	}
	deps.progress.ListByOperatorFunc = func(_ context.Context, operatorID uint) ([]models.Progress, error) {
		var out []models.Progress
		for _, p := range rows {
			if p.OperatorID == operatorID {
				out = append(out, p)
			}
		}
		return out, nil
	}
	deps.progress.ListCompletedFunc = func(_ context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error) {
		var out []models.Progress
		for _, p := range rows {
			if p.OperatorID == operatorID && p.Completed && p.Goal.Kind == kind {
				out = append(out, p)
			}
		}
		return out, nil
	}

	w := doRequest(router, "GET", "/api/v1/operators/1/progress", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["progress"], 2)

	w = doRequest(router, "GET", "/api/v1/operators/1/achievements", "")
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(1), response["total_achievements"])
}

func TestGetGoalCatalog(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	goals := []models.Goal{
		{ID: 1, Code: "first_call", Kind: models.GoalKindAchievement},
		{ID: 2, Code: "daily_dozen", Kind: models.GoalKindMission},
	}
	var requestedKind models.GoalKind
	deps.goals.GetAllFunc = func(_ context.Context, kind models.GoalKind, activeOnly bool) ([]models.Goal, error) {
		requestedKind = kind
		assert.True(t, activeOnly)
		var out []models.Goal
		for _, g := range goals {
			if kind == "" || g.Kind == kind {
				out = append(out, g)
			}
		}
		return out, nil
	}

	w := doRequest(router, "GET", "/api/v1/goals", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total_goals"])

	w = doRequest(router, "GET", "/api/v1/goals?kind=mission", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total_goals"])
	assert.Equal(t, models.GoalKindMission, requestedKind)

	w = doRequest(router, "GET", "/api/v1/goals?kind=badge", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterOperator(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := doRequest(router, "POST", "/api/v1/operators", `{"username":"alice","display_name":"Alice","team":"support"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	op := decode(t, w)["operator"].(map[string]interface{})
	assert.Equal(t, "alice", op["username"])
	assert.Equal(t, "support", op["team"])

	w = doRequest(router, "POST", "/api/v1/operators", `{"team":"support"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallLifecycle(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.calls.operators[1] = &models.Operator{ID: 1, Username: "alice", Status: models.StatusOffline}

	// Offline operators cannot take calls
	w := doRequest(router, "POST", "/api/v1/operators/1/calls", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "PUT", "/api/v1/operators/1/status", `{"status":"awaiting_call"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "POST", "/api/v1/operators/1/calls", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	call := decode(t, w)["call"].(map[string]interface{})
	assert.Equal(t, "evt-1", call["event_id"])

	w = doRequest(router, "PUT", "/api/v1/operators/1/status", `{"status":"on_break"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "POST", "/api/v1/operators/1/calls/complete", `{"resolved":true,"satisfaction":5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, false, response["evaluation_skipped"])
	assert.NotNil(t, response["gamification"])
	assert.True(t, deps.calls.lastReq.Resolved)
	require.NotNil(t, deps.calls.lastReq.Satisfaction)
	assert.Equal(t, 5, *deps.calls.lastReq.Satisfaction)

	w = doRequest(router, "POST", "/api/v1/operators/1/calls/complete", `{"resolved":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no call in progress")
}

func TestCompleteCall_Errors(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.calls.operators[1] = &models.Operator{ID: 1, Username: "alice", Status: models.StatusOnCall}
	deps.calls.active[1] = &models.Call{ID: 1, OperatorID: 1}

	w := doRequest(router, "POST", "/api/v1/operators/1/calls/complete", `{"resolved":true,"satisfaction":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "POST", "/api/v1/operators/1/calls/complete", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "POST", "/api/v1/operators/42/calls/complete", `{"resolved":false}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetStatus_Invalid(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.calls.operators[1] = &models.Operator{ID: 1, Status: models.StatusAwaitingCall}

	w := doRequest(router, "PUT", "/api/v1/operators/1/status", `{"status":"sleeping"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "PUT", "/api/v1/operators/1/status", `{"status":"on_call"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "PUT", "/api/v1/operators/7/status", `{"status":"offline"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCallHistory(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.calls.operators[1] = &models.Operator{ID: 1}
	deps.calls.history[1] = []models.Call{{ID: 3}, {ID: 2}, {ID: 1}}

	w := doRequest(router, "GET", "/api/v1/operators/1/calls?limit=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total_calls"])
}

func TestServeWebSocket(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)

	w := doRequest(router, "GET", "/api/v1/ws?operator_id=12", "")
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code)
	assert.True(t, deps.subscriber.called)
	assert.Equal(t, notify.Subscription{OperatorID: 12}, deps.subscriber.sub)

	w = doRequest(router, "GET", "/api/v1/ws?team=support", "")
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code)
	assert.Equal(t, notify.Subscription{Team: "support"}, deps.subscriber.sub)

	w = doRequest(router, "GET", "/api/v1/ws?operator_id=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeWebSocket_Disabled(t *testing.T) {
	handler := NewHandlerWithInterfaces(newMockLeaderboardService(), newMockCallService(), &mocks.MockGoalRepository{}, &mocks.MockProgressRepository{}, nil, logger.Nop())
	router := setupRouter(handler)

	w := doRequest(router, "GET", "/api/v1/ws", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReevaluateCall(t *testing.T) {
	handler, deps := setupTestHandler()
	router := setupRouter(handler)
	deps.calls.operators[1] = &models.Operator{ID: 1, Username: "alice", Status: models.StatusOnCall}
	deps.calls.active[1] = &models.Call{ID: 2, OperatorID: 1, EventID: "evt-2"}
	deps.calls.history[1] = []models.Call{{ID: 1, OperatorID: 1, EventID: "evt-1"}}
	deps.calls.skips = 1

	// First retry hits an unavailable engine, the second succeeds
	w := doRequest(router, "POST", "/api/v1/operators/1/calls/evt-1/evaluate", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error"], "retry later")

	w = doRequest(router, "POST", "/api/v1/operators/1/calls/evt-1/evaluate", "")
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "evt-1", response["event_id"])
	assert.NotNil(t, response["gamification"])

	tests := []struct {
		name string
		path string
		want int
	}{
		{"call in progress", "/api/v1/operators/1/calls/evt-2/evaluate", http.StatusConflict},
		{"unknown event", "/api/v1/operators/1/calls/evt-9/evaluate", http.StatusNotFound},
		{"unknown operator", "/api/v1/operators/7/calls/evt-1/evaluate", http.StatusNotFound},
		{"invalid operator id", "/api/v1/operators/abc/calls/evt-1/evaluate", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "POST", tt.path, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
