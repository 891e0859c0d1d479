// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the gamification service.
var (
	// Goal evaluation.
	EventsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_events_evaluated_total",
			Help: "Total domain events passed to the goal evaluation engine",
		},
		[]string{"outcome"},
	)

	GoalsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_goals_completed_total",
			Help: "Total goals completed by operators",
		},
		[]string{"kind", "goal"},
	)

	PointsAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_points_awarded_total",
			Help: "Total reward points credited to operators",
		},
	)

	LedgerConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_ledger_conflicts_total",
			Help: "Total reward grants lost to a concurrent completion",
		},
	)

	InvalidGoalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_invalid_goals_total",
			Help: "Total goals excluded from evaluation because their definition is invalid",
		},
		[]string{"goal"},
	)

	LevelUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_level_ups_total",
			Help: "Total levels gained by operators",
		},
	)

	EvaluationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamification_evaluation_duration_seconds",
			Help:    "Time taken to evaluate goals for one event",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_notifications_total",
			Help: "Total notifications dispatched after evaluation",
		},
		[]string{"channel", "status"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamification_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// Calls.
	CallsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_completed_total",
			Help: "Total calls completed by operators",
		},
		[]string{"team", "resolved"},
	)

	CallsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calls_in_progress",
			Help: "Current number of calls being handled",
		},
	)

	CallHandleTimeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "call_handle_time_seconds",
			Help:    "Call handle time in seconds",
			Buckets: prometheus.ExponentialBuckets(30, 2, 8), // 30s to ~64min
		},
		[]string{"team"},
	)

	// Leaderboard.
	LeaderboardCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_requests_total",
			Help: "Total leaderboard cache lookups",
		},
		[]string{"result"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"status"},
	)

	SchedulerNotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_failed_total",
			Help: "Total failed digest notification attempts",
		},
		[]string{"reason"},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute the leaderboard digest job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~13s
		},
	)
)

// RecordEventEvaluated records the outcome of one engine evaluation.
func RecordEventEvaluated(outcome string) {
	EventsEvaluatedTotal.WithLabelValues(outcome).Inc()
}

// RecordGoalCompleted records a goal completion and the points it credited.
func RecordGoalCompleted(kind, goal string, points int) {
	GoalsCompletedTotal.WithLabelValues(kind, goal).Inc()
	if points > 0 {
		PointsAwardedTotal.Add(float64(points))
	}
}

// RecordLedgerConflict records a completion lost to a concurrent evaluation.
func RecordLedgerConflict() {
	LedgerConflictsTotal.Inc()
}

// RecordInvalidGoal records a goal excluded from evaluation.
func RecordInvalidGoal(goal string) {
	InvalidGoalsTotal.WithLabelValues(goal).Inc()
}

// RecordLevelUps records levels gained.
func RecordLevelUps(levels int) {
	if levels > 0 {
		LevelUpsTotal.Add(float64(levels))
	}
}

// ObserveEvaluationDuration records how long an evaluation took.
func ObserveEvaluationDuration(d time.Duration) {
	EvaluationDurationSeconds.Observe(d.Seconds())
}

// RecordNotification records a notification dispatch attempt.
func RecordNotification(channel string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// SetWebSocketClients sets the number of connected websocket clients.
func SetWebSocketClients(count int) {
	WebSocketClients.Set(float64(count))
}

// RecordCallStarted records a call being picked up.
func RecordCallStarted() {
	CallsInProgress.Inc()
}

// RecordCallCompleted records a completed call.
func RecordCallCompleted(team string, resolved bool, handleTimeSeconds int) {
	CallsInProgress.Dec()
	CallsCompletedTotal.WithLabelValues(team, strconv.FormatBool(resolved)).Inc()
	CallHandleTimeSeconds.WithLabelValues(team).Observe(float64(handleTimeSeconds))
}

// RecordLeaderboardCache records a leaderboard cache hit or miss.
func RecordLeaderboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LeaderboardCacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(status string) {
	SchedulerJobsRunTotal.WithLabelValues(status).Inc()
}

// RecordSchedulerNotificationFailed records a failed digest notification.
func RecordSchedulerNotificationFailed(reason string) {
	SchedulerNotificationsFailedTotal.WithLabelValues(reason).Inc()
}

// SetSchedulerLastRun sets the last run timestamp to now.
func SetSchedulerLastRun() {
	SchedulerLastRunTimestamp.SetToCurrentTime()
}

// ObserveSchedulerJobDuration records scheduler job duration.
func ObserveSchedulerJobDuration(seconds float64) {
	SchedulerJobDurationSeconds.Observe(seconds)
}
