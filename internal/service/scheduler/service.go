// Package scheduler provides the daily leaderboard digest job.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/callcenter-gamification/internal/config"
	"github.com/aimd54/callcenter-gamification/internal/mattermost"
	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/service/leaderboard"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// LeaderboardSource provides the rankings the digest is built from.
type LeaderboardSource interface {
	GetGlobalLeaderboard(ctx context.Context, period, metric string, limit int) ([]leaderboard.Entry, error)
}

// DigestSender posts the digest.
type DigestSender interface {
	SendLeaderboardDigest(ctx context.Context, title string, entries []mattermost.DigestEntry) error
}

// Service handles daily digest scheduling.
type Service struct {
	config      *config.SchedulerConfig
	leaderboard LeaderboardSource
	sender      DigestSender
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	leaderboardService *leaderboard.Service,
	mattermostClient *mattermost.Client,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, leaderboardService, mattermostClient, log)
}

// NewServiceWithInterfaces creates a scheduler service with interface dependencies (for testing).
func NewServiceWithInterfaces(cfg *config.SchedulerConfig, source LeaderboardSource, sender DigestSender, log *logger.Logger) *Service {
	return &Service{
		config:      cfg,
		leaderboard: source,
		sender:      sender,
		log:         log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.RunDigest(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register leaderboard digest job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Timezone).
		Bool("skip_weekends", s.config.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job to finish.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Format: "HH:MM"
	parts := strings.Split(s.config.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	if s.config.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RunDigest posts today's leaderboard. Failures are logged and counted, never retried.
func (s *Service) RunDigest(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun()
	}()

	metric := s.config.DigestMetric
	if metric == "" {
		metric = leaderboard.MetricPoints
	}
	size := s.config.DigestSize
	if size <= 0 {
		size = 5
	}

	s.log.Info().Str("metric", metric).Msg("Running leaderboard digest job")

	entries, err := s.leaderboard.GetGlobalLeaderboard(ctx, statistics.WindowToday, metric, size)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build leaderboard for digest")
		prommetrics.RecordSchedulerJobRun("error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}

	lines := buildDigest(entries, metric)
	if len(lines) == 0 {
		s.log.Debug().Msg("No activity today, skipping digest")
		prommetrics.RecordSchedulerJobRun("success")
		return
	}

	sendStart := time.Now()
	if err := s.sender.SendLeaderboardDigest(ctx, digestTitle(metric), lines); err != nil {
		s.log.Error().
			Err(err).
			Dur("send_duration", time.Since(sendStart)).
			Msg("Failed to send leaderboard digest")
		prommetrics.RecordSchedulerJobRun("error")
		prommetrics.RecordSchedulerNotificationFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun("success")
	s.log.Info().
		Int("operators", len(lines)).
		Dur("total_duration", time.Since(start)).
		Msg("Sent leaderboard digest")
}
