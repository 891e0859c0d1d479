package scheduler

import (
	"fmt"
	"strings"

	"github.com/aimd54/callcenter-gamification/internal/mattermost"
	"github.com/aimd54/callcenter-gamification/internal/service/leaderboard"
)

// buildDigest turns leaderboard entries into digest rows, skipping operators with no calls today.
func buildDigest(entries []leaderboard.Entry, metric string) []mattermost.DigestEntry {
	lines := make([]mattermost.DigestEntry, 0, len(entries))

	for _, e := range entries {
		if e.TotalCalls == 0 && e.Points == 0 {
			continue
		}

		username := e.Username
		if username == "" {
			username = "unknown"
		}

		lines = append(lines, mattermost.DigestEntry{
			Rank:     e.Rank,
			Username: username,
			Team:     e.Team,
			Value:    formatValue(e, metric),
		})
	}

	return lines
}

func formatValue(e leaderboard.Entry, metric string) string {
	switch metric {
	case leaderboard.MetricCalls:
		return fmt.Sprintf("%d calls", e.TotalCalls)
	case leaderboard.MetricResolutionRate:
		return fmt.Sprintf("%.0f%%", e.ResolutionRate*100)
	case leaderboard.MetricAvgSatisfaction:
		return fmt.Sprintf("%.2f ★", e.AvgSatisfaction)
	case leaderboard.MetricAvgHandleTime:
		seconds := int(e.AvgHandleTime + 0.5)
		return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%d pts", e.Points)
	}
}

func digestTitle(metric string) string {
	if metric == "" {
		metric = leaderboard.MetricPoints
	}
	return "Today's leaderboard: " + strings.ReplaceAll(metric, "_", " ")
}
