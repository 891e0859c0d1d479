// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/config"
	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

const botUsername = "Call Center Bot"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendSimpleMessage sends a simple text message.
func (c *Client) SendSimpleMessage(ctx context.Context, text string) error {
	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     text,
	})
}

// Notify implements gamification.Notifier. Only achievements and level-ups are announced;
// mission completions stay on the operator's own channels.
func (c *Client) Notify(ctx context.Context, n gamification.Notification) error {
	var text string
	switch n.Type {
	case gamification.NotificationGoalCompleted:
		if n.GoalKind != models.GoalKindAchievement {
			return nil
		}
		icon := n.GoalIcon
		if icon == "" {
			icon = "🏆"
		}
		text = fmt.Sprintf("%s @%s unlocked **%s**", icon, n.Username, n.GoalTitle)
		if n.Points > 0 {
			text += fmt.Sprintf(" (+%d points)", n.Points)
		}
	case gamification.NotificationLevelUp:
		text = fmt.Sprintf("⬆️ @%s reached **level %d**", n.Username, n.Level)
	default:
		return nil
	}

	if n.Team != "" {
		text += fmt.Sprintf(" _(%s)_", n.Team)
	}
	return c.SendSimpleMessage(ctx, text)
}

// DigestEntry is one row of the leaderboard digest.
type DigestEntry struct {
	Rank     int
	Username string
	Team     string
	Value    string
}

// SendLeaderboardDigest posts the leaderboard digest. An empty digest is skipped.
func (c *Client) SendLeaderboardDigest(ctx context.Context, title string, entries []DigestEntry) error {
	if len(entries) == 0 {
		c.log.Debug().Msg("Empty leaderboard, skipping digest")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 📊 %s\n\n", title)
	b.WriteString("| Rank | Operator | Team | Score |\n")
	b.WriteString("|:----:|:---------|:-----|------:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | @%s | %s | %s |\n", rankLabel(e.Rank), e.Username, e.Team, e.Value)
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     b.String(),
	})
}

func rankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return fmt.Sprintf("%d", rank)
}
