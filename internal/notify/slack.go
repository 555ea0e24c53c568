package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/internal/report"
)

// Slack posts reports to an incoming webhook.
type Slack struct {
	url      string
	username string
	emoji    string
	client   *http.Client
}

// NewSlack creates a Slack notifier from the job configuration.
func NewSlack(cfg *config.Config) *Slack {
	return &Slack{
		url:      cfg.WebhookURL(),
		username: cfg.SlackUsername,
		emoji:    cfg.SlackEmoji,
		client:   &http.Client{Timeout: cfg.Timeout.Std()},
	}
}

// Deliver posts r to channel. An error means Slack did not accept the message.
func (s *Slack) Deliver(ctx context.Context, channel string, r report.Report) error {
	start := time.Now()
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.client, s.message(channel, r)); err != nil {
		return fmt.Errorf("notify: slack channel %q: %w", channel, err)
	}
	slog.Debug("notify: slack delivered",
		"channel", channel, "entries", len(r.Entries), "took", time.Since(start))
	return nil
}

func (s *Slack) message(channel string, r report.Report) *slack.WebhookMessage {
	msg := &slack.WebhookMessage{
		Username:  s.username,
		IconEmoji: s.emoji,
		Channel:   channel,
		Text:      r.Summary,
	}
	for _, e := range r.Entries {
		msg.Attachments = append(msg.Attachments, slack.Attachment{
			Text:       markdown(e),
			Color:      e.Severity.String(),
			MarkdownIn: []string{"text", "pretext"},
		})
	}
	return msg
}

// markdown bolds the leading "<n> Days" of an entry line.
func markdown(e report.Entry) string {
	days := fmt.Sprintf("%d Days", e.Record.DaysRemaining)
	if rest, ok := strings.CutPrefix(e.Text, days); ok {
		return "*" + days + "*" + rest
	}
	return e.Text
}
