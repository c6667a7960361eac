package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/models"
)

// webhookTimeout bounds each delivery attempt. No retries; the alert
// itself is already persisted before fanout.
const webhookTimeout = 10 * time.Second

// Notifier fans alerts out to the configured webhook channels. Unset
// targets are silent no-ops. Deliveries are rate limited per rolling
// minute and never block the caller.
type Notifier struct {
	logger  arbor.ILogger
	targets common.WebhookTargets
	limiter *rate.Limiter
	client  *http.Client

	sent    int64
	dropped int64
	failed  int64
}

// newNotifier builds the fanout from the alert config. ratePerMinute
// tokens are available per rolling minute.
func newNotifier(logger arbor.ILogger, config *common.AlertsConfig) *Notifier {
	perMinute := config.WebhookRatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}

	return &Notifier{
		logger:  logger,
		targets: config.Webhooks,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		client:  &http.Client{Timeout: webhookTimeout},
	}
}

// hasTargets reports whether any channel is configured
func (n *Notifier) hasTargets() bool {
	return n.targets.GenericURL != "" ||
		n.targets.SlackURL != "" ||
		n.targets.DiscordURL != "" ||
		(n.targets.TelegramBotToken != "" && n.targets.TelegramChatID != "")
}

// Notify delivers one alert to every configured channel off the caller's
// goroutine. Over-rate alerts are dropped and counted.
func (n *Notifier) Notify(alert *models.Alert) {
	if alert == nil || !n.hasTargets() {
		return
	}
	if !n.limiter.Allow() {
		atomic.AddInt64(&n.dropped, 1)
		n.logger.Debug().
			Str("alert_id", alert.ID).
			Msg("Webhook delivery dropped by rate limit")
		return
	}

	common.SafeGo(n.logger, "webhook-fanout", func() {
		n.deliver(alert)
	})
}

// Counters returns sent, dropped and failed delivery totals
func (n *Notifier) Counters() (sent, dropped, failed int64) {
	return atomic.LoadInt64(&n.sent), atomic.LoadInt64(&n.dropped), atomic.LoadInt64(&n.failed)
}

func (n *Notifier) deliver(alert *models.Alert) {
	text := formatAlertText(alert)

	if n.targets.GenericURL != "" {
		n.post(n.targets.GenericURL, alert, "generic")
	}
	if n.targets.SlackURL != "" {
		n.post(n.targets.SlackURL, map[string]string{"text": text}, "slack")
	}
	if n.targets.DiscordURL != "" {
		n.post(n.targets.DiscordURL, map[string]string{"content": text}, "discord")
	}
	if n.targets.TelegramBotToken != "" && n.targets.TelegramChatID != "" {
		url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.targets.TelegramBotToken)
		n.post(url, map[string]string{
			"chat_id": n.targets.TelegramChatID,
			"text":    text,
		}, "telegram")
	}
}

func (n *Notifier) post(url string, payload interface{}, channel string) {
	body, err := json.Marshal(payload)
	if err != nil {
		atomic.AddInt64(&n.failed, 1)
		n.logger.Warn().Err(err).Str("channel", channel).Msg("Failed to encode webhook payload")
		return
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&n.failed, 1)
		n.logger.Warn().Err(err).Str("channel", channel).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		atomic.AddInt64(&n.failed, 1)
		n.logger.Warn().
			Str("channel", channel).
			Int("status", resp.StatusCode).
			Msg("Webhook endpoint rejected delivery")
		return
	}

	atomic.AddInt64(&n.sent, 1)
	n.logger.Debug().Str("channel", channel).Msg("Webhook delivered")
}

func formatAlertText(alert *models.Alert) string {
	text := fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	if alert.Description != "" {
		text += "\n" + alert.Description
	}
	if alert.URL != "" {
		text += "\n" + alert.URL
	}
	return text
}
