package notify

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/observability"
)

// Event names matched against the configured notification filter.
const (
	EventProvisioningSuccess  = "provisioning_success"
	EventProvisioningFailed   = "provisioning_failed"
	EventSSLIssued            = "ssl_issued"
	EventBandwidthAlert       = "bandwidth_alert"
	EventDeprovisioned        = "deprovisioned"
	EventSubdomainProvisioned = "subdomain_provisioned"
)

// messageSender is the subset of the Telegram bot API the notifier uses.
type messageSender interface {
	SendMessage(params *telego.SendMessageParams) (*telego.Message, error)
}

var _ messageSender = (*telego.Bot)(nil)

// TelegramNotifier sends HTML-formatted notifications to a Telegram chat.
// The zero notifier (or one built from a disabled config) drops everything.
type TelegramNotifier struct {
	bot     messageSender
	chatID  int64
	enabled bool
	events  []string
	logger  *observability.Logger
}

// NewTelegramNotifier builds a notifier from config. A disabled config or
// missing credentials yields a working no-op notifier; an invalid chat ID or
// unreachable bot API is an error.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *observability.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == "" {
		return &TelegramNotifier{enabled: false, events: cfg.Events, logger: logger}, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat ID: %w", err)
	}

	bot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("failed to connect to telegram API: %w", err)
	}

	return &TelegramNotifier{
		bot:     bot,
		chatID:  chatID,
		enabled: true,
		events:  cfg.Events,
		logger:  logger,
	}, nil
}

// IsEnabled reports whether notifications will actually be sent.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// NotifySuccess reports a completed domain provisioning run.
func (t *TelegramNotifier) NotifySuccess(ctx context.Context, domain string, zoneID int64, cdnHostname string, duration time.Duration) error {
	if !t.shouldNotify(EventProvisioningSuccess) {
		return nil
	}
	return t.send(ctx, fmt.Sprintf(
		"✅ <b>Domain Provisioned</b>\n\n"+
			"🌐 <b>Domain:</b> %s\n"+
			"📍 <b>Zone ID:</b> %d\n"+
			"🚀 <b>CDN:</b> %s\n"+
			"⏱️ <b>Duration:</b> %.2fs\n\n"+
			"🖥️ <b>Server:</b> %s",
		domain, zoneID, cdnHostname, duration.Seconds(), hostname()))
}

// NotifyFailed reports a provisioning run that gave up at the named step.
func (t *TelegramNotifier) NotifyFailed(ctx context.Context, domain, step, errMsg string) error {
	if !t.shouldNotify(EventProvisioningFailed) {
		return nil
	}
	return t.send(ctx, fmt.Sprintf(
		"❌ <b>Provisioning Failed</b>\n\n"+
			"🌐 <b>Domain:</b> %s\n"+
			"📍 <b>Step:</b> %s\n"+
			"⚠️ <b>Error:</b> %s\n\n"+
			"🖥️ <b>Server:</b> %s\n"+
			"🕐 <b>Time:</b> %s",
		domain, step, errMsg, hostname(),
		time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))
}

// NotifySubdomainProvisioned reports a subdomain attached to an existing zone.
func (t *TelegramNotifier) NotifySubdomainProvisioned(ctx context.Context, subdomain, parent, cdnHostname string) error {
	if !t.shouldNotify(EventSubdomainProvisioned) {
		return nil
	}
	return t.send(ctx, fmt.Sprintf(
		"✅ <b>Subdomain Provisioned</b>\n\n"+
			"🌐 <b>Subdomain:</b> %s\n"+
			"📍 <b>Parent Zone:</b> %s\n"+
			"🚀 <b>CDN:</b> %s\n\n"+
			"🖥️ <b>Server:</b> %s",
		subdomain, parent, cdnHostname, hostname()))
}

// NotifyDeprovisioned reports a domain whose DNS zone and pull zone were
// deleted.
func (t *TelegramNotifier) NotifyDeprovisioned(ctx context.Context, domain string) error {
	if !t.shouldNotify(EventDeprovisioned) {
		return nil
	}
	return t.send(ctx, fmt.Sprintf(
		"🗑️ <b>Domain Removed</b>\n\n"+
			"🌐 <b>Domain:</b> %s\n"+
			"📍 <b>DNS Zone:</b> Deleted\n"+
			"🚀 <b>CDN Pull Zone:</b> Deleted\n\n"+
			"🖥️ <b>Server:</b> %s",
		domain, hostname()))
}

// NotifyBandwidthAlert reports a zone whose bandwidth jumped past the
// configured threshold.
func (t *TelegramNotifier) NotifyBandwidthAlert(ctx context.Context, domain string, percentIncrease float64) error {
	if !t.shouldNotify(EventBandwidthAlert) {
		return nil
	}
	return t.send(ctx, fmt.Sprintf(
		"⚠️ <b>Bandwidth Alert</b>\n\n"+
			"🌐 <b>Domain:</b> %s\n"+
			"📈 <b>Increase:</b> %.0f%%\n\n"+
			"🖥️ <b>Server:</b> %s",
		domain, percentIncrease, hostname()))
}

// SendRaw sends a preformatted message, used for scheduled summaries.
func (t *TelegramNotifier) SendRaw(ctx context.Context, message string) error {
	if !t.enabled {
		return nil
	}
	if len(message) > 0 && !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	return t.send(ctx, message)
}

// send posts an HTML message to the configured chat. The bot client manages
// its own request deadlines; ctx is not threaded through it.
func (t *TelegramNotifier) send(_ context.Context, message string) error {
	if !t.enabled {
		return nil
	}
	_, err := t.bot.SendMessage(&telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: t.chatID},
		Text:      message,
		ParseMode: "HTML",
	})
	if err != nil {
		t.logger.WithError(err).Error("failed to send telegram notification")
		return err
	}
	return nil
}

// shouldNotify applies the configured event filter. An empty filter allows
// every event.
func (t *TelegramNotifier) shouldNotify(event string) bool {
	if !t.enabled {
		return false
	}
	if len(t.events) == 0 {
		return true
	}
	for _, e := range t.events {
		if strings.EqualFold(e, event) {
			return true
		}
	}
	return false
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
