package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/ewaproduct/ewabot/core/config"
)

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	// PublicURL is the full webhook address registered with Telegram.
	PublicURL   string
	SecretToken string
}

// BuildPoller returns a Telebot poller based on provided options.
// In webhook mode the poller only registers the hook; updates arrive
// through the HTTP server started by RunTelegram.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Endpoint:    &tele.WebhookEndpoint{PublicURL: opts.PublicURL},
			SecretToken: opts.SecretToken,
		}
	}

	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}
