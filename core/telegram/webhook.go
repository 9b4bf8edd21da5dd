package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
)

// SecretHeader carries the webhook secret token set via setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const webhookPrefix = "/telegram/webhook/"

// UpdateProcessor is the part of tele.Bot that consumes decoded updates.
type UpdateProcessor interface {
	ProcessUpdate(u tele.Update)
}

// WebhookPath returns the path under which updates for botID are accepted.
func WebhookPath(botID string) string {
	return webhookPrefix + botID
}

// WebhookURL joins the public base URL with the bot specific path.
func WebhookURL(base, botID string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + WebhookPath(botID)
}

// NewWebhookHandler serves POST /telegram/webhook/{botID} and GET /healthz.
// Requests for another bot id get 404, a wrong secret gets 401.
func NewWebhookHandler(botID, secret string, proc UpdateProcessor) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST "+webhookPrefix+"{botID}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("botID") != botID {
			http.NotFound(w, r)
			return
		}
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(secret)) != 1 {
			logger.Warn(r.Context(), logger.CompWebhook, "webhook.reject",
				slog.String("status", "rejected"),
				slog.String("reason", "secret_mismatch"),
			)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var upd tele.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&upd); err != nil {
			logger.Warn(r.Context(), logger.CompWebhook, "webhook.decode",
				slog.String("status", "error"),
				slog.String("err", err.Error()),
			)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		proc.ProcessUpdate(upd)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// serveWebhook runs srv until ctx is done, then shuts it down gracefully.
func serveWebhook(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.CompWebhook, "webhook.listen",
			slog.String("addr", srv.Addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
