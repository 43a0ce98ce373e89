// Package notify delivers short pipeline notices to an operator channel.
// Delivery is best-effort: failures are logged and never reach the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/imkarma/ideaflow/internal/config"
)

// Notifier sends a message. Implementations must not block the pipeline for
// long and must not fail it.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

// DefaultTelegramURL is the Bot API base.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultTelegramURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL points the notifier at another Bot API host.
func (t *Telegram) WithBaseURL(url string) *Telegram {
	t.baseURL = url
	return t
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	if err := t.send(ctx, text); err != nil {
		t.logger.Warn("telegram notification failed", "err", err)
	}
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage: HTTP %d", resp.StatusCode)
	}
	return nil
}

// New returns a Telegram notifier when the config carries both token and
// chat, and Nop otherwise.
func New(cfg config.Notify, logger *slog.Logger) Notifier {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
}
