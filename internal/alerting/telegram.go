package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	http    *http.Client
	logger  zerolog.Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramNotifier constructs the Telegram channel. An empty apiBase
// selects the public Bot API.
func NewTelegramNotifier(token, chatID, apiBase string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiBase = strings.TrimRight(apiBase, "/")
	if apiBase == "" {
		apiBase = defaultTelegramAPI
	}
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: apiBase,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Name identifies the channel.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Notify posts the rendered alert with sendMessage. Errors never contain
// the bot token.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                n.chatID,
		Text:                  renderMessage(note),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	endpoint := n.apiBase + "/bot" + n.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %s", n.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %s", n.redact(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var result telegramResponse
	decodeErr := json.Unmarshal(raw, &result)
	switch {
	case resp.StatusCode != http.StatusOK && result.Description != "":
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, result.Description)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	case decodeErr != nil:
		return fmt.Errorf("decode telegram response: %w", decodeErr)
	case !result.OK:
		return fmt.Errorf("telegram rejected message (code %d): %s", result.ErrorCode, result.Description)
	}

	n.logger.Info().
		Str("date", note.Date.UTC().Format(time.DateOnly)).
		Str("status", string(note.Status)).
		Int64("total", note.Total).
		Msg("alert sent (telegram)")
	return nil
}

func (n *TelegramNotifier) redact(msg string) string {
	if n.token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, n.token, "<token>")
}

var _ Notifier = (*TelegramNotifier)(nil)
