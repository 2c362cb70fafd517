// Package notify pushes trade and session alerts to the operator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a formatted message. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Nop discards all messages. Used when no Telegram credentials are set.
type Nop struct{}

func (Nop) Send(ctx context.Context, text string) error { return nil }

// Telegram posts HTML messages to a chat via the Bot API.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	log    zerolog.Logger
}

// NewTelegram builds a notifier for one bot/chat pair.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	return nil
}
