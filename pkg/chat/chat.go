package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"elaview-bookingops/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("chat",
	fx.Provide(New),
)

// Notifier delivers a human-readable message to the admin chat channel.
// Callers treat delivery as fire-and-forget: a failed send is logged and
// never affects booking state.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// client posts messages through a Green-API style WhatsApp gateway.
type client struct {
	http       *http.Client
	baseURL    string
	instanceID string
	token      string
	chatID     string
}

func New(cfg *config.Config) Notifier {
	if cfg.Chat.BaseURL == "" || cfg.Chat.InstanceID == "" || cfg.Chat.Token == "" {
		zap.L().Warn("[Chat] Provider not configured, outbound messages will only be logged")
		return &logNotifier{}
	}

	return &client{
		http:       &http.Client{Timeout: cfg.Chat.Timeout},
		baseURL:    cfg.Chat.BaseURL,
		instanceID: cfg.Chat.InstanceID,
		token:      cfg.Chat.Token,
		chatID:     cfg.Chat.ChatID,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

func (c *client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:  c.chatID,
		Message: text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", c.baseURL, c.instanceID, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat provider returned status %d", resp.StatusCode)
	}
	return nil
}

// logNotifier is the fallback when no chat provider is configured.
type logNotifier struct{}

func (n *logNotifier) Send(ctx context.Context, text string) error {
	zap.L().Info("[Chat] outbound message", zap.String("text", text))
	return nil
}
