// Package telegram sends bot messages and validates mini-app init data.
// Every send is fire-and-forget from the caller's perspective: errors are
// returned for logging but never affect committed state.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

const defaultAPIBase = "https://api.telegram.org"

var tierLabels = map[model.Tier]string{
	model.TierFree:    "FREE",
	model.TierPro:     "PRO",
	model.TierPremium: "PREMIUM",
}

type Client struct {
	apiBase       string
	botToken      string
	supportChatID int64
	httpClient    *http.Client
}

func New(botToken string, supportChatID int64) *Client {
	return &Client{
		apiBase:       defaultAPIBase,
		botToken:      botToken,
		supportChatID: supportChatID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithBase is used by tests to point the client at a fake API.
func NewWithBase(apiBase, botToken string, supportChatID int64) *Client {
	c := New(botToken, supportChatID)
	c.apiBase = strings.TrimRight(apiBase, "/")
	return c
}

// SendMessage delivers text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.botToken == "" {
		return fmt.Errorf("telegram: bot token is not configured")
	}
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram: sendMessage status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// SendSupportMessage forwards a user message to the support chat with the
// sender identity prepended.
func (c *Client) SendSupportMessage(ctx context.Context, text, userName string, userID int64) error {
	if c.supportChatID == 0 {
		return fmt.Errorf("telegram: support chat is not configured")
	}
	if userName == "" {
		userName = "Неизвестно"
	}
	lines := []string{"👤 Пользователь: " + userName}
	if userID != 0 {
		lines = append(lines, fmt.Sprintf("🆔 ID: %d", userID))
	}
	lines = append(lines, "", text)
	return c.SendMessage(ctx, c.supportChatID, strings.Join(lines, "\n"))
}

// NotifyPaymentSuccess congratulates the user on an activated plan.
func (c *Client) NotifyPaymentSuccess(ctx context.Context, chatID int64, tier model.Tier, name string) error {
	if name == "" {
		name = "Пользователь"
	}
	lines := []string{
		fmt.Sprintf("🎉 %s, спасибо за доверие!", name),
		fmt.Sprintf("Подписка %s активирована.", tierLabels[tier]),
	}
	if tier == model.TierPremium {
		lines = append(lines, "Телеграм-бот теперь будет напоминать о воде, взвешиваниях и входе в приложение.")
	} else {
		lines = append(lines, "Используйте новые отчёты и расширенные подсказки сразу же.")
	}
	return c.SendMessage(ctx, chatID, strings.Join(lines, "\n"))
}
