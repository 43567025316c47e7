// Package payments integrates the external payment provider: create a
// session, poll its status, cancel a subscription.
package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

const requestTimeout = 30 * time.Second

// Prices are monthly, in RUB; a yearly period is billed as ten months.
var monthlyPrices = map[model.Tier]int{
	model.TierPro:     990,
	model.TierPremium: 1890,
}

var planLabels = map[model.Tier]string{
	model.TierPro:     "Fit AI PRO",
	model.TierPremium: "Fit AI PREMIUM",
}

// Session is the provider-side payment session the user is redirected to.
type Session struct {
	PaymentID       string
	ConfirmationURL string
}

// Metadata travels with the payment and comes back on webhooks/status reads.
type Metadata struct {
	Tier       model.Tier `json:"tier"`
	TelegramID int64      `json:"telegramId,omitempty"`
	UserID     string     `json:"userId,omitempty"`
}

type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

func New(baseURL, apiKey, secretKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// PriceFor returns the charge amount for a tier and period, or false for
// tiers that cannot be purchased.
func PriceFor(tier model.Tier, period model.SubscriptionPeriod) (int, bool) {
	monthly, ok := monthlyPrices[tier]
	if !ok {
		return 0, false
	}
	if period == model.PeriodYear {
		return monthly * 10, true
	}
	return monthly, true
}

type createPaymentPayload struct {
	Amount      int            `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description"`
	ReturnURL   string         `json:"return_url"`
	Metadata    string         `json:"metadata"`
	Recurring   map[string]any `json:"recurring"`
}

type paymentResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
}

// Create opens a payment session for the tier. Each call carries a fresh
// idempotence key.
func (c *Client) Create(ctx context.Context, tier model.Tier, period model.SubscriptionPeriod, returnURL string, meta Metadata) (Session, error) {
	price, ok := PriceFor(tier, period)
	if !ok {
		return Session{}, fmt.Errorf("payments: tier %q cannot be purchased", tier)
	}
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return Session{}, fmt.Errorf("payments: marshal metadata: %w", err)
	}

	interval := "month"
	periods := 1
	if period == model.PeriodYear {
		interval = "year"
	}
	payload := createPaymentPayload{
		Amount:      price,
		Currency:    "RUB",
		Description: planLabels[tier],
		ReturnURL:   returnURL,
		Metadata:    string(metaBlob),
		Recurring: map[string]any{
			"enabled":  true,
			"interval": interval,
			"period":   periods,
		},
	}

	var out paymentResponse
	if err := c.request(ctx, http.MethodPost, "/v1/payments", payload, true, &out); err != nil {
		return Session{}, err
	}
	if out.ID == "" {
		return Session{}, fmt.Errorf("payments: provider returned no payment id")
	}
	return Session{PaymentID: out.ID, ConfirmationURL: out.ConfirmationURL}, nil
}

// Status polls the provider for the payment outcome.
func (c *Client) Status(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	var out paymentResponse
	if err := c.request(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, false, &out); err != nil {
		return "", err
	}
	return model.PaymentStatus(out.Status), nil
}

// CancelSubscription stops recurring charges for the provider subscription.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return c.request(ctx, http.MethodDelete, "/v1/subscriptions/"+subscriptionID, nil, false, nil)
}

func (c *Client) request(ctx context.Context, method, path string, payload any, idempotent bool, out any) error {
	if c.apiKey == "" || c.secretKey == "" {
		return fmt.Errorf("payments: provider credentials are not configured")
	}

	var body io.Reader
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("payments: marshal payload: %w", err)
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.apiKey, c.secretKey))
	if idempotent {
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("payments: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("payments: provider error: %s", msg)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("payments: decode response: %w", err)
		}
	}
	return nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
