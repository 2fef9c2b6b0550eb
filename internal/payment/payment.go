// Package payment wraps the external payment gateway. The service only ever
// needs two calls: create an intent for an amount, and check whether an
// intent settled. Settlement itself happens out of band.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64) (Intent, error)
	Confirm(ctx context.Context, intentID string) (bool, error)
}

// StripeGateway talks to a Stripe-compatible payment intents API.
type StripeGateway struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

func NewStripeGateway(baseURL, secretKey string) *StripeGateway {
	return &StripeGateway{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.SecretKey, "")

	resp, err := g.Client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intent{}, fmt.Errorf("payment: create intent: status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, fmt.Errorf("payment: decode intent: %w", err)
	}
	return intent, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, intentID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.BaseURL+"/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(g.SecretKey, "")

	resp, err := g.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("payment: retrieve intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment: retrieve intent: status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("payment: decode intent: %w", err)
	}
	return body.Status == "succeeded", nil
}

// OfflineGateway issues local intent ids and confirms everything. Used when
// no gateway credentials are configured, and in tests.
type OfflineGateway struct{}

func (OfflineGateway) CreateIntent(_ context.Context, _ int64) (Intent, error) {
	id := "pi_" + uuid.NewString()
	return Intent{ID: id, ClientSecret: id + "_secret_" + uuid.NewString()}, nil
}

func (OfflineGateway) Confirm(_ context.Context, intentID string) (bool, error) {
	return intentID != "", nil
}
