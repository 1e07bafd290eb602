// Package paystack implements the payment boundary against the Paystack
// REST API: initialize a transaction, point the guest at the checkout URL,
// and poll verification until the payment resolves one way or the other.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tushevents/gifting-tools/gifting"
)

const defaultBaseURL = "https://api.paystack.co"

// Checkout drives one hosted Paystack checkout to a single outcome. It
// satisfies gifting.PaymentInitiator.
type Checkout struct {
	secretKey    string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger

	// Announce receives the checkout URL the guest must open. The poll
	// loop starts once it returns.
	Announce func(url string)
}

type Option func(*Checkout)

func WithBaseURL(url string) Option {
	return func(c *Checkout) {
		c.baseURL = url
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Checkout) {
		c.pollInterval = d
	}
}

// NewCheckout reads PAYSTACK_SECRET_KEY from the environment.
func NewCheckout(opts ...Option) (*Checkout, error) {
	secretKey := os.Getenv("PAYSTACK_SECRET_KEY")
	if secretKey == "" {
		return nil, errors.New("missing Paystack secret key")
	}

	c := &Checkout{
		secretKey:    secretKey,
		baseURL:      defaultBaseURL,
		client:       &http.Client{},
		pollInterval: 3 * time.Second,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initiate initializes the transaction under the workflow's reference,
// announces the authorization URL, and polls verification. It resolves to
// exactly one outcome: completed with the reference, or not completed when
// the guest abandons checkout or the context ends first.
func (c *Checkout) Initiate(ctx context.Context, cfg gifting.PaymentConfig) (gifting.PaymentOutcome, error) {
	authorizationURL, err := c.initialize(ctx, cfg)
	if err != nil {
		return gifting.PaymentOutcome{}, err
	}

	if c.Announce != nil {
		c.Announce(authorizationURL)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return gifting.PaymentOutcome{Reference: cfg.Reference, Completed: false}, nil
		case <-ticker.C:
		}

		status, err := c.verify(ctx, cfg.Reference)
		if err != nil {
			c.logger.Debug("verify poll failed", "reference", cfg.Reference, "error", err)
			continue
		}

		switch status {
		case "success":
			return gifting.PaymentOutcome{Reference: cfg.Reference, Completed: true}, nil
		case "failed", "abandoned", "reversed":
			return gifting.PaymentOutcome{Reference: cfg.Reference, Completed: false}, nil
		}
	}
}

func (c *Checkout) initialize(ctx context.Context, cfg gifting.PaymentConfig) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"email":     cfg.Email,
		"amount":    cfg.Amount,
		"reference": cfg.Reference,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	env, err := c.call(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return "", err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal initialize response: %w", err)
	}

	return data.AuthorizationURL, nil
}

func (c *Checkout) verify(ctx context.Context, reference string) (string, error) {
	env, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return "", err
	}

	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal verify response: %w", err)
	}

	return data.Status, nil
}

func (c *Checkout) call(ctx context.Context, method, endpoint string, payload []byte) (*apiEnvelope, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !env.Status {
		return nil, fmt.Errorf("paystack error: %s", env.Message)
	}

	return &env, nil
}
