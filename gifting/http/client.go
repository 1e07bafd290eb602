package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/tushevents/gifting-tools/gifting"
)

// Client talks to the remote gift service. Amounts cross this boundary in
// minor currency units, always.
type Client interface {
	ListGifts(ctx context.Context) ([]gifting.GiftItem, error)
	CreateContribution(ctx context.Context, giftID string, req gifting.ContributionRequest) (gifting.Transaction, error)
	ConfirmContribution(ctx context.Context, transactionNo string) error
	SaveGuest(ctx context.Context, guest gifting.Guest) (gifting.GuestConfirmation, error)
	FindGuestByCode(ctx context.Context, code string) (gifting.GuestRecord, error)
	GenerateAccessCard(ctx context.Context, invitationCode string) (gifting.AccessCard, error)
}

type giftServiceClient struct {
	BaseURL      string
	token        string
	refreshToken string
	client       *http.Client
	logger       *slog.Logger
}

// APIResponse is the service's uniform envelope.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// NewClient builds a client from the environment: GIFTING_API_BASE_URL for
// the service, plus optional GIFTING_API_TOKEN / GIFTING_REFRESH_TOKEN for
// authenticated calls.
func NewClient() (Client, error) {
	baseURL := os.Getenv("GIFTING_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.tushevents.online/api"
	}

	return &giftServiceClient{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        os.Getenv("GIFTING_API_TOKEN"),
		refreshToken: os.Getenv("GIFTING_REFRESH_TOKEN"),
		client:       &http.Client{},
		logger:       slog.Default(),
	}, nil
}

type retryable interface {
	CanRetry() bool
}

type retryableError struct {
	Err      error
	canRetry bool
}

func (e retryableError) Error() string {
	return e.Err.Error()
}

func (e retryableError) Unwrap() error {
	return e.Err
}

func (e retryableError) CanRetry() bool {
	return e.canRetry
}

func (c *giftServiceClient) makeRequest(ctx context.Context, method, endpoint string, body any) (*APIResponse, error) {
	resp, err := c.doOnce(ctx, method, endpoint, body)

	// Expired token: refresh once and replay, mirroring the site's
	// response interceptor. Auth endpoints are exempt.
	var authErr *authError
	if errors.As(err, &authErr) && c.refreshToken != "" && !strings.HasPrefix(endpoint, "/auth/") {
		if refreshErr := c.refreshAuthToken(ctx); refreshErr != nil {
			return nil, fmt.Errorf("refreshing auth token: %w", refreshErr)
		}
		resp, err = c.doOnce(ctx, method, endpoint, body)
	}

	return resp, err
}

type authError struct {
	status int
}

func (e *authError) Error() string {
	return fmt.Sprintf("authentication failed: HTTP %d", e.status)
}

func (c *giftServiceClient) doOnce(ctx context.Context, method, endpoint string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("issuing request", "method", req.Method, "uri", req.URL.RequestURI())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &authError{status: resp.StatusCode}
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		rawBody := string(respBody)

		errorReturned := fmt.Errorf("failed to unmarshal response: %w", err)

		if "retry later" == strings.ToLower(strings.TrimSpace(rawBody)) {
			return nil, retryableError{Err: errorReturned, canRetry: true}
		}

		return nil, errorReturned
	}

	if !apiResp.Success {
		message := apiResp.Message
		if message == "" {
			message = fmt.Sprintf("request failed with HTTP %d", resp.StatusCode)
		}
		return nil, &gifting.ServiceError{Message: message}
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %d (Raw Response: %v)", resp.StatusCode, apiResp)
	}

	return &apiResp, nil
}

func (c *giftServiceClient) refreshAuthToken(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{"refreshToken": c.refreshToken})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/refresh-token", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("refresh rejected with HTTP %d", resp.StatusCode)
	}

	var tokens struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to unmarshal refresh response: %w", err)
	}

	c.token = tokens.Token
	if tokens.RefreshToken != "" {
		c.refreshToken = tokens.RefreshToken
	}

	return nil
}

func (c *giftServiceClient) ListGifts(ctx context.Context) ([]gifting.GiftItem, error) {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/gifts", nil)
	if err != nil {
		return nil, err
	}

	var gifts []gifting.GiftItem
	if err := json.Unmarshal(resp.Data, &gifts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gifts: %w", err)
	}

	return gifts, nil
}

func (c *giftServiceClient) CreateContribution(ctx context.Context, giftID string, contribution gifting.ContributionRequest) (gifting.Transaction, error) {
	endpoint := fmt.Sprintf("/gifts/%s/contribute", url.PathEscape(giftID))

	resp, err := c.makeRequest(ctx, http.MethodPost, endpoint, contribution)
	if err != nil {
		return gifting.Transaction{}, err
	}

	var tx gifting.Transaction
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		return gifting.Transaction{}, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return tx, nil
}

func (c *giftServiceClient) ConfirmContribution(ctx context.Context, transactionNo string) error {
	_, err := c.makeRequest(ctx, http.MethodPost, "/gifts/confirm", map[string]string{"transactionNo": transactionNo})
	return err
}

func (c *giftServiceClient) SaveGuest(ctx context.Context, guest gifting.Guest) (gifting.GuestConfirmation, error) {
	resp, err := c.makeRequest(ctx, http.MethodPost, "/guests", guest)

	if re, ok := err.(retryable); ok && re.CanRetry() {
		operation := func() (*APIResponse, error) {
			return c.makeRequest(ctx, http.MethodPost, "/guests", guest)
		}
		resp, err = backoff.Retry(ctx, operation, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	}

	if err != nil {
		return gifting.GuestConfirmation{}, err
	}

	var confirmation gifting.GuestConfirmation
	if err := json.Unmarshal(resp.Data, &confirmation); err != nil {
		return gifting.GuestConfirmation{}, fmt.Errorf("failed to unmarshal saved guest: %w", err)
	}

	return confirmation, nil
}

func (c *giftServiceClient) FindGuestByCode(ctx context.Context, code string) (gifting.GuestRecord, error) {
	endpoint := fmt.Sprintf("/guests/code/%s", url.PathEscape(code))

	resp, err := c.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gifting.GuestRecord{}, err
	}

	var record gifting.GuestRecord
	if err := json.Unmarshal(resp.Data, &record); err != nil {
		return gifting.GuestRecord{}, fmt.Errorf("failed to unmarshal guest: %w", err)
	}

	return record, nil
}

// GenerateAccessCard renders the guest's invitation card. Unlike the other
// endpoints this one answers with raw PNG bytes, the filename riding on
// Content-Disposition.
func (c *giftServiceClient) GenerateAccessCard(ctx context.Context, invitationCode string) (gifting.AccessCard, error) {
	payload, err := json.Marshal(map[string]string{"invitationCode": invitationCode})
	if err != nil {
		return gifting.AccessCard{}, fmt.Errorf("failed to marshal card request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/guests/generate-access-card", bytes.NewReader(payload))
	if err != nil {
		return gifting.AccessCard{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return gifting.AccessCard{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiResp APIResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr == nil && apiResp.Message != "" {
			return gifting.AccessCard{}, &gifting.ServiceError{Message: apiResp.Message}
		}
		return gifting.AccessCard{}, fmt.Errorf("failed to generate invitation: HTTP %d", resp.StatusCode)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return gifting.AccessCard{}, fmt.Errorf("failed to read card image: %w", err)
	}

	filename := "invitation.png"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			filename = params["filename"]
		}
	}

	return gifting.AccessCard{Filename: filename, Image: image}, nil
}
