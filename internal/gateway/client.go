package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vendora/marketplace/internal/models"
)

// default retry-after when the gateway throttles without a header
const delaySeconds = 60

// result statuses reported by the gateway callback
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Client talks to the external payment gateway. The core calls CreateIntent
// before handing the reference to the customer, and VerifyResult before
// trusting any completion callback.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates new gateway Client instance
func NewClient(baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
	}
}

type createIntentRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type createIntentResponse struct {
	IntentID string `json:"intent_id"`
}

// CreateIntent registers a payment intent with the gateway and returns its
// correlation reference.
func (c *Client) CreateIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (string, error) {
	// POST /api/intents
	u, err := url.JoinPath(c.baseURL, "api", "intents")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(createIntentRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return "", models.NewGatewayError(err.Error(), 0)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		intentResp := createIntentResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&intentResp); err != nil {
			return "", err
		}
		return intentResp.IntentID, nil
	case http.StatusTooManyRequests:
		return "", models.NewGatewayError("too many requests", retryAfter(resp))
	default:
		return "", models.NewGatewayError("unexpected status "+strconv.Itoa(resp.StatusCode), 0)
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// VerifyResult checks the callback's validation token with the gateway.
func (c *Client) VerifyResult(ctx context.Context, ref, token string) (bool, error) {
	// POST /api/intents/{ref}/verify
	u, err := url.JoinPath(c.baseURL, "api", "intents", ref, "verify")
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return false, models.NewGatewayError(err.Error(), 0)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		verifyResp := verifyResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
			return false, err
		}
		return verifyResp.Valid, nil
	case http.StatusNotFound:
		return false, nil
	case http.StatusTooManyRequests:
		return false, models.NewGatewayError("too many requests", retryAfter(resp))
	default:
		return false, models.NewGatewayError("unexpected status "+strconv.Itoa(resp.StatusCode), 0)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	t, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || t <= 0 {
		t = delaySeconds
	}
	return time.Duration(t) * time.Second
}
