// Package client provides the HTTP client for the payment processor's
// transaction verification API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"datavend_backend/platform/logger"

	"github.com/shopspring/decimal"
)

const (
	// StatusSuccess is the processor's overall call status for a successful lookup.
	StatusSuccess = "success"
	// PaymentSuccessful is the processor's status for a captured payment.
	PaymentSuccessful = "successful"

	maxResponseBytes = 1 << 20
)

// ErrEmptyReference is returned when Verify is called without a reference.
var ErrEmptyReference = errors.New("empty transaction reference")

// Verification is the processor's authoritative view of one transaction.
type Verification struct {
	Status        string
	Message       string
	PaymentStatus string
	Amount        decimal.Decimal
	Currency      string
	TxRef         string
}

// Successful reports whether both the call and the payment succeeded.
func (v Verification) Successful() bool {
	return v.Status == StatusSuccess && v.PaymentStatus == PaymentSuccessful
}

// Client is the HTTP client for the verification API. It never mutates state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	log        *logger.Logger
}

// New creates a verification client. baseURL is e.g. https://api.flutterwave.com.
func New(httpClient *http.Client, baseURL, secretKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		log:        log,
	}
}

// Verify fetches the status and amount of a transaction.
// Transport failures, 5xx responses and undecodable bodies are returned as errors;
// any decodable body is returned as-is for the caller to judge.
func (c *Client) Verify(ctx context.Context, reference string) (Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Verification{}, ErrEmptyReference
	}

	reqURL := fmt.Sprintf("%s/v3/transactions/%s/verify", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallFailed("flutterwave", "verify", err)
		return Verification{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Verification{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Error("flutterwave upstream error", "status", resp.StatusCode)
		return Verification{}, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	var payload apiVerifyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Error("flutterwave decode failed", "status", resp.StatusCode, "error", err)
		return Verification{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status == "" {
		return Verification{}, fmt.Errorf("decode response: missing status field (http %d)", resp.StatusCode)
	}

	return payload.toVerification(), nil
}

type apiVerifyResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    *apiVerifyData `json:"data"`
}

type apiVerifyData struct {
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	TxRef    string          `json:"tx_ref"`
}

func (a apiVerifyResponse) toVerification() Verification {
	v := Verification{
		Status:  a.Status,
		Message: a.Message,
	}
	if a.Data != nil {
		v.PaymentStatus = a.Data.Status
		v.Amount = a.Data.Amount
		v.Currency = a.Data.Currency
		v.TxRef = a.Data.TxRef
	}
	return v
}
