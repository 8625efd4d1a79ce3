// Package client provides the HTTP client for the data vendor's dispensing API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"datavend_backend/platform/logger"
)

const maxResponseBytes = 1 << 20

// Order is a fully resolved delivery request.
type Order struct {
	NetworkCode int
	PhoneNumber string
	PlanCode    int
	Ported      bool
}

// Delivery is the vendor's answer to an order.
type Delivery struct {
	Success bool
	Message string
	// Raw is the vendor response body, kept verbatim for the ledger.
	Raw json.RawMessage
}

// Client is the HTTP client for the vendor API. The *http.Client decides
// whether calls go through the egress proxy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a vendor client. baseURL is e.g. https://amigo.ng.
func New(httpClient *http.Client, baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		log:        log,
	}
}

type apiOrder struct {
	Network      int    `json:"network"`
	MobileNumber string `json:"mobile_number"`
	Plan         int    `json:"plan"`
	PortedNumber bool   `json:"Ported_number"`
}

type apiDelivery struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Dispense asks the vendor to deliver the order. It is attempted exactly once.
// A body carrying a "success" field is an outcome whatever the HTTP status;
// anything else is returned as an error.
func (c *Client) Dispense(ctx context.Context, order Order) (Delivery, error) {
	payload, err := json.Marshal(apiOrder{
		Network:      order.NetworkCode,
		MobileNumber: order.PhoneNumber,
		Plan:         order.PlanCode,
		PortedNumber: order.Ported,
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/data/", bytes.NewReader(payload))
	if err != nil {
		return Delivery{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallFailed("amigo", "dispense", err)
		return Delivery{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Delivery{}, fmt.Errorf("read response: %w", err)
	}

	var decoded apiDelivery
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.log.Error("amigo decode failed", "status", resp.StatusCode, "error", err)
		return Delivery{}, fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if decoded.Success == nil {
		c.log.Error("amigo response without success flag", "status", resp.StatusCode)
		return Delivery{}, fmt.Errorf("decode response (http %d): missing success field", resp.StatusCode)
	}

	if !*decoded.Success {
		c.log.Warn("amigo refused order", "status", resp.StatusCode, "message", decoded.Message)
	}

	return Delivery{
		Success: *decoded.Success,
		Message: decoded.Message,
		Raw:     json.RawMessage(body),
	}, nil
}
