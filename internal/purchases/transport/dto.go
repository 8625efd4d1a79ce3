package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LooseString accepts a JSON string or number and keeps its canonical text.
// Numbers are rendered in plain decimal form; a numeric zero or null is empty.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = LooseString(strings.TrimSpace(text))
		return nil
	}

	num, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	if num.IsZero() {
		*s = ""
		return nil
	}
	*s = LooseString(num.String())
	return nil
}

// String returns the canonical text.
func (s LooseString) String() string { return string(s) }

// LooseBool accepts any JSON value and keeps its truthiness: false, null,
// numeric zero and the empty string are false, everything else is true.
type LooseBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *LooseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*b = false
	case bytes.Equal(data, []byte("true")), data[0] == '{', data[0] == '[':
		*b = true
	case data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*b = text != ""
	default:
		num, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("expected boolean-like value, got %s", data)
		}
		*b = LooseBool(!num.IsZero())
	}
	return nil
}

// PurchaseRequest is the body a client posts after paying.
type PurchaseRequest struct {
	TransactionID LooseString `json:"transaction_id" validate:"required"`
	// TxRef is the client's own reference; it is logged but not used downstream.
	TxRef        LooseString `json:"tx_ref"`
	MobileNumber LooseString `json:"mobile_number" validate:"required"`
	Network      LooseString `json:"network"`
	PlanID       string      `json:"plan_id"`
	Ported       LooseBool   `json:"ported"`
}

// TransactionResponse is the admin view of one ledger row.
type TransactionResponse struct {
	Reference   string          `json:"reference"`
	PhoneNumber string          `json:"phoneNumber"`
	Network     string          `json:"network"`
	PlanID      string          `json:"planId"`
	Status      string          `json:"status"`
	APIResponse json.RawMessage `json:"apiResponse,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}
