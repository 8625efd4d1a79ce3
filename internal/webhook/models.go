package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
)

const (
	eventChargeCompleted = "charge.completed"
	chargeSuccessful     = "successful"
)

// Text is a lenient scalar: JSON strings keep their value, numbers keep their
// literal text, and any other value decodes as empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*t = Text(data)
	default:
		*t = ""
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Notification is the subset of a provider delivery the listener reads.
type Notification struct {
	Event Text       `json:"event"`
	Data  ChargeData `json:"data"`
}

// ChargeData describes the charge a notification refers to. Amount is only
// logged and archived, so it stays as text.
type ChargeData struct {
	ID       Text `json:"id"`
	TxRef    Text `json:"tx_ref"`
	FlwRef   Text `json:"flw_ref"`
	Status   Text `json:"status"`
	Amount   Text `json:"amount"`
	Currency Text `json:"currency"`
}

// IsSuccessfulCharge reports whether n announces a completed, successful charge.
func (n Notification) IsSuccessfulCharge() bool {
	return n.Event == eventChargeCompleted && n.Data.Status == chargeSuccessful
}

// decodeNotification reads the event name and charge status first and only
// decodes the rest of the charge for successful charges. Only a body that is
// not JSON at all is an error; any other shape yields an ignorable notification.
func decodeNotification(body []byte) (Notification, error) {
	var head struct {
		Event Text            `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Notification{}, nil
		}
		return Notification{}, err
	}

	n := Notification{Event: head.Event}
	data := bytes.TrimSpace(head.Data)
	if len(data) == 0 || data[0] != '{' {
		return n, nil
	}

	var status struct {
		Status Text `json:"status"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return Notification{}, err
	}
	n.Data.Status = status.Status
	if !n.IsSuccessfulCharge() {
		return n, nil
	}

	if err := json.Unmarshal(data, &n.Data); err != nil {
		return Notification{}, err
	}
	return n, nil
}
