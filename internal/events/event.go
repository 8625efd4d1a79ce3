// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"encoding/json"

	"datavend_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Purchase Domain Events
// =============================================================================

// DataDispensed is published when the vendor confirmed delivery and the ledger row was completed.
type DataDispensed struct {
	BaseEvent
	Reference   string `json:"reference"`
	PhoneNumber string `json:"phoneNumber"`
	PlanID      string `json:"planId"`
}

func (e DataDispensed) EventName() string { return "purchases.data.dispensed" }

// DataDispenseFailed is published when payment was captured but the vendor refused delivery.
type DataDispenseFailed struct {
	BaseEvent
	Reference     string          `json:"reference"`
	PhoneNumber   string          `json:"phoneNumber"`
	PlanID        string          `json:"planId"`
	VendorMessage string          `json:"vendorMessage"`
	APIResponse   json.RawMessage `json:"apiResponse"`
}

func (e DataDispenseFailed) EventName() string { return "purchases.data.failed" }

// DispenseOutcomeUnknown is published when a reference was claimed but its final
// status could not be written. The ledger row stays pending for an operator.
type DispenseOutcomeUnknown struct {
	BaseEvent
	Reference string `json:"reference"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

func (e DispenseOutcomeUnknown) EventName() string { return "purchases.outcome.unknown" }

// =============================================================================
// Payment Provider Events
// =============================================================================

// ChargeCompleted is published when an authenticated webhook reports a successful charge.
type ChargeCompleted struct {
	BaseEvent
	ChargeID  string `json:"chargeId"`
	TxRef     string `json:"txRef"`
	Duplicate bool   `json:"duplicate"`
}

func (e ChargeCompleted) EventName() string { return "payments.charge.completed" }
