// Package notification turns purchase and payment events into operator log
// records. Domain modules publish events and never log alerts themselves.
package notification

import (
	"context"

	"datavend_backend/internal/events"
	"datavend_backend/platform/logger"
)

// Module subscribes to domain events and reports them to operators.
type Module struct {
	log *logger.Logger
}

// New creates the notification module.
func New(log *logger.Logger) *Module {
	return &Module{log: log}
}

// RegisterHandlers subscribes the module to every event it reports on.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Purchase domain events
	bus.Subscribe(events.DataDispensed{}.EventName(), m)
	bus.Subscribe(events.DataDispenseFailed{}.EventName(), m)
	bus.Subscribe(events.DispenseOutcomeUnknown{}.EventName(), m)

	// Payment provider events
	bus.Subscribe(events.ChargeCompleted{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	log := m.log.WithContext(ctx)

	switch e := event.(type) {
	case events.DataDispensed:
		log.Info("purchase fulfilled", "event", e.EventName(), "reference", e.Reference, "plan_id", e.PlanID)
	case events.DataDispenseFailed:
		// Paid but not delivered: someone has to refund or redeliver by hand.
		log.Warn("purchase paid but not delivered", "event", e.EventName(), "reference", e.Reference,
			"plan_id", e.PlanID, "phone_number", e.PhoneNumber, "vendor_message", e.VendorMessage)
	case events.DispenseOutcomeUnknown:
		log.Error("purchase needs manual reconciliation", "event", e.EventName(), "reference", e.Reference,
			"stage", e.Stage, "error", e.Error)
	case events.ChargeCompleted:
		if e.Duplicate {
			log.Debug("repeat charge notification", "event", e.EventName(), "charge_id", e.ChargeID)
			return nil
		}
		log.Info("charge confirmed by provider", "event", e.EventName(), "charge_id", e.ChargeID, "tx_ref", e.TxRef)
	default:
		m.log.Warn("notification module received unhandled event", "event", event.EventName())
	}
	return nil
}
