package webhook

import (
	"context"
	"fmt"

	"datavend_backend/internal/events"
	"datavend_backend/platform/logger"
)

// Service processes authenticated provider notifications. It acknowledges
// successful charges but never dispenses.
type Service struct {
	deduper  Deduper
	archiver Archiver
	eventBus events.Bus
	log      *logger.Logger
}

// NewService creates a webhook service. deduper and archiver may be nil.
func NewService(deduper Deduper, archiver Archiver, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{deduper: deduper, archiver: archiver, eventBus: eventBus, log: log}
}

// HandleNotification parses body and acts on successful charges. A parse
// failure is returned; dedup and archive failures are logged only.
func (s *Service) HandleNotification(ctx context.Context, body []byte) error {
	n, err := decodeNotification(body)
	if err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	log := s.log.WithContext(ctx)
	if !n.IsSuccessfulCharge() {
		log.Debug("webhook ignored", "event", n.Event.String(), "status", n.Data.Status.String())
		return nil
	}

	chargeID := n.Data.ID.String()
	log.Info("webhook received", "charge_id", chargeID, "tx_ref", n.Data.TxRef.String(), "amount", n.Data.Amount.String())

	duplicate := false
	if s.deduper != nil && chargeID != "" {
		first, err := s.deduper.FirstSeen(ctx, chargeID)
		if err != nil {
			log.Warn("webhook dedup unavailable", "charge_id", chargeID, "error", err)
		} else {
			duplicate = !first
		}
	}

	if s.archiver != nil && !duplicate {
		key, err := s.archiver.Archive(ctx, n, body)
		if err != nil {
			log.Warn("webhook archive failed", "charge_id", chargeID, "error", err)
		} else {
			log.Debug("webhook archived", "charge_id", chargeID, "key", key)
		}
	}

	s.eventBus.Publish(ctx, events.ChargeCompleted{
		BaseEvent: events.NewBaseEvent(),
		ChargeID:  chargeID,
		TxRef:     n.Data.TxRef.String(),
		Duplicate: duplicate,
	})
	return nil
}
