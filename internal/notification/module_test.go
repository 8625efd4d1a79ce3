package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"datavend_backend/internal/events"
	"datavend_backend/platform/logger"
)

func TestHandlersAreRegisteredOnTheBus(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("production", &buf)
	bus := events.NewInMemoryBus(log)

	New(log).RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.DispenseOutcomeUnknown{
		BaseEvent: events.NewBaseEvent(),
		Reference: "4567890",
		Stage:     "dispense",
		Error:     "timeout",
	})
	if err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "purchase needs manual reconciliation") || !strings.Contains(out, `"reference":"4567890"`) {
		t.Fatalf("expected reconciliation alert, got %s", out)
	}
}

func TestDispenseFailureIsWarned(t *testing.T) {
	var buf bytes.Buffer
	m := New(logger.NewWithWriter("production", &buf))

	_ = m.Handle(context.Background(), events.DataDispenseFailed{
		BaseEvent:     events.NewBaseEvent(),
		Reference:     "1",
		VendorMessage: "Insufficient balance",
	})

	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), "Insufficient balance") {
		t.Fatalf("unexpected log %s", buf.String())
	}
}
