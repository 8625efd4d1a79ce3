// Package service implements the purchase workflow: verify a reported
// payment, dispense the plan once per payment reference and record the outcome.
package service

import (
	"context"
	"encoding/json"
	"strings"

	amigoclient "datavend_backend/internal/amigo/client"
	"datavend_backend/internal/catalog"
	"datavend_backend/internal/events"
	paymentsclient "datavend_backend/internal/payments/client"
	"datavend_backend/internal/purchases/repository"
	"datavend_backend/internal/purchases/transport"
	"datavend_backend/platform/apperr"
	"datavend_backend/platform/logger"
	"datavend_backend/platform/phone"
	"datavend_backend/platform/sanitize"

	"github.com/shopspring/decimal"
)

// MsgDataSent is the confirmation returned after a successful delivery.
const MsgDataSent = "Data Sent Successfully!"

const dispenseFailedPrefix = "Payment received, but Data failed: "

// Rejections returned by Purchase. They match with errors.Is.
var (
	ErrMissingDetails     = apperr.Validation("Missing details")
	ErrUnknownPlan        = apperr.Validation("Unknown plan")
	ErrAlreadyProcessed   = apperr.Rejected("Transaction already processed")
	ErrVerificationFailed = apperr.Rejected("Payment verification failed")
	ErrAmountTooLow       = apperr.Rejected("Amount paid is less than plan price")
)

const (
	msgLedgerUnavailable  = "Transaction ledger unavailable"
	msgVerifierFailure    = "Payment verification unavailable"
	msgVendorUnavailable  = "Data vendor unavailable"
	msgOutcomeNotRecorded = "Data outcome could not be recorded"
)

// Verifier looks up the authoritative state of a payment.
type Verifier interface {
	Verify(ctx context.Context, reference string) (paymentsclient.Verification, error)
}

// Dispenser asks the vendor to deliver a plan.
type Dispenser interface {
	Dispense(ctx context.Context, order amigoclient.Order) (amigoclient.Delivery, error)
}

// Service runs the purchase workflow.
type Service struct {
	ledger      repository.Store
	verifier    Verifier
	dispenser   Dispenser
	catalog     *catalog.Catalog
	eventBus    events.Bus
	log         *logger.Logger
	phoneRegion string
}

// New creates a new purchase service. The catalog is read-only and shared.
func New(
	ledger repository.Store,
	verifier Verifier,
	dispenser Dispenser,
	plans *catalog.Catalog,
	eventBus events.Bus,
	log *logger.Logger,
	phoneRegion string,
) *Service {
	if phoneRegion == "" {
		phoneRegion = phone.DefaultRegion
	}
	return &Service{
		ledger:      ledger,
		verifier:    verifier,
		dispenser:   dispenser,
		catalog:     plans,
		eventBus:    eventBus,
		log:         log,
		phoneRegion: phoneRegion,
	}
}

const maxVendorMessageRunes = 200

// DispenseFailed builds the rejection for a vendor refusal after payment.
// The vendor message is echoed without markup.
func DispenseFailed(vendorMessage string) *apperr.Error {
	return apperr.Rejected(dispenseFailedPrefix + sanitize.Message(vendorMessage, maxVendorMessageRunes))
}

// Purchase verifies the payment behind req and dispenses the plan at most
// once per reference. On success it returns the confirmation message.
func (s *Service) Purchase(ctx context.Context, req transport.PurchaseRequest) (string, error) {
	reference := strings.TrimSpace(req.TransactionID.String())
	mobile := strings.TrimSpace(req.MobileNumber.String())
	if reference == "" || mobile == "" {
		return "", ErrMissingDetails
	}

	plan, ok := s.catalog.Lookup(strings.TrimSpace(req.PlanID))
	if !ok {
		return "", ErrUnknownPlan
	}

	ctx = context.WithValue(ctx, logger.ReferenceKey, reference)
	log := s.log.WithContext(ctx)

	session, err := s.ledger.Acquire(ctx)
	if err != nil {
		return "", apperr.Internal(msgLedgerUnavailable, err).WithOp("purchase.acquire")
	}
	defer session.Release()

	exists, err := session.Exists(ctx, reference)
	if err != nil {
		return "", apperr.Internal(msgLedgerUnavailable, err).WithOp("purchase.exists")
	}
	if exists {
		log.Info("purchase rejected", "reason", "already processed")
		return "", ErrAlreadyProcessed
	}

	verification, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		return "", apperr.Internal(msgVerifierFailure, err).WithOp("purchase.verify")
	}
	if !verification.Successful() {
		log.Info("purchase rejected", "reason", "verification failed",
			"status", verification.Status, "payment_status", verification.PaymentStatus)
		return "", ErrVerificationFailed
	}

	if verification.Amount.LessThan(decimal.NewFromInt(plan.Price)) {
		log.Info("purchase rejected", "reason", "amount below price",
			"paid", verification.Amount.String(), "price", plan.Price, "plan_id", plan.ID)
		return "", ErrAmountTooLow
	}

	claimed, err := session.Claim(ctx, repository.Transaction{
		Reference:   reference,
		PhoneNumber: mobile,
		Network:     req.Network.String(),
		PlanID:      req.PlanID,
		Status:      repository.StatusPending,
	})
	if err != nil {
		return "", apperr.Internal(msgLedgerUnavailable, err).WithOp("purchase.claim")
	}
	if !claimed {
		log.Info("purchase rejected", "reason", "claimed concurrently")
		return "", ErrAlreadyProcessed
	}

	// The reference is ours now. A client disconnect must not strand it halfway.
	ctx = context.WithoutCancel(ctx)

	delivery, err := s.dispenser.Dispense(ctx, amigoclient.Order{
		NetworkCode: plan.CarrierCode,
		PhoneNumber: phone.NationalDigits(mobile, s.phoneRegion),
		PlanCode:    plan.VendorPlanCode,
		Ported:      bool(req.Ported),
	})
	if err != nil {
		s.outcomeUnknown(ctx, reference, "dispense", err)
		return "", apperr.Internal(msgVendorUnavailable, err).WithOp("purchase.dispense")
	}

	status := repository.StatusFailed
	if delivery.Success {
		status = repository.StatusSuccess
	}
	if err := session.Complete(ctx, reference, status, auditPayload(delivery)); err != nil {
		s.outcomeUnknown(ctx, reference, "record", err)
		return "", apperr.Internal(msgOutcomeNotRecorded, err).WithOp("purchase.complete")
	}

	if !delivery.Success {
		log.Warn("data dispense failed", "plan_id", plan.ID, "vendor_message", delivery.Message)
		s.eventBus.Publish(ctx, events.DataDispenseFailed{
			BaseEvent:     events.NewBaseEvent(),
			Reference:     reference,
			PhoneNumber:   mobile,
			PlanID:        plan.ID,
			VendorMessage: delivery.Message,
			APIResponse:   delivery.Raw,
		})
		return "", DispenseFailed(delivery.Message)
	}

	log.Info("data dispensed", "plan_id", plan.ID, "tx_ref", req.TxRef.String())
	s.eventBus.Publish(ctx, events.DataDispensed{
		BaseEvent:   events.NewBaseEvent(),
		Reference:   reference,
		PhoneNumber: mobile,
		PlanID:      plan.ID,
	})
	return MsgDataSent, nil
}

// GetTransaction returns the ledger row for reference.
func (s *Service) GetTransaction(ctx context.Context, reference string) (transport.TransactionResponse, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return transport.TransactionResponse{}, ErrMissingDetails
	}

	tx, err := s.ledger.Get(ctx, reference)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return transport.TransactionResponse{}, err
		}
		return transport.TransactionResponse{}, apperr.Internal(msgLedgerUnavailable, err).WithOp("purchase.get")
	}

	return transport.TransactionResponse{
		Reference:   tx.Reference,
		PhoneNumber: tx.PhoneNumber,
		Network:     tx.Network,
		PlanID:      tx.PlanID,
		Status:      string(tx.Status),
		APIResponse: tx.APIResponse,
		CreatedAt:   tx.CreatedAt,
		CompletedAt: tx.CompletedAt,
	}, nil
}

func (s *Service) outcomeUnknown(ctx context.Context, reference, stage string, err error) {
	s.log.WithContext(ctx).Error("dispense outcome unknown, ledger row left pending",
		"stage", stage, "error", err)
	s.eventBus.Publish(ctx, events.DispenseOutcomeUnknown{
		BaseEvent: events.NewBaseEvent(),
		Reference: reference,
		Stage:     stage,
		Error:     err.Error(),
	})
}

// auditPayload keeps the vendor body verbatim when it is JSON.
func auditPayload(d amigoclient.Delivery) json.RawMessage {
	if len(d.Raw) > 0 && json.Valid(d.Raw) {
		return d.Raw
	}
	fallback, _ := json.Marshal(map[string]interface{}{
		"success": d.Success,
		"message": d.Message,
	})
	return fallback
}
