package payouts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/audit"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
)

// TransferKind is the closed set of transfer outcomes the gateway reports.
type TransferKind int

const (
	TransferSuccess TransferKind = iota
	TransferFailed
	TransferReversed
)

// kindStatus maps a transfer outcome to the payout's terminal status.
func kindStatus(kind TransferKind) (Status, error) {
	switch kind {
	case TransferSuccess:
		return StatusSuccess, nil
	case TransferFailed:
		return StatusFailed, nil
	case TransferReversed:
		return StatusReversed, nil
	default:
		return "", fmt.Errorf("unknown transfer kind %d", kind)
	}
}

// Machine reconciles vendor payouts against gateway transfer events.
type Machine struct {
	store  *Store
	sink   *audit.Sink
	outbox *notify.Outbox
}

// NewMachine wires the payout state machine.
func NewMachine(store *Store, sink *audit.Sink, outbox *notify.Outbox) *Machine {
	return &Machine{store: store, sink: sink, outbox: outbox}
}

// HandleTransferEvent applies one gateway transfer event to the payout
// identified by reference. Terminal payouts absorb further events as audited
// no-ops; a missing payout is logged for manual reconciliation, never
// retried.
func (m *Machine) HandleTransferEvent(ctx context.Context, reference string, kind TransferKind, amountMinorUnits int64, reason string) error {
	payout, err := m.store.GetByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("load payout %s: %w", reference, err)
	}
	if payout == nil {
		log.Printf("[payouts] transfer event for unknown reference %s, skipping", reference)
		return nil
	}

	status, err := kindStatus(kind)
	if err != nil {
		return err
	}

	failureReason := ""
	switch status {
	case StatusFailed:
		failureReason = reason
		if failureReason == "" {
			failureReason = "transfer failed at the payment provider"
		}
	case StatusReversed:
		failureReason = reason
		if failureReason == "" {
			failureReason = "transfer reversed by the bank"
		}
	}

	err = m.store.Settle(ctx, reference, status, failureReason)
	if errors.Is(err, ErrStatusMismatch) {
		// Already terminal; duplicate or late event. No state change, no
		// vendor notification, but still audited.
		m.audit(ctx, "payout_transfer_ignored", payout, audit.DuplicateTransferDetail{
			Reference:     reference,
			CurrentStatus: string(payout.Status),
			IgnoredStatus: string(status),
		}, audit.SeverityInfo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle payout %s: %w", reference, err)
	}

	m.audit(ctx, "payout_"+string(status), payout, audit.PayoutSettledDetail{
		Reference: reference,
		Status:    string(status),
		Amount:    float64(amountMinorUnits) / 100,
		Reason:    failureReason,
	}, audit.SeverityInfo)

	m.notifyVendor(ctx, payout, status, failureReason)
	return nil
}

func (m *Machine) audit(ctx context.Context, action string, payout *Payout, detail interface{}, severity string) {
	err := m.sink.Record(ctx, action, "payout", payout.Reference, "payout", "", detail, severity, audit.SystemActor)
	if err != nil {
		log.Printf("[payouts] audit %s for %s failed: %v", action, payout.Reference, err)
	}
}

func (m *Machine) notifyVendor(ctx context.Context, payout *Payout, status Status, failureReason string) {
	vars := map[string]string{
		"reference": payout.Reference,
		"amount":    fmt.Sprintf("%.2f", payout.NetAmount),
	}
	event := notify.EventPayoutCompleted
	if status != StatusSuccess {
		event = notify.EventPayoutFailed
		vars["reason"] = failureReason
	}
	m.outbox.Dispatch(ctx, notify.Notification{
		Event:         event,
		Recipient:     payout.VendorPhone,
		RecipientID:   payout.VendorID,
		RecipientRole: notify.RoleVendor,
		Variables:     vars,
	})
}
