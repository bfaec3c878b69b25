package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "geniuserp/internal/core/context"
	"geniuserp/internal/domain/invoice"
)

// Compile-time check against the domain contract.
var _ invoice.EventRecorder = (*InvoiceEventRecorder)(nil)

// InvoiceEventRecorder implements the audit/event contract: every
// successful transition or deletion produces one audit entry and one
// outbox message, written in the same transaction as the state change.
type InvoiceEventRecorder struct {
	audit  *AuditService
	outbox *OutboxPublisher
}

// NewInvoiceEventRecorder creates a new event recorder.
func NewInvoiceEventRecorder(audit *AuditService, outbox *OutboxPublisher) *InvoiceEventRecorder {
	return &InvoiceEventRecorder{audit: audit, outbox: outbox}
}

// RecordTransition records a successful status change.
func (r *InvoiceEventRecorder) RecordTransition(ctx context.Context, inv *invoice.Invoice, previous invoice.Status) error {
	event := r.buildEvent(ctx, inv, previous)
	event.NewStatus = inv.Status

	action := actionFor(inv.Status)
	eventType := invoice.EventTypeFor(inv.Status)
	if eventType == "" {
		return fmt.Errorf("no event type for status %q", inv.Status)
	}

	return r.write(ctx, inv, event, action, eventType)
}

// RecordDeletion records a successful soft delete.
func (r *InvoiceEventRecorder) RecordDeletion(ctx context.Context, inv *invoice.Invoice, previous invoice.Status) error {
	event := r.buildEvent(ctx, inv, previous)
	return r.write(ctx, inv, event, AuditActionDelete, invoice.EventDeleted)
}

func (r *InvoiceEventRecorder) buildEvent(ctx context.Context, inv *invoice.Invoice, previous invoice.Status) invoice.LifecycleEvent {
	return invoice.LifecycleEvent{
		InvoiceID:      inv.ID,
		CompanyID:      inv.CompanyID,
		Series:         inv.Series,
		PreviousStatus: previous,
		AssignedNumber: inv.Number,
		ActorID:        appctx.GetActorID(ctx),
		OccurredAt:     time.Now().UTC(),
	}
}

func (r *InvoiceEventRecorder) write(ctx context.Context, inv *invoice.Invoice, event invoice.LifecycleEvent, action AuditAction, eventType string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	if err := r.audit.Log(ctx, AuditEntry{
		EntityType: "Invoice",
		EntityID:   inv.ID,
		Action:     action,
		Changes:    payload,
	}); err != nil {
		return err
	}

	return r.outbox.Publish(ctx, DomainEvent{
		AggregateType: "Invoice",
		AggregateID:   inv.ID,
		EventType:     eventType,
		Payload:       event,
	})
}

func actionFor(status invoice.Status) AuditAction {
	switch status {
	case invoice.StatusIssued:
		return AuditActionIssue
	case invoice.StatusSent:
		return AuditActionSend
	case invoice.StatusCanceled:
		return AuditActionCancel
	}
	return AuditAction(string(status))
}
