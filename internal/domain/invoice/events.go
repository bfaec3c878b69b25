package invoice

import (
	"context"
	"time"

	"geniuserp/internal/core/id"
)

// Event types emitted on successful lifecycle operations.
const (
	EventIssued   = "InvoiceIssued"
	EventSent     = "InvoiceSent"
	EventCanceled = "InvoiceCanceled"
	EventDeleted  = "InvoiceDeleted"
)

// LifecycleEvent is the payload exported to the audit log and the outbox
// after every successful transition or deletion.
type LifecycleEvent struct {
	InvoiceID      id.ID     `json:"invoiceId"`
	CompanyID      id.ID     `json:"companyId"`
	Series         string    `json:"series,omitempty"`
	PreviousStatus Status    `json:"previousStatus"`
	NewStatus      Status    `json:"newStatus,omitempty"`
	AssignedNumber *int64    `json:"assignedNumber,omitempty"`
	ActorID        string    `json:"actorId"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// EventTypeFor maps a transition edge to its event type.
func EventTypeFor(target Status) string {
	switch target {
	case StatusIssued:
		return EventIssued
	case StatusSent:
		return EventSent
	case StatusCanceled:
		return EventCanceled
	}
	return ""
}

// EventRecorder persists lifecycle events. The postgres implementation
// writes an audit entry and an outbox message within the same transaction
// as the state change, so an event exists if and only if the change
// committed.
type EventRecorder interface {
	RecordTransition(ctx context.Context, inv *Invoice, previous Status) error
	RecordDeletion(ctx context.Context, inv *Invoice, previous Status) error
}

// NopRecorder discards events. Used in tests and when the audit/event
// contract is not wired.
type NopRecorder struct{}

func (NopRecorder) RecordTransition(context.Context, *Invoice, Status) error { return nil }
func (NopRecorder) RecordDeletion(context.Context, *Invoice, Status) error   { return nil }

var _ EventRecorder = NopRecorder{}
