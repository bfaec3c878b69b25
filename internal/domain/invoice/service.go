// Package invoice provides the invoice lifecycle service.
package invoice

import (
	"context"
	"fmt"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/core/sequence"
	"geniuserp/internal/core/tx"
	"geniuserp/pkg/logger"
)

// maxIssueAttempts bounds retries of the issuance transaction when
// concurrent issuances in the same series collide. Validation failures are
// never retried.
const maxIssueAttempts = 3

// Service provides business operations for invoices: aggregate creation,
// lifecycle transitions with number assignment, and policy-checked deletion.
type Service struct {
	repo      Repository
	allocator sequence.Allocator
	txManager tx.Manager
	events    EventRecorder
}

// NewService creates a new invoice service. events may be nil when the
// audit/event contract is not wired.
func NewService(repo Repository, allocator sequence.Allocator, txManager tx.Manager, events EventRecorder) *Service {
	if events == nil {
		events = NopRecorder{}
	}
	return &Service{
		repo:      repo,
		allocator: allocator,
		txManager: txManager,
		events:    events,
	}
}

// Create persists a new draft invoice together with its detail and lines
// as a single atomic operation. Status is forced to draft and number to
// nil regardless of caller input.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	inv.Status = StatusDraft
	inv.Number = nil
	inv.IssuedAt = nil

	if err := inv.Validate(ctx); err != nil {
		return err
	}
	if inv.Detail != nil {
		inv.Detail.InvoiceID = inv.ID
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice created",
		"id", inv.ID,
		"company_id", inv.CompanyID,
		"series", inv.Series)

	return nil
}

// GetByID retrieves an invoice with its detail and lines.
// Soft-deleted invoices are NotFound.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invoiceID)
}

// GetBySeriesAndNumber is a point lookup by the legal document number.
func (s *Service) GetBySeriesAndNumber(ctx context.Context, companyID id.ID, series string, number int64) (*Invoice, error) {
	return s.repo.GetBySeriesAndNumber(ctx, companyID, series, number)
}

// Transition applies a lifecycle status change.
//
// draft -> issued allocates the next series number inside the same
// transaction as the status write; lock conflicts with concurrent
// issuances in the same series are retried up to maxIssueAttempts with
// fresh reads, then surface as ConcurrencyExhausted.
//
// All other edges are plain status writes with a compare-and-swap on the
// current status; a losing concurrent writer fails deterministically.
func (s *Service) Transition(ctx context.Context, invoiceID id.ID, target Status) (*Invoice, error) {
	if target == StatusIssued {
		return s.issue(ctx, invoiceID)
	}

	var updated *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		if err := inv.ValidateTransition(target); err != nil {
			return err
		}

		previous := inv.Status
		inv.Status = target
		inv.Touch()

		if err := s.repo.UpdateStatus(ctx, inv, previous); err != nil {
			return err
		}
		if err := s.events.RecordTransition(ctx, inv, previous); err != nil {
			return fmt.Errorf("record transition event: %w", err)
		}

		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice transitioned",
		"id", updated.ID,
		"status", updated.Status)

	return updated, nil
}

// issue runs the draft -> issued transaction: load, validate, allocate,
// write. Number assignment happens exactly once, here.
func (s *Service) issue(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	var updated *Invoice
	var series string

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			inv, err := s.repo.GetForUpdate(ctx, invoiceID)
			if err != nil {
				return err
			}
			series = inv.Series

			if err := inv.ValidateTransition(StatusIssued); err != nil {
				return err
			}

			number, err := s.allocator.NextNumber(ctx, inv.CompanyID, inv.Series)
			if err != nil {
				return fmt.Errorf("allocate number: %w", err)
			}

			inv.MarkIssued(number)

			if err := s.repo.UpdateStatus(ctx, inv, StatusDraft); err != nil {
				return err
			}
			if err := s.events.RecordTransition(ctx, inv, StatusDraft); err != nil {
				return fmt.Errorf("record issuance event: %w", err)
			}

			updated = inv
			return nil
		})

		if err == nil {
			logger.Info(ctx, "invoice issued",
				"id", updated.ID,
				"series", updated.Series,
				"number", *updated.Number)
			return updated, nil
		}

		// Retry only transient conflicts, with a fresh read each attempt.
		if !apperror.IsConcurrentModification(err) {
			return nil, err
		}

		logger.Warn(ctx, "issuance conflict, retrying",
			"id", invoiceID,
			"attempt", attempt)
	}

	return nil, apperror.NewConcurrencyExhausted(series, maxIssueAttempts)
}

// Delete soft-deletes an invoice if the deletion policy allows it:
// drafts always; an issued invoice only while it is the topmost number of
// its series; sent and canceled invoices never.
func (s *Service) Delete(ctx context.Context, invoiceID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		if err := s.checkDeletionPolicy(ctx, inv); err != nil {
			return err
		}

		previous := inv.Status
		if err := s.repo.SoftDelete(ctx, inv); err != nil {
			return err
		}
		if err := s.events.RecordDeletion(ctx, inv, previous); err != nil {
			return fmt.Errorf("record deletion event: %w", err)
		}

		logger.Info(ctx, "invoice deleted",
			"id", inv.ID,
			"status", previous,
			"series", inv.Series)
		return nil
	})
	return err
}

// checkDeletionPolicy enforces the asymmetric deletion rules. Deleting a
// non-topmost issued invoice would leave an unexplained hole in the legal
// sequence, so only the most recently issued invoice of a series may go.
//
// For issued invoices the series counter row is locked before the topmost
// check. Issuance takes the same lock to allocate, so a concurrent
// issuance cannot commit a higher number between the check and the delete;
// it waits until this transaction ends and then sees the freed number as
// already consumed.
func (s *Service) checkDeletionPolicy(ctx context.Context, inv *Invoice) error {
	switch inv.Status {
	case StatusDraft:
		return nil

	case StatusIssued:
		if err := s.repo.LockSeries(ctx, inv.CompanyID, inv.Series); err != nil {
			return err
		}
		max, err := s.repo.MaxNumber(ctx, inv.CompanyID, inv.Series)
		if err != nil {
			return err
		}
		if inv.Number == nil || *inv.Number != max {
			return apperror.NewPolicyViolation(
				"only the last issued invoice in a series, or a draft, may be deleted").
				WithDetail("series", inv.Series).
				WithDetail("number", inv.Number).
				WithDetail("last_number", max)
		}
		return nil

	default: // sent, canceled
		return apperror.NewPolicyViolation(
			fmt.Sprintf("invoices in status %q are immutable and cannot be deleted", inv.Status)).
			WithDetail("status", string(inv.Status)).
			WithDetail("series", inv.Series)
	}
}
