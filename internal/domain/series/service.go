package series

import (
	"context"

	"geniuserp/internal/core/id"
	"geniuserp/internal/core/tx"
	"geniuserp/pkg/logger"
)

// Service manages numbering-series configuration. Allocation itself lives
// in the infrastructure allocator; this service only administers the rows.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new series service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// List returns all series of a company.
func (s *Service) List(ctx context.Context, companyID id.ID) ([]Series, error) {
	return s.repo.List(ctx, companyID)
}

// Get returns one series.
func (s *Service) Get(ctx context.Context, companyID id.ID, code string) (*Series, error) {
	return s.repo.Get(ctx, companyID, code)
}

// Save registers a series or updates its description/active flag.
func (s *Service) Save(ctx context.Context, sr *Series) error {
	if err := sr.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Upsert(ctx, sr)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "series saved",
		"company_id", sr.CompanyID,
		"code", sr.Code,
		"active", sr.Active)
	return nil
}

// Deactivate stops new issuance in a series. Existing invoices keep their
// numbers; the counter is preserved in case the series is reactivated.
func (s *Service) Deactivate(ctx context.Context, companyID id.ID, code string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sr, err := s.repo.Get(ctx, companyID, code)
		if err != nil {
			return err
		}
		sr.Active = false
		return s.repo.Upsert(ctx, sr)
	})
}

// SetCounter seeds the series counter during data migration. The next
// issued invoice receives value+1.
func (s *Service) SetCounter(ctx context.Context, companyID id.ID, code string, value int64) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetLastValue(ctx, companyID, code, value)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "series counter set",
		"company_id", companyID,
		"code", code,
		"value", value)
	return nil
}
