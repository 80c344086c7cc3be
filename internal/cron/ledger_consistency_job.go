package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

const defaultConsistencyBatch = 100

type LedgerConsistencyJobParams struct {
	Logger    *logger.Logger
	Ledger    ledgerAuditor
	BatchSize int
}

type ledgerAuditor interface {
	Wallets(ctx context.Context, params pagination.Params) (pagination.Page[models.SellerWallet], error)
	CheckConsistency(ctx context.Context, sellerID uuid.UUID) error
}

// NewLedgerConsistencyJob replays every seller ledger against its wallet.
func NewLedgerConsistencyJob(params LedgerConsistencyJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultConsistencyBatch
	}
	return &ledgerConsistencyJob{logg: params.Logger, ledger: params.Ledger, batch: batch}, nil
}

type ledgerConsistencyJob struct {
	logg   *logger.Logger
	ledger ledgerAuditor
	batch  int
}

func (j *ledgerConsistencyJob) Name() string { return "ledger-consistency" }

func (j *ledgerConsistencyJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		cursor  string
	)
	for {
		page, err := j.ledger.Wallets(ctx, pagination.Params{Limit: j.batch, Cursor: cursor})
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, wallet := range page.Items {
			checked++
			if err := j.ledger.CheckConsistency(ctx, wallet.SellerID); err != nil {
				j.logg.Warn(j.logg.WithField(ctx, "seller_id", wallet.SellerID.String()), err.Error())
				errs = multierr.Append(errs, fmt.Errorf("seller %s: %w", wallet.SellerID, err))
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"wallets_checked": checked,
		"mismatches":      len(multierr.Errors(errs)),
	}), "ledger consistency check complete")
	return errs
}
