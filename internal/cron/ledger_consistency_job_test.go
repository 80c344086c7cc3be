package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type fakeLedger struct {
	pages   [][]models.SellerWallet
	broken  map[uuid.UUID]bool
	cursors []string
	listErr error
}

func (f *fakeLedger) Wallets(_ context.Context, params pagination.Params) (pagination.Page[models.SellerWallet], error) {
	f.cursors = append(f.cursors, params.Cursor)
	if f.listErr != nil {
		return pagination.Page[models.SellerWallet]{}, f.listErr
	}
	idx := len(f.cursors) - 1
	page := pagination.Page[models.SellerWallet]{Items: f.pages[idx]}
	if idx+1 < len(f.pages) {
		page.NextCursor = "page-" + string(rune('1'+idx))
	}
	return page, nil
}

func (f *fakeLedger) CheckConsistency(_ context.Context, sellerID uuid.UUID) error {
	if f.broken[sellerID] {
		return errors.New("wallet available 900 != ledger 90")
	}
	return nil
}

func wallets(n int) []models.SellerWallet {
	out := make([]models.SellerWallet, n)
	for i := range out {
		out[i] = models.SellerWallet{SellerID: uuid.New()}
	}
	return out
}

func TestLedgerConsistencyJobWalksAllPages(t *testing.T) {
	first, second := wallets(2), wallets(1)
	ledger := &fakeLedger{
		pages:  [][]models.SellerWallet{first, second},
		broken: map[uuid.UUID]bool{first[1].SellerID: true, second[0].SellerID: true},
	}
	job, err := NewLedgerConsistencyJob(LedgerConsistencyJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Ledger:    ledger,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewLedgerConsistencyJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected mismatches to fail the job")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d", got)
	}
	if !strings.Contains(err.Error(), first[1].SellerID.String()) {
		t.Fatalf("error should name the seller: %v", err)
	}
	if len(ledger.cursors) != 2 || ledger.cursors[0] != "" || ledger.cursors[1] != "page-1" {
		t.Fatalf("unexpected cursors %v", ledger.cursors)
	}
}

func TestLedgerConsistencyJobCleanRun(t *testing.T) {
	ledger := &fakeLedger{pages: [][]models.SellerWallet{wallets(3)}}
	job, err := NewLedgerConsistencyJob(LedgerConsistencyJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: ledger,
	})
	if err != nil {
		t.Fatalf("NewLedgerConsistencyJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ledger = &fakeLedger{listErr: errors.New("db down")}
	job, _ = NewLedgerConsistencyJob(LedgerConsistencyJobParams{Logger: logger.New(logger.Options{ServiceName: "test"}), Ledger: ledger})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}
