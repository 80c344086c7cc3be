package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/config"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/metrics"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/outbox/payloads"
	"github.com/fensho/marketplace-backend/pkg/pagination"
	"github.com/fensho/marketplace-backend/pkg/redis"
)

const defaultPayoutLockTTL = 30 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditLog interface {
	Claim(ctx context.Context, tx *gorm.DB, key string, scope enums.IdempotencyScope) (audit.ClaimResult, error)
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// RefundGateway issues refunds against a captured payment. A nil amount
// refunds the full capture.
type RefundGateway interface {
	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (string, error)
}

// Service is the seller ledger and wallet engine.
type Service interface {
	PostSaleTx(ctx context.Context, tx *gorm.DB, order *models.Order, rates Rates) (*SalePosting, error)
	ReconcileCOD(ctx context.Context, actor audit.Actor, orderID uuid.UUID) (*models.SellerWallet, error)
	Payout(ctx context.Context, actor audit.Actor, sellerID uuid.UUID) (*PayoutResult, error)
	Refund(ctx context.Context, actor audit.Actor, orderID uuid.UUID, input RefundInput) (*RefundResult, error)
	ApplyRefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, booking RefundBooking) (*RefundResult, error)
	Wallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error)
	Wallets(ctx context.Context, params pagination.Params) (pagination.Page[models.SellerWallet], error)
	Entries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerEntry], error)
	CheckConsistency(ctx context.Context, sellerID uuid.UUID) error
}

// Rates are the seller terms captured on the order. Unset values fall back
// to the configured defaults.
type Rates struct {
	Commission decimal.NullDecimal
	TDS        decimal.NullDecimal
}

// SalePosting is the outcome of PostSaleTx.
type SalePosting struct {
	Split
	Held                 bool
	SettlementEligibleAt time.Time
}

// PayoutResult summarises one settlement run.
type PayoutResult struct {
	SellerID   uuid.UUID       `json:"seller_id"`
	Amount     decimal.Decimal `json:"payout_amount"`
	OrderCount int             `json:"orders_count"`
	OrderIDs   []uuid.UUID     `json:"order_ids"`
}

// RefundInput is the admin refund request. ReversalOverride replaces the
// amount reversed from the seller's wallet.
type RefundInput struct {
	Amount           *decimal.Decimal
	ReversalOverride *decimal.Decimal
}

// RefundBooking is the bookkeeping half of a refund, applied once the
// gateway has accepted it.
type RefundBooking struct {
	RefundID         string
	Amount           *decimal.Decimal
	ReversalOverride *decimal.Decimal
}

// RefundResult reports what a refund changed.
type RefundResult struct {
	OrderID        uuid.UUID        `json:"order_id"`
	RefundID       string           `json:"refund_id"`
	Amount         decimal.Decimal  `json:"amount"`
	ReversalAmount *decimal.Decimal `json:"reversal_amount,omitempty"`
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Audit   auditLog
	Outbox  outbox.Emitter
	Locker  redis.Locker
	Gateway RefundGateway
	Metrics *metrics.MarketplaceMetrics
	Logger  *logger.Logger
	Config  config.LedgerConfig
	Now     func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	audit      auditLog
	outbox     outbox.Emitter
	locker     redis.Locker
	gateway    RefundGateway
	metrics    *metrics.MarketplaceMetrics
	logg       *logger.Logger
	commission decimal.Decimal
	tds        decimal.Decimal
	delay      time.Duration
	lockTTL    time.Duration
	now        func() time.Time
}

// NewService validates dependencies and builds the ledger service. Locker and
// Gateway are optional: without a locker payouts rely on row locks alone, and
// without a gateway admin refunds are rejected.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := params.Config.PayoutLockTTL
	if lockTTL <= 0 {
		lockTTL = defaultPayoutLockTTL
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		audit:      params.Audit,
		outbox:     params.Outbox,
		locker:     params.Locker,
		gateway:    params.Gateway,
		metrics:    params.Metrics,
		logg:       params.Logger,
		commission: params.Config.Commission(),
		tds:        params.Config.TDS(),
		delay:      params.Config.SettlementDelay(),
		lockTTL:    lockTTL,
		now:        now,
	}, nil
}

// PostSaleTx computes the settlement split for a delivered order and posts
// it. The caller must hold the order row lock. Orders that already carry a
// settlement date are left untouched and yield a nil posting.
func (s *service) PostSaleTx(ctx context.Context, tx *gorm.DB, order *models.Order, rates Rates) (*SalePosting, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.SalePosted() {
		return nil, nil
	}

	commissionRate := s.commission
	if rates.Commission.Valid {
		commissionRate = rates.Commission.Decimal
	}
	tdsRate := s.tds
	if rates.TDS.Valid {
		tdsRate = rates.TDS.Decimal
	}
	split := ComputeSplit(order.TotalAmount, commissionRate, tdsRate)
	eligibleAt := s.now().UTC().Add(s.delay)
	held := order.PaymentMethod == enums.PaymentMethodCOD

	repo := s.repo.WithTx(tx)
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"commission_amount":      decimal.NewNullDecimal(split.Commission),
		"tds_amount":             decimal.NewNullDecimal(split.TDS),
		"seller_earning":         decimal.NewNullDecimal(split.SellerEarning),
		"settlement_eligible_at": eligibleAt,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record order settlement")
	}

	wallet, err := s.lockWallet(ctx, repo, order.SellerID, true)
	if err != nil {
		return nil, err
	}

	orderID := order.ID
	entries := []models.LedgerEntry{
		s.entry(order.SellerID, &orderID, enums.LedgerEntrySale, split.Total, fmt.Sprintf("Order %s Sale", orderID)),
		s.entry(order.SellerID, &orderID, enums.LedgerEntryCommission, split.Commission.Neg(),
			fmt.Sprintf("Platform Commission (%s%%)", percent(commissionRate))),
	}
	if split.TDS.IsPositive() {
		entries = append(entries, s.entry(order.SellerID, &orderID, enums.LedgerEntryTDS, split.TDS.Neg(),
			fmt.Sprintf("TDS Deduction (%s%%)", percent(tdsRate))))
	}

	updates := map[string]any{
		"total_sales":      wallet.TotalSales.Add(split.Total),
		"total_commission": wallet.TotalCommission.Add(split.Commission),
	}
	if held {
		entries = append(entries, s.entry(order.SellerID, &orderID, enums.LedgerEntryHold, split.SellerEarning.Neg(),
			"COD Hold until reconciliation"))
		updates["hold_balance"] = wallet.HoldBalance.Add(split.SellerEarning)
	} else {
		updates["available_balance"] = wallet.AvailableBalance.Add(split.SellerEarning)
	}

	if err := s.post(ctx, repo, order.SellerID, entries, updates); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerSalePosted,
		AggregateType: enums.AggregateSellerWallet,
		AggregateID:   order.SellerID,
		Data: payloads.LedgerSalePostedEvent{
			OrderID:              order.ID,
			SellerID:             order.SellerID,
			Total:                split.Total,
			Commission:           split.Commission,
			TDS:                  split.TDS,
			SellerEarning:        split.SellerEarning,
			Held:                 held,
			SettlementEligibleAt: eligibleAt,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale posted event")
	}

	order.CommissionAmount = decimal.NewNullDecimal(split.Commission)
	order.TDSAmount = decimal.NewNullDecimal(split.TDS)
	order.SellerEarning = decimal.NewNullDecimal(split.SellerEarning)
	order.SettlementEligibleAt = &eligibleAt

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":          "ledger.sale_posted",
		"order_id":       order.ID.String(),
		"seller_id":      order.SellerID.String(),
		"seller_earning": split.SellerEarning.String(),
		"held":           held,
	}), "sale posted")

	return &SalePosting{Split: split, Held: held, SettlementEligibleAt: eligibleAt}, nil
}

// ReconcileCOD releases a delivered COD order's held earning once cash has
// been collected from the courier.
func (s *service) ReconcileCOD(ctx context.Context, actor audit.Actor, orderID uuid.UUID) (*models.SellerWallet, error) {
	var wallet *models.SellerWallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		if order.PaymentMethod != enums.PaymentMethodCOD {
			return stateConflict("order is not cash on delivery", order)
		}
		if order.CODReconciled {
			return stateConflict("order already reconciled", order)
		}
		if !order.SalePosted() {
			return stateConflict("order has not been delivered", order)
		}

		amount := order.SellerEarning.Decimal
		current, err := s.lockWallet(ctx, repo, order.SellerID, false)
		if err != nil {
			return err
		}
		entries := []models.LedgerEntry{
			s.entry(order.SellerID, &order.ID, enums.LedgerEntryRelease, amount, "COD Reconciled - Funds Released"),
		}
		updates := map[string]any{
			"hold_balance":      current.HoldBalance.Sub(amount),
			"available_balance": current.AvailableBalance.Add(amount),
		}
		if err := s.post(ctx, repo, order.SellerID, entries, updates); err != nil {
			return err
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"cod_reconciled": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order reconciled")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCODReconciled,
			AggregateType: enums.AggregateSellerWallet,
			AggregateID:   order.SellerID,
			Actor:         actorRef(actor),
			Data:          payloads.CODReconciledEvent{OrderID: order.ID, SellerID: order.SellerID, Amount: amount},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cod reconciled event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionCODReconciled,
			TargetID: order.ID.String(),
			Metadata: map[string]any{"amount": amount.String(), "seller_id": order.SellerID.String()},
		})

		wallet, err = repo.FindWallet(ctx, order.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload wallet")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Payout settles every eligible order for a seller in one posting.
func (s *service) Payout(ctx context.Context, actor audit.Actor, sellerID uuid.UUID) (*PayoutResult, error) {
	if s.locker != nil {
		lease, err := s.locker.Obtain(ctx, s.locker.LockKey("payout", sellerID.String()), s.lockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotObtained) {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout already in progress")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain payout lock")
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "seller_id", sellerID.String()), "failed to release payout lock: "+err.Error())
			}
		}()
	}

	var result *PayoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.LockWallet(ctx, sellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEligibleFunds(sellerID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock wallet")
		}
		orders, err := repo.ListPayoutEligible(ctx, sellerID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list eligible orders")
		}
		if len(orders) == 0 {
			return noEligibleFunds(sellerID)
		}

		amount := decimal.Zero
		ids := make([]uuid.UUID, 0, len(orders))
		for _, o := range orders {
			amount = amount.Add(o.SellerEarning.Decimal)
			ids = append(ids, o.ID)
		}

		entries := []models.LedgerEntry{
			s.entry(sellerID, nil, enums.LedgerEntryPayout, amount.Neg(), fmt.Sprintf("Settlement for %d orders", len(orders))),
		}
		updates := map[string]any{
			"available_balance": wallet.AvailableBalance.Sub(amount),
			"total_payout":      wallet.TotalPayout.Add(amount),
		}
		if err := s.post(ctx, repo, sellerID, entries, updates); err != nil {
			return err
		}
		if err := repo.MarkSettled(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark orders settled")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerPayout,
			AggregateType: enums.AggregateSellerWallet,
			AggregateID:   sellerID,
			Actor:         actorRef(actor),
			Data: payloads.SellerPayoutEvent{
				SellerID:   sellerID,
				Amount:     amount,
				OrderIDs:   ids,
				OrderCount: len(ids),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payout event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionSellerPayout,
			TargetID: sellerID.String(),
			Metadata: map[string]any{"amount": amount.String(), "orders_count": len(ids)},
		})
		result = &PayoutResult{SellerID: sellerID, Amount: amount, OrderCount: len(ids), OrderIDs: ids}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":        "ledger.payout",
		"seller_id":    sellerID.String(),
		"amount":       result.Amount.String(),
		"orders_count": result.OrderCount,
	}), "seller payout processed")
	return result, nil
}

// Refund issues a gateway refund for a paid order and books it.
func (s *service) Refund(ctx context.Context, actor audit.Actor, orderID uuid.UUID, input RefundInput) (*RefundResult, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, stateConflict("only PAID orders can be refunded", order)
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return nil, stateConflict("order has no captured payment", order)
	}
	if err := validateRefundAmounts(order, input.Amount, input.ReversalOverride); err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	refundID, err := s.gateway.Refund(ctx, *order.GatewayPaymentID, input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway refund failed")
	}

	var result *RefundResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claim, err := s.audit.Claim(ctx, tx, refundID, enums.ScopeRefundEvent)
		if err != nil {
			return err
		}
		if claim == audit.ClaimDuplicate {
			result = &RefundResult{OrderID: orderID, RefundID: refundID}
			return nil
		}
		result, err = s.ApplyRefundTx(ctx, tx, orderID, RefundBooking{
			RefundID:         refundID,
			Amount:           input.Amount,
			ReversalOverride: input.ReversalOverride,
		})
		if err != nil {
			return err
		}
		metadata := map[string]any{"refund_id": refundID, "amount": result.Amount.String()}
		if result.ReversalAmount != nil {
			metadata["reversal_amount"] = result.ReversalAmount.String()
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionOrderRefund,
			TargetID: orderID.String(),
			Metadata: metadata,
		})
		return nil
	})
	if err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_id":  orderID.String(),
			"refund_id": refundID,
		}), "refund issued at gateway but bookkeeping failed", err)
		return nil, err
	}
	return result, nil
}

// ApplyRefundTx books a refund the gateway has already accepted: the order is
// marked REFUNDED, the refunded amount accrues, and a delivered order's
// seller position is reversed.
func (s *service) ApplyRefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, booking RefundBooking) (*RefundResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	if err := validateRefundAmounts(order, booking.Amount, booking.ReversalOverride); err != nil {
		return nil, err
	}

	refunded := order.TotalAmount
	if booking.Amount != nil {
		refunded = *booking.Amount
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
		"refund_amount":  order.RefundAmount.Add(refunded),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order refunded")
	}

	result := &RefundResult{OrderID: order.ID, RefundID: booking.RefundID, Amount: refunded}
	if order.Status == enums.OrderStatusDelivered && order.SalePosted() {
		reversal := order.SellerEarning.Decimal
		switch {
		case booking.ReversalOverride != nil:
			reversal = *booking.ReversalOverride
		case booking.Amount != nil:
			reversal = *booking.Amount
		}
		wallet, err := s.lockWallet(ctx, repo, order.SellerID, true)
		if err != nil {
			return nil, err
		}
		entries := []models.LedgerEntry{
			s.entry(order.SellerID, &order.ID, enums.LedgerEntryRefundReversal, reversal.Neg(),
				fmt.Sprintf("Refund reversal for order %s", order.ID)),
		}
		if err := s.post(ctx, repo, order.SellerID, entries, map[string]any{
			"available_balance": wallet.AvailableBalance.Sub(reversal),
		}); err != nil {
			return nil, err
		}
		result.ReversalAmount = &reversal
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderRefundedEvent{
			OrderID:        order.ID,
			RefundID:       booking.RefundID,
			Amount:         refunded,
			ReversalAmount: result.ReversalAmount,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit refund event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":     "ledger.refund_booked",
		"order_id":  order.ID.String(),
		"refund_id": booking.RefundID,
		"amount":    refunded.String(),
		"reversed":  result.ReversalAmount != nil,
	}), "refund booked")
	return result, nil
}

func (s *service) Wallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	wallet, err := s.repo.FindWallet(ctx, sellerID)
	if err != nil {
		return nil, notFoundOr(err, "wallet not found", "load wallet")
	}
	return wallet, nil
}

func (s *service) Wallets(ctx context.Context, params pagination.Params) (pagination.Page[models.SellerWallet], error) {
	rows, err := s.repo.ListWallets(ctx, params)
	if err != nil {
		return pagination.Page[models.SellerWallet]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list wallets")
	}
	return pagination.Build(rows, params.Limit, func(w models.SellerWallet) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.SellerID}
	}), nil
}

func (s *service) Entries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerEntry], error) {
	rows, err := s.repo.ListEntries(ctx, sellerID, params)
	if err != nil {
		return pagination.Page[models.LedgerEntry]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list ledger entries")
	}
	return pagination.Build(rows, params.Limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

// CheckConsistency replays the seller's ledger and compares it with the
// cached wallet. A disagreement is returned as *MismatchError.
func (s *service) CheckConsistency(ctx context.Context, sellerID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindWallet(ctx, sellerID)
		if err != nil {
			return notFoundOr(err, "wallet not found", "load wallet")
		}
		entries, err := repo.AllEntries(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ledger entries")
		}
		return compare(*wallet, entries)
	})
}

// lockWallet takes the wallet row lock, creating the wallet first when create is set.
func (s *service) lockWallet(ctx context.Context, repo Repository, sellerID uuid.UUID, create bool) (*models.SellerWallet, error) {
	if create {
		if err := repo.EnsureWallet(ctx, sellerID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure wallet")
		}
	}
	wallet, err := repo.LockWallet(ctx, sellerID)
	if err != nil {
		return nil, notFoundOr(err, "wallet not found", "lock wallet")
	}
	return wallet, nil
}

// post writes entries and the wallet update that mirrors them in the caller's transaction.
func (s *service) post(ctx context.Context, repo Repository, sellerID uuid.UUID, entries []models.LedgerEntry, updates map[string]any) error {
	if err := repo.InsertEntries(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert ledger entries")
	}
	if err := repo.UpdateWallet(ctx, sellerID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update wallet")
	}
	for _, e := range entries {
		s.metrics.LedgerEntry(e.Type.String())
	}
	return nil
}

func (s *service) entry(sellerID uuid.UUID, orderID *uuid.UUID, entryType enums.LedgerEntryType, amount decimal.Decimal, note string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:       uuid.New(),
		SellerID: sellerID,
		OrderID:  orderID,
		Type:     entryType,
		Amount:   amount,
		Note:     &note,
	}
}

func validateRefundAmounts(order *models.Order, amount, reversal *decimal.Decimal) error {
	if amount != nil {
		if !amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		remaining := order.TotalAmount.Sub(order.RefundAmount)
		if amount.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds refundable balance").
				WithDetails(map[string]any{"refundable": remaining.StringFixed(2)})
		}
	}
	if reversal != nil && reversal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "reversal amount must not be negative")
	}
	return nil
}

func percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String()
}

func noEligibleFunds(sellerID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNoEligibleFunds, "no eligible orders found for settlement").
		WithDetails(map[string]any{"seller_id": sellerID.String()})
}

func stateConflict(message string, order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).WithDetails(map[string]any{
		"order_id":       order.ID.String(),
		"order_status":   order.Status,
		"payment_status": order.PaymentStatus,
	})
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internal)
}

func actorRef(actor audit.Actor) *outbox.ActorRef {
	if actor.ID == "" && actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{ID: actor.ID, Role: actor.Role.String()}
}
