package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service is the buyer risk scoring engine.
type Service interface {
	EnsureProfile(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*models.BuyerProfile, error)
	Profile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	ListProfiles(ctx context.Context, params pagination.Params) (pagination.Page[models.BuyerProfile], error)
	ApplyOutcomeTx(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, status enums.OrderStatus) (*OutcomeResult, error)
	CheckCOD(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	CheckCODAmount(ctx context.Context, profile *models.BuyerProfile, total decimal.Decimal) error
	IncrementLifetimeOrdersTx(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) error
	OverrideCOD(ctx context.Context, actor audit.Actor, buyerID uuid.UUID, input OverrideInput) (*models.BuyerProfile, error)
	ResetScore(ctx context.Context, actor audit.Actor, buyerID uuid.UUID) (*models.BuyerProfile, error)
	ListEvents(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.RiskEvent], error)
}

// ServiceParams wires the risk service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Audit     auditRecorder
	Logger    *logger.Logger
	Threshold int
	Now       func() time.Time
}

// OutcomeResult describes a score change applied for an order outcome.
type OutcomeResult struct {
	PreviousScore int `json:"previous_score"`
	Score         int `json:"score"`
	Points        int `json:"points"`
}

// OverrideInput holds the admin-editable COD allowances. Nil fields are left unchanged.
type OverrideInput struct {
	CODAllowed     *bool
	CODLimitAmount *decimal.Decimal
	DailyCODLimit  *int
}

type service struct {
	repo      Repository
	tx        txRunner
	audit     auditRecorder
	logg      *logger.Logger
	threshold int
	now       func() time.Time
}

// NewService builds the risk service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("risk repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = DefaultCODBlockThreshold
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		audit:     params.Audit,
		logg:      params.Logger,
		threshold: threshold,
		now:       now,
	}, nil
}

// EnsureProfile returns the buyer's profile, creating it with defaults on first use.
func (s *service) EnsureProfile(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	repo := s.repo.WithTx(tx)
	profile, err := repo.FindProfile(ctx, buyerID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer profile")
	}
	fresh := &models.BuyerProfile{
		UserID:         buyerID,
		CODAllowed:     true,
		CODLimitAmount: DefaultCODLimitAmount,
		DailyCODLimit:  DefaultDailyCODLimit,
	}
	if err := repo.CreateProfileIfMissing(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create buyer profile")
	}
	profile, err = repo.FindProfile(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload buyer profile")
	}
	return profile, nil
}

func (s *service) Profile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	profile, err := s.repo.FindProfile(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer profile")
	}
	return profile, nil
}

func (s *service) ListProfiles(ctx context.Context, params pagination.Params) (pagination.Page[models.BuyerProfile], error) {
	rows, err := s.repo.ListProfiles(ctx, params)
	if err != nil {
		return pagination.Page[models.BuyerProfile]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list buyer profiles")
	}
	return pagination.Build(rows, params.Limit, func(p models.BuyerProfile) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.UserID}
	}), nil
}

// ApplyOutcomeTx adjusts the buyer's score and outcome counter for a settled
// order. Statuses without a scoring effect return a nil result.
func (s *service) ApplyOutcomeTx(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, status enums.OrderStatus) (*OutcomeResult, error) {
	outcome, ok := OutcomeFor(status)
	if !ok {
		return nil, nil
	}
	if _, err := s.EnsureProfile(ctx, tx, buyerID); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	profile, err := repo.FindProfileForUpdate(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock buyer profile")
	}

	next := ApplyDelta(profile.RiskScore, outcome.Points)
	if err := repo.UpdateProfile(ctx, buyerID, map[string]any{
		"risk_score":    next,
		outcome.Counter: gorm.Expr(outcome.Counter + " + 1"),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update buyer risk")
	}

	orderRef := orderID
	if err := repo.InsertEvent(ctx, &models.RiskEvent{
		ID:      uuid.New(),
		BuyerID: buyerID,
		OrderID: &orderRef,
		Type:    outcome.EventType,
		Points:  outcome.Points,
		Note:    fmt.Sprintf("Order %s: %s", orderID, status),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert risk event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":          "risk.outcome_applied",
		"buyer_id":       buyerID.String(),
		"order_id":       orderID.String(),
		"points":         outcome.Points,
		"risk_score":     next,
		"previous_score": profile.RiskScore,
	}), "buyer risk updated")

	return &OutcomeResult{PreviousScore: profile.RiskScore, Score: next, Points: outcome.Points}, nil
}

// CheckCOD runs the pre-pricing gates. A rejection records a COD_BLOCK event
// and returns a validation error whose details name the reason.
func (s *service) CheckCOD(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	profile, err := s.EnsureProfile(ctx, nil, buyerID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountCODOrdersSince(ctx, buyerID, startOfDay(s.now()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cod orders")
	}
	reason, ok := EvaluateCOD(GateInput{Profile: *profile, CODOrdersToday: count, Threshold: s.threshold})
	if !ok {
		return nil, s.block(ctx, buyerID, reason, profile)
	}
	return profile, nil
}

func (s *service) CheckCODAmount(ctx context.Context, profile *models.BuyerProfile, total decimal.Decimal) error {
	if profile == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer profile required")
	}
	if reason, ok := EvaluateCODAmount(*profile, total); !ok {
		return s.block(ctx, profile.UserID, reason, profile)
	}
	return nil
}

func (s *service) block(ctx context.Context, buyerID uuid.UUID, reason enums.CODBlockReason, profile *models.BuyerProfile) error {
	if err := s.repo.InsertEvent(ctx, &models.RiskEvent{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Type:    enums.RiskEventCODBlock,
		Points:  0,
		Note:    reason.String(),
	}); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "buyer_id", buyerID.String()), "failed to record cod block", err)
	}
	message := "COD not available. Please choose Online Payment."
	switch reason {
	case enums.CODBlockDailyLimit:
		message = "Daily COD limit reached. Please choose Online Payment."
	case enums.CODBlockAmountLimit:
		message = fmt.Sprintf("COD not available for orders above %s.", profile.CODLimitAmount.StringFixed(2))
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{
		"reason": reason,
	})
}

func (s *service) IncrementLifetimeOrdersTx(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) error {
	if err := s.repo.WithTx(tx).UpdateProfile(ctx, buyerID, map[string]any{
		"lifetime_orders": gorm.Expr("lifetime_orders + 1"),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment lifetime orders")
	}
	return nil
}

func (s *service) OverrideCOD(ctx context.Context, actor audit.Actor, buyerID uuid.UUID, input OverrideInput) (*models.BuyerProfile, error) {
	updates := map[string]any{}
	if input.CODAllowed != nil {
		updates["cod_allowed"] = *input.CODAllowed
	}
	if input.CODLimitAmount != nil {
		if input.CODLimitAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cod limit amount must not be negative")
		}
		updates["cod_limit_amount"] = input.CODLimitAmount.Round(2)
	}
	if input.DailyCODLimit != nil {
		if *input.DailyCODLimit < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily cod limit must not be negative")
		}
		updates["daily_cod_orders_limit"] = *input.DailyCODLimit
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no override fields supplied")
	}

	var profile *models.BuyerProfile
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.EnsureProfile(ctx, tx, buyerID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateProfile(ctx, buyerID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "override cod")
		}
		var err error
		profile, err = repo.FindProfile(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload buyer profile")
		}
		note := fmt.Sprintf("Admin override: COD=%t, Limit=%s, Daily=%d",
			profile.CODAllowed, profile.CODLimitAmount.StringFixed(2), profile.DailyCODLimit)
		if err := repo.InsertEvent(ctx, manualOverride(buyerID, note)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert risk event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionCODOverride,
			TargetID: buyerID.String(),
			Metadata: map[string]any{"updates": updates},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) ResetScore(ctx context.Context, actor audit.Actor, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	var profile *models.BuyerProfile
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.EnsureProfile(ctx, tx, buyerID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		current, err := repo.FindProfileForUpdate(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock buyer profile")
		}
		if err := repo.UpdateProfile(ctx, buyerID, map[string]any{"risk_score": 0}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset risk score")
		}
		note := fmt.Sprintf("Risk score reset by admin (was %d)", current.RiskScore)
		if err := repo.InsertEvent(ctx, manualOverride(buyerID, note)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert risk event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionRiskReset,
			TargetID: buyerID.String(),
			Metadata: map[string]any{"previous_score": current.RiskScore},
		})
		current.RiskScore = 0
		profile = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) ListEvents(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.RiskEvent], error) {
	rows, err := s.repo.ListEvents(ctx, buyerID, params)
	if err != nil {
		return pagination.Page[models.RiskEvent]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list risk events")
	}
	return pagination.Build(rows, params.Limit, func(e models.RiskEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

func manualOverride(buyerID uuid.UUID, note string) *models.RiskEvent {
	return &models.RiskEvent{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Type:    enums.RiskEventManualOverride,
		Points:  0,
		Note:    note,
	}
}

// startOfDay is the UTC midnight preceding t.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
