package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/pkg/db/dbtest"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

func newTestService(t *testing.T, conn *gorm.DB, buf *bytes.Buffer) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "audit-test", Output: buf})
	svc, err := NewService(NewRepository(conn), logg)
	require.NoError(t, err)
	return svc
}

func TestClaimFirstThenDuplicate(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})
	ctx := context.Background()

	res, err := svc.Claim(ctx, nil, "AWB123_DELIVERED", enums.ScopeDeliveryEvent)
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, res)

	res, err = svc.Claim(ctx, nil, "AWB123_DELIVERED", enums.ScopeDeliveryEvent)
	require.NoError(t, err)
	assert.Equal(t, ClaimDuplicate, res)

	res, err = svc.Claim(ctx, nil, "AWB123_DELIVERED", enums.ScopePaymentCaptured)
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, res, "same key in another scope is independent")
}

func TestClaimDuplicateKeepsOuterTransactionUsable(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, nil, "pay_1", enums.ScopePaymentCaptured)
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		res, err := svc.Claim(ctx, tx, "pay_1", enums.ScopePaymentCaptured)
		if err != nil {
			return err
		}
		assert.Equal(t, ClaimDuplicate, res)
		svc.Record(ctx, tx, Entry{Actor: SystemActor, Action: ActionWebhookReceived, TargetID: "pay_1"})
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})
	ctx := context.Background()

	boom := errors.New("mutation failed")
	err := conn.Transaction(func(tx *gorm.DB) error {
		res, err := svc.Claim(ctx, tx, "rfnd_1", enums.ScopeRefundEvent)
		require.NoError(t, err)
		require.Equal(t, ClaimAcquired, res)
		return boom
	})
	require.ErrorIs(t, err, boom)

	res, err := svc.Claim(ctx, nil, "rfnd_1", enums.ScopeRefundEvent)
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, res, "a rolled back claim must be claimable again")
}

func TestClaimValidatesInput(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})

	_, err := svc.Claim(context.Background(), nil, "  ", enums.ScopeDeliveryEvent)
	assert.Error(t, err)
	_, err = svc.Claim(context.Background(), nil, "k", enums.IdempotencyScope("OTHER"))
	assert.Error(t, err)
}

func TestRecordStoresActorAndMetadata(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})

	svc.Record(context.Background(), nil, Entry{
		Actor:    Actor{ID: "admin-1", Role: enums.ActorRoleAdmin},
		Action:   ActionOrderStatusUpdate,
		TargetID: "order-1",
		Metadata: map[string]any{"from": "PLACED", "to": "SHIPPED"},
	})

	trail, err := svc.Trail(context.Background(), "order-1", 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.NotNil(t, trail[0].ActorRole)
	assert.Equal(t, "ADMIN", *trail[0].ActorRole)
	assert.Equal(t, "SHIPPED", trail[0].Metadata["to"])
}

func TestRecordSwallowsStorageFailure(t *testing.T) {
	conn := dbtest.Open(t)
	buf := &bytes.Buffer{}
	svc := newTestService(t, conn, buf)
	require.NoError(t, conn.Exec("DROP TABLE audit_logs").Error)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), nil, Entry{Action: ActionRiskReset, TargetID: "buyer-1"})
	})
	assert.Contains(t, buf.String(), "audit.write_failed")
}

func TestPurgeKeysBefore(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, &bytes.Buffer{})
	ctx := context.Background()

	_, err := svc.Claim(ctx, nil, "old", enums.ScopeDeliveryEvent)
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.IdempotencyKey{}).
		Where("key = ?", "old").
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)
	_, err = svc.Claim(ctx, nil, "fresh", enums.ScopeDeliveryEvent)
	require.NoError(t, err)

	deleted, err := svc.PurgeKeysBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, logger.New(logger.Options{}))
	assert.Error(t, err)
	_, err = NewService(NewRepository(nil), nil)
	assert.Error(t, err)
}
