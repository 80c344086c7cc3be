package catalog

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/db/dbtest"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

type stubRecorder struct {
	entries []audit.Entry
}

func (s *stubRecorder) Record(_ context.Context, _ *gorm.DB, entry audit.Entry) {
	s.entries = append(s.entries, entry)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *stubRecorder) {
	t.Helper()
	conn := dbtest.Open(t)
	rec := &stubRecorder{}
	svc, err := NewService(NewRepository(conn), rec, logger.New(logger.Options{ServiceName: "catalog-test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	return svc, conn, rec
}

func seedSeller(t *testing.T, conn *gorm.DB, sellerType enums.SellerType, state string) models.SellerProfile {
	t.Helper()
	seller := models.SellerProfile{
		UserID:       uuid.New(),
		BusinessName: "Kala Handlooms",
		Type:         sellerType,
		State:        state,
	}
	require.NoError(t, conn.Create(&seller).Error)
	return seller
}

func seedProduct(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, active bool) models.Product {
	t.Helper()
	product := models.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        "Cotton saree",
		Price:       decimal.NewFromInt(1200),
		WeightGrams: 600,
		LengthCM:    decimal.NewFromInt(30),
		WidthCM:     decimal.NewFromInt(20),
		HeightCM:    decimal.NewFromInt(5),
		IsActive:    active,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func TestProductsByIDLoadsSeller(t *testing.T) {
	svc, conn, _ := newTestService(t)
	seller := seedSeller(t, conn, enums.SellerTypePANOnly, "KA")
	product := seedProduct(t, conn, seller.UserID, true)

	byID, err := svc.ProductsByID(context.Background(), []uuid.UUID{product.ID})
	require.NoError(t, err)
	require.Contains(t, byID, product.ID)
	require.NotNil(t, byID[product.ID].Seller)
	assert.Equal(t, enums.SellerTypePANOnly, byID[product.ID].Seller.Type)
}

func TestProductsByIDRejectsInactiveAndUnknown(t *testing.T) {
	svc, conn, _ := newTestService(t)
	seller := seedSeller(t, conn, enums.SellerTypeGST, "MH")
	inactive := seedProduct(t, conn, seller.UserID, false)

	_, err := svc.ProductsByID(context.Background(), []uuid.UUID{inactive.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.ProductsByID(context.Background(), []uuid.UUID{uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateSellerTerms(t *testing.T) {
	svc, conn, rec := newTestService(t)
	seller := seedSeller(t, conn, enums.SellerTypeGST, "MH")
	admin := audit.Actor{ID: "admin-1", Role: enums.ActorRoleAdmin}

	commission := decimal.RequireFromString("0.08")
	panOnly := enums.SellerTypePANOnly
	updated, err := svc.UpdateSellerTerms(context.Background(), admin, seller.UserID, SellerTermsInput{
		CommissionRate: &commission,
		Type:           &panOnly,
	})
	require.NoError(t, err)
	require.True(t, updated.CommissionRate.Valid)
	assert.True(t, updated.CommissionRate.Decimal.Equal(commission))
	assert.False(t, updated.TDSRate.Valid)
	assert.Equal(t, enums.SellerTypePANOnly, updated.Type)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionSellerTermsUpdate, rec.entries[0].Action)

	tooHigh := decimal.NewFromInt(1)
	_, err = svc.UpdateSellerTerms(context.Background(), admin, seller.UserID, SellerTermsInput{TDSRate: &tooHigh})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateSellerTerms(context.Background(), admin, uuid.New(), SellerTermsInput{CommissionRate: &commission})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRefreshShippingClassAndIncompleteList(t *testing.T) {
	svc, conn, _ := newTestService(t)
	seller := seedSeller(t, conn, enums.SellerTypeGST, "MH")
	product := seedProduct(t, conn, seller.UserID, true)

	class, err := svc.RefreshShippingClass(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingClassMedium, class)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	require.NotNil(t, stored.ShippingClass)
	assert.Equal(t, enums.ShippingClassMedium, *stored.ShippingClass)
	assert.True(t, stored.VolumetricWeight.Valid)

	flat := models.Product{
		ID:       uuid.New(),
		SellerID: seller.UserID,
		Name:     "Unmeasured lamp",
		Price:    decimal.NewFromInt(300),
		LengthCM: decimal.Zero,
		WidthCM:  decimal.NewFromInt(10),
		HeightCM: decimal.NewFromInt(10),
		IsActive: true,
	}
	require.NoError(t, conn.Create(&flat).Error)

	_, err = svc.RefreshShippingClass(context.Background(), flat)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	incomplete, err := svc.IncompleteProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, flat.ID, incomplete[0].ID)
}
