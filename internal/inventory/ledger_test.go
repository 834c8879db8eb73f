package inventory

import (
	"context"
	"testing"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Variant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, qty int) (models.Product, models.Variant) {
	t.Helper()
	product := models.Product{
		VendorID:    uuid.New(),
		Name:        "Kurta",
		SKU:         "SK-" + uuid.NewString()[:8],
		Price:       decimal.RequireFromString("499.00"),
		HasVariants: true,
		IsActive:    true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{
		ProductID: product.ID,
		Price:     decimal.RequireFromString("499.00"),
		StockQty:  qty,
		IsInStock: qty > 0,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return product, variant
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	product, variant := seedVariant(t, db, 5)
	target := LineTarget{ProductID: product.ID, VariantID: &variant.ID}

	if err := ledger.Reserve(ctx, target, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var mid models.Variant
	if err := db.First(&mid, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if mid.StockQty != 2 || !mid.IsInStock {
		t.Fatalf("unexpected state after reserve: qty=%d in_stock=%v", mid.StockQty, mid.IsInStock)
	}

	if err := ledger.Release(ctx, target, 3); err != nil {
		t.Fatalf("release: %v", err)
	}

	var after models.Variant
	if err := db.First(&after, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if after.StockQty != 5 || !after.IsInStock {
		t.Fatalf("stock did not round-trip: qty=%d in_stock=%v", after.StockQty, after.IsInStock)
	}
}

func TestReserveToZeroFlipsInStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	product, variant := seedVariant(t, db, 2)
	target := LineTarget{ProductID: product.ID, VariantID: &variant.ID}

	if err := ledger.Reserve(ctx, target, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var drained models.Variant
	if err := db.First(&drained, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if drained.StockQty != 0 || drained.IsInStock {
		t.Fatalf("expected drained out-of-stock variant, got qty=%d in_stock=%v", drained.StockQty, drained.IsInStock)
	}

	if err := ledger.Release(ctx, target, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	var restocked models.Variant
	if err := db.First(&restocked, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if restocked.StockQty != 1 || !restocked.IsInStock {
		t.Fatalf("expected restocked variant, got qty=%d in_stock=%v", restocked.StockQty, restocked.IsInStock)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	product, variant := seedVariant(t, db, 1)
	target := LineTarget{ProductID: product.ID, VariantID: &variant.ID}

	err := ledger.Reserve(ctx, target, 2)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["available"] != 1 {
		t.Fatalf("expected available=1 in details, got %v", details["available"])
	}

	// untouched on failure
	var after models.Variant
	if err := db.First(&after, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if after.StockQty != 1 {
		t.Fatalf("stock mutated on failed reserve: %d", after.StockQty)
	}
}

func TestReserveProductLevelStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	product := models.Product{
		VendorID:  uuid.New(),
		Name:      "Mug",
		SKU:       "SK-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString("199.00"),
		StockQty:  4,
		IsInStock: true,
		IsActive:  true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	target := LineTarget{ProductID: product.ID}

	if err := ledger.Reserve(ctx, target, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var after models.Product
	if err := db.First(&after, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if after.StockQty != 0 || after.IsInStock {
		t.Fatalf("expected drained product, got qty=%d in_stock=%v", after.StockQty, after.IsInStock)
	}
}

func TestLedgerValidatesQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	product, variant := seedVariant(t, db, 5)
	target := LineTarget{ProductID: product.ID, VariantID: &variant.ID}

	if err := ledger.Reserve(ctx, target, 0); err == nil {
		t.Fatal("expected validation error for zero qty")
	}
	if err := ledger.Release(ctx, target, -1); err == nil {
		t.Fatal("expected validation error for negative qty")
	}
}
