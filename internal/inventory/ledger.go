// Package inventory owns stock mutation. There is no reservation window:
// checkout decrements immediately and cancellation adds back. Both
// directions recompute is_in_stock in the same statement as the quantity
// change.
package inventory

import (
	"context"
	"errors"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineTarget identifies the row holding stock for an order line. Products
// with variants carry stock on the variant row.
type LineTarget struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// Ledger mutates stock quantities with compare-and-decrement semantics.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a ledger bound to the provided gorm DB.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx binds the ledger to a transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Reserve decrements stock for a line. The guard rides in the WHERE clause
// so concurrent checkouts can never drive stock negative; a miss is
// reported as insufficient stock with the quantity still available.
func (l *Ledger) Reserve(ctx context.Context, target LineTarget, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	res := l.stockQuery(ctx, target).
		Where("stock_qty >= ?", qty).
		UpdateColumns(map[string]any{
			"stock_qty":   gorm.Expr("stock_qty - ?", qty),
			"is_in_stock": gorm.Expr("stock_qty - ? > 0", qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	available, err := l.availableQty(ctx, target)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": target.ProductID,
			"variant_id": target.VariantID,
			"requested":  qty,
			"available":  available,
		})
}

// Release adds stock back for a cancelled line. Callers track per-line
// whether stock was actually decremented; the ledger itself is a plain
// increment.
func (l *Ledger) Release(ctx context.Context, target LineTarget, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	res := l.stockQuery(ctx, target).
		UpdateColumns(map[string]any{
			"stock_qty":   gorm.Expr("stock_qty + ?", qty),
			"is_in_stock": gorm.Expr("stock_qty + ? > 0", qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found").
			WithDetails(map[string]any{"product_id": target.ProductID, "variant_id": target.VariantID})
	}
	return nil
}

func (l *Ledger) stockQuery(ctx context.Context, target LineTarget) *gorm.DB {
	if target.VariantID != nil {
		return l.db.WithContext(ctx).
			Model(&models.Variant{}).
			Where("id = ? AND product_id = ?", *target.VariantID, target.ProductID)
	}
	return l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", target.ProductID)
}

func (l *Ledger) availableQty(ctx context.Context, target LineTarget) (int, error) {
	var row struct {
		StockQty int
	}
	err := l.stockQuery(ctx, target).Select("stock_qty").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found").
				WithDetails(map[string]any{"product_id": target.ProductID, "variant_id": target.VariantID})
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return row.StockQty, nil
}
