package returns

import (
	"context"
	"testing"
	"time"

	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:returns_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{}, &models.OrderItem{},
		&models.OrderStatusHistory{}, &models.ReturnRequest{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, now time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		OrderRepo: orders.NewRepository(db),
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedDeliveredOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, deliveredAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		UserID:        userID,
		Status:        enums.OrderStatusDelivered,
		PaymentStatus: enums.PaymentStatusPaid,
		PaymentMethod: enums.PaymentMethodCOD,
		Subtotal:      dec("1500.00"),
		TotalAmount:   dec("1575.00"),
		DeliveredAt:   &deliveredAt,
		Items: []models.OrderItem{
			{
				ProductID: uuid.New(),
				Name:      "Kurta",
				UnitPrice: dec("500.00"),
				Quantity:  1,
				LineTotal: dec("500.00"),
			},
			{
				ProductID: uuid.New(),
				Name:      "Dupatta",
				UnitPrice: dec("500.00"),
				Quantity:  2,
				LineTotal: dec("1000.00"),
			},
		},
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCreateWithinWindow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	deliveredAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order := seedDeliveredOrder(t, db, userID, deliveredAt)

	svc := newTestService(t, db, deliveredAt.Add(9*24*time.Hour))
	req, err := svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[0].ID,
		Reason:      "wrong size",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != enums.ReturnStatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if req.RefundAmount != nil {
		t.Fatal("refund must not be set before review")
	}

	// the same item cannot be claimed twice
	_, err = svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[0].ID,
		Reason:      "changed my mind",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on duplicate claim, got %v", err)
	}

	// a different item of the same order is fine
	if _, err := svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[1].ID,
		Reason:      "damaged",
	}); err != nil {
		t.Fatalf("second item claim: %v", err)
	}
}

func TestCreateRejections(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	deliveredAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order := seedDeliveredOrder(t, db, userID, deliveredAt)

	t.Run("window closed", func(t *testing.T) {
		svc := newTestService(t, db, deliveredAt.Add(11*24*time.Hour))
		_, err := svc.Create(ctx, CreateParams{
			UserID:      userID,
			OrderID:     order.ID,
			OrderItemID: order.Items[0].ID,
			Reason:      "too late",
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})

	svc := newTestService(t, db, deliveredAt.Add(24*time.Hour))

	t.Run("foreign order", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateParams{
			UserID:      uuid.New(),
			OrderID:     order.ID,
			OrderItemID: order.Items[0].ID,
			Reason:      "not mine",
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("item from another order", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateParams{
			UserID:      userID,
			OrderID:     order.ID,
			OrderItemID: uuid.New(),
			Reason:      "mismatched item",
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("undelivered order", func(t *testing.T) {
		pending := models.Order{
			UserID:        userID,
			Status:        enums.OrderStatusConfirmed,
			PaymentStatus: enums.PaymentStatusPaid,
			PaymentMethod: enums.PaymentMethodCard,
			Subtotal:      dec("100.00"),
			TotalAmount:   dec("107.36"),
			Items: []models.OrderItem{{
				ProductID: uuid.New(),
				Name:      "Socks",
				UnitPrice: dec("100.00"),
				Quantity:  1,
				LineTotal: dec("100.00"),
			}},
		}
		if err := db.Create(&pending).Error; err != nil {
			t.Fatalf("seed order: %v", err)
		}
		_, err := svc.Create(ctx, CreateParams{
			UserID:      userID,
			OrderID:     pending.ID,
			OrderItemID: pending.Items[0].ID,
			Reason:      "not here yet",
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})
}

func TestApproveRefundsFrozenLineTotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	deliveredAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order := seedDeliveredOrder(t, db, userID, deliveredAt)

	svc := newTestService(t, db, deliveredAt.Add(48*time.Hour))
	req, err := svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[1].ID,
		Reason:      "damaged",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.Approve(ctx, req.ID, "ops", "photos checked")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.ReturnStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.RefundAmount == nil || !approved.RefundAmount.Equal(dec("1000.00")) {
		t.Fatalf("expected refund 1000.00, got %v", approved.RefundAmount)
	}
	if approved.ResolvedAt == nil {
		t.Fatal("resolved_at must be set")
	}

	// a resolved claim cannot be reviewed again
	if _, err := svc.Reject(ctx, req.ID, "ops", "second look"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	var history []models.OrderStatusHistory
	if err := db.Where("order_id = ?", order.ID).Find(&history).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 || history[0].Note != "return approved" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRejectNeedsNote(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	deliveredAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order := seedDeliveredOrder(t, db, userID, deliveredAt)

	svc := newTestService(t, db, deliveredAt.Add(time.Hour))
	req, err := svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[0].ID,
		Reason:      "wrong size",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Reject(ctx, req.ID, "ops", ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	rejected, err := svc.Reject(ctx, req.ID, "ops", "wear visible on soles")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RefundAmount != nil {
		t.Fatal("rejected claims carry no refund")
	}
	if rejected.ReviewNote == nil || *rejected.ReviewNote != "wear visible on soles" {
		t.Fatalf("unexpected review note: %v", rejected.ReviewNote)
	}
}

func TestListingAndOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	deliveredAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order := seedDeliveredOrder(t, db, userID, deliveredAt)

	svc := newTestService(t, db, deliveredAt.Add(time.Hour))
	req, err := svc.Create(ctx, CreateParams{
		UserID:      userID,
		OrderID:     order.ID,
		OrderItemID: order.Items[0].ID,
		Reason:      "wrong size",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetForUser(ctx, uuid.New(), req.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}

	mine, err := svc.ListForUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != req.ID {
		t.Fatalf("unexpected listing: %+v", mine)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending claim, got %d", len(pending))
	}
}
