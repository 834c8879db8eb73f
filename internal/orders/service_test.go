package orders

import (
	"context"
	"testing"
	"time"

	"github.com/anshgupta/storekart-backend/internal/cart"
	"github.com/anshgupta/storekart-backend/internal/coupons"
	"github.com/anshgupta/storekart-backend/internal/inventory"
	"github.com/anshgupta/storekart-backend/internal/products"
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testTx struct {
	db *gorm.DB
}

func (t testTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(fn)
}

type stubVerifier struct {
	ok bool
}

func (v stubVerifier) VerifySignature(_, _, _ string) bool {
	return v.ok
}

type captureNotifier struct {
	confirmed []uuid.UUID
}

func (n *captureNotifier) NotifyOrderConfirmed(_ context.Context, order *models.Order) {
	n.confirmed = append(n.confirmed, order.ID)
}

type testEnv struct {
	db       *gorm.DB
	svc      Service
	cartSvc  cart.Service
	notifier *captureNotifier
	verifier *stubVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.Variant{}, &models.CartItem{},
		&models.Coupon{}, &models.Order{}, &models.OrderItem{},
		&models.OrderStatusHistory{}, &models.Setting{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})

	cartSvc, err := cart.NewService(cart.ServiceParams{
		CartRepo:    cart.NewRepository(db),
		ProductRepo: products.NewRepository(db),
	})
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.ServiceParams{Repo: coupons.NewRepository(db)})
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	settingsSvc, err := settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(db),
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("settings service: %v", err)
	}

	notifier := &captureNotifier{}
	verifier := &stubVerifier{ok: true}
	svc, err := NewService(ServiceParams{
		Tx:            testTx{db: db},
		OrderRepo:     NewRepository(db),
		CartService:   cartSvc,
		CouponService: couponSvc,
		Ledger:        inventory.NewLedger(db),
		Settings:      settingsSvc,
		Verifier:      verifier,
		Logger:        logg,
		Notifier:      notifier,
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	return &testEnv{db: db, svc: svc, cartSvc: cartSvc, notifier: notifier, verifier: verifier}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAddress() types.Address {
	return types.Address{
		Name:       "Ansh Gupta",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func (e *testEnv) seedVariant(t *testing.T, price string, stock int) models.Variant {
	t.Helper()
	product := models.Product{
		VendorID:    uuid.New(),
		Name:        "Kurta",
		SKU:         "SK-" + uuid.NewString()[:8],
		Price:       dec("0.00"),
		HasVariants: true,
		IsActive:    true,
	}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{
		ProductID: product.ID,
		Price:     dec(price),
		StockQty:  stock,
		IsInStock: stock > 0,
	}
	if err := e.db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func (e *testEnv) cartVariant(t *testing.T, userID uuid.UUID, variant models.Variant, qty int) {
	t.Helper()
	if _, err := e.cartSvc.AddItem(context.Background(), userID, variant.ProductID, &variant.ID, qty); err != nil {
		t.Fatalf("cart add: %v", err)
	}
}

func (e *testEnv) variantStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var v models.Variant
	if err := e.db.First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return v.StockQty
}

func TestCreateCODOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "1000.00", 5)
	env.cartVariant(t, userID, variant, 2)

	order, err := env.svc.Create(ctx, CreateParams{
		UserID:    userID,
		Address:   testAddress(),
		RawMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.Status != enums.OrderStatusConfirmed || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected state: %s/%s", order.Status, order.PaymentStatus)
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("expected normalized cod method, got %s", order.PaymentMethod)
	}
	// defaults: 5% tax, 0% cod fee
	if !order.Subtotal.Equal(dec("2000.00")) || !order.TaxAmount.Equal(dec("100.00")) {
		t.Fatalf("unexpected totals: subtotal=%s tax=%s", order.Subtotal, order.TaxAmount)
	}
	if !order.PlatformFee.IsZero() {
		t.Fatalf("expected zero cod fee, got %s", order.PlatformFee)
	}
	if !order.TotalAmount.Equal(dec("2100.00")) {
		t.Fatalf("expected total 2100.00, got %s", order.TotalAmount)
	}

	if got := env.variantStock(t, variant.ID); got != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", got)
	}

	resolved, err := env.cartSvc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(resolved.Lines) != 0 {
		t.Fatal("expected cart cleared after checkout")
	}

	history, err := env.svc.History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != enums.OrderStatusConfirmed {
		t.Fatalf("unexpected history: %+v", history)
	}
	if len(env.notifier.confirmed) != 1 {
		t.Fatalf("expected one confirmation notification, got %d", len(env.notifier.confirmed))
	}
}

func TestCreateFailsOnInsufficientStockLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	inStock := env.seedVariant(t, "500.00", 10)
	soldOut := env.seedVariant(t, "300.00", 0)
	env.cartVariant(t, userID, inStock, 1)

	// sold-out line carted while stock was still there
	if err := env.db.Create(&models.CartItem{
		UserID:    userID,
		ProductID: soldOut.ProductID,
		VariantID: &soldOut.ID,
		Quantity:  1,
	}).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}

	_, err := env.svc.Create(ctx, CreateParams{
		UserID:    userID,
		Address:   testAddress(),
		RawMethod: "cod",
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	// all-or-nothing: no order, no items, no stock mutation, cart intact
	var orderCount, itemCount, cartCount int64
	env.db.Model(&models.Order{}).Count(&orderCount)
	env.db.Model(&models.OrderItem{}).Count(&itemCount)
	env.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount)
	if orderCount != 0 || itemCount != 0 {
		t.Fatalf("partial order persisted: orders=%d items=%d", orderCount, itemCount)
	}
	if cartCount != 2 {
		t.Fatalf("cart should be intact, got %d lines", cartCount)
	}
	if got := env.variantStock(t, inStock.ID); got != 10 {
		t.Fatalf("stock mutated on failed checkout: %d", got)
	}
}

func TestCreateEmptyCartAndBadAddress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.Create(ctx, CreateParams{UserID: userID, Address: testAddress(), RawMethod: "cod"})
	if err == nil {
		t.Fatal("expected error for empty cart")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.svc.Create(ctx, CreateParams{UserID: userID, Address: types.Address{}, RawMethod: "cod"})
	if err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestCreateWithPercentageCoupon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "1000.00", 5)
	env.cartVariant(t, userID, variant, 1)

	coupon := models.Coupon{
		Code:          "SAVE10",
		Kind:          enums.CouponKindProduct,
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("10.00"),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		IsActive:      true,
	}
	if err := env.db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order, err := env.svc.Create(ctx, CreateParams{
		UserID:     userID,
		Address:    testAddress(),
		RawMethod:  "cod",
		CouponCode: "SAVE10",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.CouponDiscount.Equal(dec("100.00")) {
		t.Fatalf("expected discount 100.00, got %s", order.CouponDiscount)
	}
	// tax on the discounted 900.00
	if !order.TaxAmount.Equal(dec("45.00")) {
		t.Fatalf("expected tax 45.00, got %s", order.TaxAmount)
	}
	if !order.TotalAmount.Equal(dec("945.00")) {
		t.Fatalf("expected total 945.00, got %s", order.TotalAmount)
	}
	if !order.CouponUsageRecorded {
		t.Fatal("expected coupon usage recorded on confirmed order")
	}

	var stored models.Coupon
	if err := env.db.First(&stored, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Fatalf("expected used_count 1, got %d", stored.UsedCount)
	}
}

func TestCreateWithSellerCouponDiscountsFeeAndTax(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "10000.00", 5)
	env.cartVariant(t, userID, variant, 1)

	coupon := models.Coupon{
		Code:          "PLATFORM50",
		Kind:          enums.CouponKindSeller,
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: dec("50.00"),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		IsActive:      true,
	}
	if err := env.db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order, err := env.svc.Create(ctx, CreateParams{
		UserID:          userID,
		Address:         testAddress(),
		RawMethod:       "CC",
		CouponCode:      "PLATFORM50",
		PaymentVerified: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// card: fee 2.36% = 236.00, tax 5% = 500.00 on the full subtotal;
	// seller discount comes off the fee+tax component
	if !order.Subtotal.Equal(dec("10000.00")) {
		t.Fatalf("subtotal must stay undiscounted, got %s", order.Subtotal)
	}
	if !order.PlatformFee.Equal(dec("236.00")) || !order.TaxAmount.Equal(dec("500.00")) {
		t.Fatalf("unexpected fee/tax: %s/%s", order.PlatformFee, order.TaxAmount)
	}
	if !order.CouponDiscount.Equal(dec("50.00")) {
		t.Fatalf("expected discount 50.00, got %s", order.CouponDiscount)
	}
	if !order.TotalAmount.Equal(dec("10686.00")) {
		t.Fatalf("expected total 10686.00, got %s", order.TotalAmount)
	}
}

func TestCreateSignatureFailurePathSkipsStockAndUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "5000.00", 1)
	env.cartVariant(t, userID, variant, 1)

	gwOrder := "order_test123"
	order, err := env.svc.Create(ctx, CreateParams{
		UserID:          userID,
		Address:         testAddress(),
		RawMethod:       "card",
		GatewayOrderID:  &gwOrder,
		PaymentVerified: false,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", order.Status, order.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("stock must not be decremented on the retry path, got %d", got)
	}
	for _, item := range order.Items {
		if item.StockDecremented {
			t.Fatal("items must not be marked decremented")
		}
	}

	// cart is still cleared so the retry reuses frozen totals, not a
	// possibly-changed cart
	resolved, err := env.cartSvc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(resolved.Lines) != 0 {
		t.Fatal("expected cart cleared")
	}
	if len(env.notifier.confirmed) != 0 {
		t.Fatal("no confirmation notification for a pending order")
	}
}

func TestCompletePaymentConfirmsPendingOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "5000.00", 1)
	env.cartVariant(t, userID, variant, 1)

	gwOrder := "order_retry1"
	order, err := env.svc.Create(ctx, CreateParams{
		UserID:         userID,
		Address:        testAddress(),
		RawMethod:      "card",
		GatewayOrderID: &gwOrder,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	frozenTotal := order.TotalAmount

	env.verifier.ok = true
	completed, err := env.svc.CompletePayment(ctx, CompletePaymentParams{
		OrderID:   order.ID,
		PaymentID: "pay_abc",
		Signature: "sig",
	})
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}

	if completed.Status != enums.OrderStatusConfirmed || completed.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected confirmed/paid, got %s/%s", completed.Status, completed.PaymentStatus)
	}
	if !completed.TotalAmount.Equal(frozenTotal) {
		t.Fatalf("totals recomputed: %s != %s", completed.TotalAmount, frozenTotal)
	}
	if got := env.variantStock(t, variant.ID); got != 0 {
		t.Fatalf("expected stock decremented on completion, got %d", got)
	}
	if completed.GatewayPaymentID == nil || *completed.GatewayPaymentID != "pay_abc" {
		t.Fatalf("expected payment id persisted, got %v", completed.GatewayPaymentID)
	}

	history, err := env.svc.History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}

	// a second completion attempt is a state conflict
	_, err = env.svc.CompletePayment(ctx, CompletePaymentParams{OrderID: order.ID, PaymentID: "pay_abc", Signature: "sig"})
	if err == nil {
		t.Fatal("expected state conflict on repeated completion")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompletePaymentSignatureMismatchKeepsOrderPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "5000.00", 1)
	env.cartVariant(t, userID, variant, 1)

	gwOrder := "order_retry2"
	order, err := env.svc.Create(ctx, CreateParams{
		UserID:         userID,
		Address:        testAddress(),
		RawMethod:      "card",
		GatewayOrderID: &gwOrder,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.verifier.ok = false
	_, err = env.svc.CompletePayment(ctx, CompletePaymentParams{OrderID: order.ID, PaymentID: "pay_x", Signature: "bad"})
	if err == nil {
		t.Fatal("expected signature mismatch")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSignatureMismatch {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := env.svc.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order must stay pending, got %s", reloaded.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("stock must stay untouched, got %d", got)
	}
}

func TestCompletePaymentRefusesCancelledOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "5000.00", 2)
	env.cartVariant(t, userID, variant, 1)

	gwOrder := "order_cancelled1"
	order, err := env.svc.Create(ctx, CreateParams{
		UserID:         userID,
		Address:        testAddress(),
		RawMethod:      "card",
		GatewayOrderID: &gwOrder,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.Cancel(ctx, order.ID, "user"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	env.verifier.ok = true
	_, err = env.svc.CompletePayment(ctx, CompletePaymentParams{OrderID: order.ID, PaymentID: "pay_late", Signature: "sig"})
	if err == nil {
		t.Fatal("expected state conflict completing a cancelled order")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := env.svc.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("cancelled order was resurrected to %s", reloaded.Status)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status moved to %s", reloaded.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 2 {
		t.Fatalf("stock must stay untouched, got %d", got)
	}
}

func TestCancelRoundTripsStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "750.00", 4)
	env.cartVariant(t, userID, variant, 3)

	order, err := env.svc.Create(ctx, CreateParams{UserID: userID, Address: testAddress(), RawMethod: "cod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("expected stock 1 after checkout, got %d", got)
	}

	cancelled, err := env.svc.Cancel(ctx, order.ID, "user")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := env.variantStock(t, variant.ID); got != 4 {
		t.Fatalf("stock did not round-trip, got %d", got)
	}

	// cancellation is one-way
	_, err = env.svc.Cancel(ctx, order.ID, "user")
	if err == nil {
		t.Fatal("expected state conflict on double cancel")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.variantStock(t, variant.ID); got != 4 {
		t.Fatalf("double cancel released stock twice, got %d", got)
	}
}

func TestShipDeliverTransitions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "100.00", 5)
	env.cartVariant(t, userID, variant, 1)

	order, err := env.svc.Create(ctx, CreateParams{UserID: userID, Address: testAddress(), RawMethod: "cod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// cannot deliver before shipping
	if _, err := env.svc.Deliver(ctx, order.ID, "admin"); err == nil {
		t.Fatal("expected invalid transition")
	}

	shipped, err := env.svc.Ship(ctx, order.ID, "admin")
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped || shipped.ShippedAt == nil {
		t.Fatalf("unexpected shipped state: %+v", shipped.Status)
	}

	delivered, err := env.svc.Deliver(ctx, order.ID, "admin")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered state: %+v", delivered.Status)
	}

	// delivered orders cannot be cancelled
	if _, err := env.svc.Cancel(ctx, order.ID, "user"); err == nil {
		t.Fatal("expected state conflict cancelling delivered order")
	}

	history, err := env.svc.History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(history))
	}
}

func TestGetForUserEnforcesOwnership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variant := env.seedVariant(t, "100.00", 5)
	env.cartVariant(t, userID, variant, 1)

	order, err := env.svc.Create(ctx, CreateParams{UserID: userID, Address: testAddress(), RawMethod: "cod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.GetForUser(ctx, userID, order.ID); err != nil {
		t.Fatalf("owner fetch: %v", err)
	}
	if _, err := env.svc.GetForUser(ctx, uuid.New(), order.ID); err == nil {
		t.Fatal("expected not-found for foreign user")
	}
}
