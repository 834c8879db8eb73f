package payments

import (
	"context"
	"testing"

	"github.com/anshgupta/storekart-backend/internal/cart"
	"github.com/anshgupta/storekart-backend/internal/coupons"
	"github.com/anshgupta/storekart-backend/internal/inventory"
	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/internal/products"
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/razorpay"
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

type stubGateway struct {
	verify bool

	createOrderCalls    int
	createCustomerCalls int

	knownCustomers map[string]bool
	payment        *razorpay.Payment
	token          *razorpay.Token
}

func newStubGateway() *stubGateway {
	return &stubGateway{verify: true, knownCustomers: map[string]bool{}}
}

func (g *stubGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string, _ map[string]string) (*razorpay.Order, error) {
	g.createOrderCalls++
	return &razorpay.Order{
		ID:       "order_stub" + uuid.NewString()[:6],
		Amount:   amountPaise,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) FetchPayment(_ context.Context, paymentID string) (*razorpay.Payment, error) {
	if g.payment == nil {
		return &razorpay.Payment{ID: paymentID, Status: "captured"}, nil
	}
	return g.payment, nil
}

func (g *stubGateway) CreateCustomer(_ context.Context, name, email, _ string) (*razorpay.Customer, error) {
	g.createCustomerCalls++
	id := "cust_stub" + uuid.NewString()[:6]
	g.knownCustomers[id] = true
	return &razorpay.Customer{ID: id, Name: name, Email: email}, nil
}

func (g *stubGateway) FetchCustomer(_ context.Context, customerID string) (*razorpay.Customer, error) {
	if !g.knownCustomers[customerID] {
		return nil, razorpay.ErrNotFound
	}
	return &razorpay.Customer{ID: customerID}, nil
}

func (g *stubGateway) FetchToken(_ context.Context, _, tokenID string) (*razorpay.Token, error) {
	if g.token == nil {
		return nil, razorpay.ErrNotFound
	}
	if g.token.ID != tokenID {
		return nil, razorpay.ErrNotFound
	}
	return g.token, nil
}

func (g *stubGateway) VerifySignature(_, _, _ string) bool {
	return g.verify
}

type testEnv struct {
	db      *gorm.DB
	gateway *stubGateway
	svc     Service
	orders  orders.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Variant{}, &models.CartItem{},
		&models.Coupon{}, &models.Order{}, &models.OrderItem{},
		&models.OrderStatusHistory{}, &models.Setting{},
		&models.SavedCard{}, &models.GatewayCustomer{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})
	gw := newStubGateway()

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
	orderRepo := orders.NewRepository(db)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Tx:            testTx{db: db},
		OrderRepo:     orderRepo,
		CartService:   cartSvc,
		CouponService: couponSvc,
		Ledger:        inventory.NewLedger(db),
		Settings:      settingsSvc,
		Verifier:      gw,
		Logger:        logg,
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Gateway:   gw,
		Repo:      NewRepository(db),
		Orders:    orderSvc,
		OrderRepo: orderRepo,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	return &testEnv{db: db, gateway: gw, svc: svc, orders: orderSvc}
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

func (e *testEnv) seedUser(t *testing.T) models.User {
	t.Helper()
	phone := "+919999999999"
	user := models.User{
		Email: uuid.NewString()[:8] + "@example.in",
		Name:  "Ansh Gupta",
		Phone: &phone,
	}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *testEnv) seedCartedVariant(t *testing.T, userID uuid.UUID, price string, stock, qty int) models.Variant {
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
	if err := e.db.Create(&models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		VariantID: &variant.ID,
		Quantity:  qty,
	}).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
	return variant
}

func (e *testEnv) variantStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var v models.Variant
	if err := e.db.First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return v.StockQty
}

func TestInitiateCreatesAndReusesCustomer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)

	first, err := env.svc.Initiate(ctx, InitiateParams{UserID: user.ID, Amount: dec("1050.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if first.Amount != 105000 {
		t.Fatalf("expected amount in paise 105000, got %d", first.Amount)
	}
	if env.gateway.createCustomerCalls != 1 {
		t.Fatalf("expected one customer creation, got %d", env.gateway.createCustomerCalls)
	}

	if _, err := env.svc.Initiate(ctx, InitiateParams{UserID: user.ID, Amount: dec("200.00")}); err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if env.gateway.createCustomerCalls != 1 {
		t.Fatalf("identity must be reused, got %d creations", env.gateway.createCustomerCalls)
	}

	var mapping models.GatewayCustomer
	if err := env.db.First(&mapping, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if !env.gateway.knownCustomers[mapping.CustomerID] {
		t.Fatal("persisted mapping does not match gateway customer")
	}
}

func TestInitiateSelfHealsVanishedCustomer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)

	// stale mapping the gateway no longer knows
	if err := env.db.Create(&models.GatewayCustomer{
		UserID:     user.ID,
		CustomerID: "cust_gone",
	}).Error; err != nil {
		t.Fatalf("seed stale mapping: %v", err)
	}

	if _, err := env.svc.Initiate(ctx, InitiateParams{UserID: user.ID, Amount: dec("500.00")}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if env.gateway.createCustomerCalls != 1 {
		t.Fatalf("expected recreation, got %d", env.gateway.createCustomerCalls)
	}

	var mapping models.GatewayCustomer
	if err := env.db.First(&mapping, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if mapping.CustomerID == "cust_gone" {
		t.Fatal("stale mapping was not healed")
	}
}

func TestVerifyAndReconcileSuccessIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	variant := env.seedCartedVariant(t, user.ID, "5000.00", 2, 1)

	params := CallbackParams{
		UserID:         user.ID,
		GatewayOrderID: "order_cb1",
		PaymentID:      "pay_cb1",
		Signature:      "sig",
		RawMethod:      "razorpay",
		Address:        testAddress(),
	}

	first, err := env.svc.VerifyAndReconcile(ctx, params)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if first.Status != enums.OrderStatusConfirmed || first.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected confirmed/paid, got %s/%s", first.Status, first.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("expected stock 1 after reconcile, got %d", got)
	}

	second, err := env.svc.VerifyAndReconcile(ctx, params)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a different order: %s vs %s", second.ID, first.ID)
	}
	if !second.TotalAmount.Equal(first.TotalAmount) {
		t.Fatalf("replay changed totals: %s vs %s", second.TotalAmount, first.TotalAmount)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("replay double-decremented stock: %d", got)
	}

	var count int64
	env.db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one order, got %d", count)
	}
}

func TestVerifyAndReconcileSignatureMismatchThenRetry(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	variant := env.seedCartedVariant(t, user.ID, "5000.00", 1, 1)

	env.gateway.verify = false
	params := CallbackParams{
		UserID:         user.ID,
		GatewayOrderID: "order_cb2",
		PaymentID:      "pay_cb2",
		Signature:      "bad",
		Address:        testAddress(),
	}

	order, err := env.svc.VerifyAndReconcile(ctx, params)
	if err == nil {
		t.Fatal("expected signature mismatch error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSignatureMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil {
		t.Fatal("order must be returned alongside the mismatch")
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", order.Status, order.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 1 {
		t.Fatalf("stock must stay untouched on mismatch, got %d", got)
	}

	// the retry with a valid signature completes the same order
	env.gateway.verify = true
	params.Signature = "good"
	retried, err := env.svc.VerifyAndReconcile(ctx, params)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ID != order.ID {
		t.Fatal("retry must resolve to the existing order")
	}
	if retried.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid after retry, got %s", retried.PaymentStatus)
	}
	if got := env.variantStock(t, variant.ID); got != 0 {
		t.Fatalf("expected stock taken on completion, got %d", got)
	}
}

func TestTokenPersistence(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	env.seedCartedVariant(t, user.ID, "1000.00", 5, 1)

	env.gateway.payment = &razorpay.Payment{
		ID:         "pay_tok1",
		OrderID:    "order_tok1",
		Method:     "card",
		Status:     "captured",
		CustomerID: "cust_tok",
		TokenID:    "token_abc",
	}
	env.gateway.token = &razorpay.Token{
		ID:     "token_abc",
		Status: "activated",
		Card:   razorpay.TokenCard{Last4: "4242", Network: "Visa"},
	}

	_, err := env.svc.VerifyAndReconcile(ctx, CallbackParams{
		UserID:         user.ID,
		GatewayOrderID: "order_tok1",
		PaymentID:      "pay_tok1",
		Signature:      "sig",
		Address:        testAddress(),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	cards, err := env.svc.ListSavedCards(ctx, user.ID)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected one saved card, got %d", len(cards))
	}
	card := cards[0]
	if card.TokenID != "token_abc" || !card.Preferred {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.Last4 == nil || *card.Last4 != "4242" {
		t.Fatalf("expected last4 4242, got %v", card.Last4)
	}
}

func TestInactiveTokenIsDiscarded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	env.seedCartedVariant(t, user.ID, "1000.00", 5, 1)

	env.gateway.payment = &razorpay.Payment{
		ID:         "pay_tok2",
		CustomerID: "cust_tok",
		TokenID:    "token_dead",
	}
	env.gateway.token = &razorpay.Token{ID: "token_dead", Status: "deactivated"}

	_, err := env.svc.VerifyAndReconcile(ctx, CallbackParams{
		UserID:         user.ID,
		GatewayOrderID: "order_tok2",
		PaymentID:      "pay_tok2",
		Signature:      "sig",
		Address:        testAddress(),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	cards, err := env.svc.ListSavedCards(ctx, user.ID)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("inactive token must not be persisted, got %d cards", len(cards))
	}
}

func TestSecondTokenDoesNotStealPreference(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	env.seedCartedVariant(t, user.ID, "1000.00", 5, 1)

	existing := models.SavedCard{
		UserID:            user.ID,
		TokenID:           "token_first",
		GatewayCustomerID: "cust_tok",
		Preferred:         true,
	}
	if err := env.db.Create(&existing).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}

	env.gateway.payment = &razorpay.Payment{
		ID:         "pay_tok3",
		CustomerID: "cust_tok",
		TokenID:    "token_second",
	}
	env.gateway.token = &razorpay.Token{ID: "token_second", Status: "active"}

	_, err := env.svc.VerifyAndReconcile(ctx, CallbackParams{
		UserID:         user.ID,
		GatewayOrderID: "order_tok3",
		PaymentID:      "pay_tok3",
		Signature:      "sig",
		Address:        testAddress(),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	cards, err := env.svc.ListSavedCards(ctx, user.ID)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected two cards, got %d", len(cards))
	}
	if cards[0].TokenID != "token_first" || !cards[0].Preferred {
		t.Fatalf("preference stolen: %+v", cards[0])
	}
	if cards[1].Preferred {
		t.Fatal("second token must not be preferred")
	}
}
