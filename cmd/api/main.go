package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anshgupta/storekart-backend/api/routes"
	"github.com/anshgupta/storekart-backend/internal/cart"
	"github.com/anshgupta/storekart-backend/internal/coupons"
	"github.com/anshgupta/storekart-backend/internal/inventory"
	"github.com/anshgupta/storekart-backend/internal/notifications"
	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/internal/payments"
	"github.com/anshgupta/storekart-backend/internal/products"
	"github.com/anshgupta/storekart-backend/internal/returns"
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/config"
	"github.com/anshgupta/storekart-backend/pkg/db"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/metrics"
	"github.com/anshgupta/storekart-backend/pkg/migrate"
	"github.com/anshgupta/storekart-backend/pkg/razorpay"
	"github.com/anshgupta/storekart-backend/pkg/redis"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	collectors := metrics.New(nil)
	gdb := dbClient.DB()

	settingsSvc, err := settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(gdb),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cart.ServiceParams{
		CartRepo:    cart.NewRepository(gdb),
		ProductRepo: products.NewRepository(gdb),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	couponSvc, err := coupons.NewService(coupons.ServiceParams{
		Repo: coupons.NewRepository(gdb),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	paymentRepo := payments.NewRepository(gdb)

	var notifier notifications.Service
	if cfg.SMTP.Host != "" {
		sender, err := notifications.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logg.Error(context.Background(), "failed to create smtp sender", err)
			os.Exit(1)
		}
		notifier, err = notifications.NewService(notifications.ServiceParams{
			Sender: sender,
			Users:  paymentRepo,
			Logger: logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create notification service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "smtp not configured, order confirmation emails disabled")
	}

	orderRepo := orders.NewRepository(gdb)
	orderParams := orders.ServiceParams{
		Tx:            dbClient,
		OrderRepo:     orderRepo,
		CartService:   cartSvc,
		CouponService: couponSvc,
		Ledger:        inventory.NewLedger(gdb),
		Settings:      settingsSvc,
		Verifier:      gateway,
		Logger:        logg,
		Metrics:       collectors,
	}
	if notifier != nil {
		orderParams.Notifier = notifier
	}
	orderSvc, err := orders.NewService(orderParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Gateway:     gateway,
		Repo:        paymentRepo,
		Orders:      orderSvc,
		OrderRepo:   orderRepo,
		Logger:      logg,
		Idempotency: redisClient,
		Metrics:     collectors,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	returnSvc, err := returns.NewService(returns.ServiceParams{
		Repo:      returns.NewRepository(gdb),
		OrderRepo: orderRepo,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Cart:     cartSvc,
			Orders:   orderSvc,
			Payments: paymentSvc,
			Returns:  returnSvc,
			Settings: settingsSvc,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
		if notifier != nil {
			notifier.Wait()
		}
	}
}
