package main

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vendora/marketplace/config"
	"github.com/vendora/marketplace/internal/auth"
	"github.com/vendora/marketplace/internal/events"
	"github.com/vendora/marketplace/internal/gateway"
	handler "github.com/vendora/marketplace/internal/handler/http"
	"github.com/vendora/marketplace/internal/logger"
	"github.com/vendora/marketplace/internal/middleware"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/repository"
	"github.com/vendora/marketplace/internal/repository/postgres"
	"github.com/vendora/marketplace/internal/service"
	"github.com/vendora/marketplace/internal/worker"
)

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Log.Sync()

	// create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Log.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	if err := db.Migrate(); err != nil {
		logger.Log.Fatal("Error migrating database", zap.Error(err))
	}

	tokenKey, err := hex.DecodeString(cfg.AuthTokenKey)
	if err != nil {
		logger.Log.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	// event publisher is optional, nil publisher is a no-op
	publisher, err := events.NewPublisher(cfg.KafkaBroker, cfg.EventsTopic, logger.Log)
	if err != nil {
		logger.Log.Fatal("Error connecting event broker", zap.Error(err))
	}
	defer publisher.Close()

	gatewayClient := gateway.NewClient(cfg.GatewayAddr)

	// dependency injection
	// coupon
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	couponService := service.NewCouponService(couponRepo, orderRepo)
	couponHandler := handler.NewCouponHandler(couponService)

	// order
	orderService := service.NewOrderService(orderRepo, couponService, publisher, cfg.TaxRate, cfg.PlatformFeeRate)
	orderHandler := handler.NewOrderHandler(orderService)

	// payment
	txnRepo := repository.NewTransactionRepository(db)
	paymentService := service.NewPaymentService(txnRepo, orderRepo, couponService, gatewayClient, publisher, cfg.CommissionRate, cfg.Currency)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// payout
	payoutRepo := repository.NewPayoutRepository(db)
	payoutService := service.NewPayoutService(payoutRepo, txnRepo, publisher)
	payoutHandler := handler.NewPayoutHandler(payoutService)

	// background workers
	sweeper := worker.NewPaymentSweeper(paymentService, cfg.SweepInterval, cfg.PendingPaymentTTL)
	go sweeper.Run(ctx)

	scheduler := worker.NewPayoutScheduler(payoutService, cfg.PayoutCycle)
	go scheduler.Run(ctx)

	router := chi.NewRouter()

	router.Use(middleware.Logging(logger.Log))
	router.Use(middleware.Metrics())

	router.Handle("/metrics", promhttp.Handler())

	// gateway callbacks carry their own validation token
	router.Post("/api/payments/webhook", paymentHandler.Webhook())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(handler.AuthMiddleware(token))

		group.Post("/api/orders", orderHandler.CreateOrder())
		group.Get("/api/orders", orderHandler.ListOrders())
		group.Get("/api/orders/{number}", orderHandler.GetOrder())
		group.Post("/api/orders/{number}/cancel", orderHandler.CancelOrder())
		group.Post("/api/orders/{number}/reschedule", orderHandler.RescheduleOrder())
		group.Get("/api/orders/{number}/reschedules", orderHandler.ListReschedules())

		group.Post("/api/coupons/validate", couponHandler.ValidateCoupon())
		group.Get("/api/coupons", couponHandler.ListCoupons())

		group.Post("/api/payments", paymentHandler.InitiatePayment())
		group.Get("/api/payments/{number}", paymentHandler.GetTransaction())

		group.Group(func(vendor chi.Router) {
			vendor.Use(handler.RequireRole(models.RoleVendor, models.RoleAdmin))
			vendor.Post("/api/orders/{number}/accept", orderHandler.AcceptOrder())
			vendor.Post("/api/orders/{number}/reject", orderHandler.RejectOrder())
			vendor.Post("/api/orders/{number}/start", orderHandler.StartOrder())
			vendor.Post("/api/orders/{number}/complete", orderHandler.CompleteOrder())
			vendor.Post("/api/payments/{number}/refund", paymentHandler.Refund())
			vendor.Post("/api/payouts", payoutHandler.BuildPayout())
			vendor.Get("/api/payouts", payoutHandler.ListPayouts())
			vendor.Get("/api/payouts/{number}", payoutHandler.GetPayout())
		})

		group.Group(func(admin chi.Router) {
			admin.Use(handler.RequireRole(models.RoleAdmin))
			admin.Post("/api/coupons", couponHandler.CreateCoupon())
			admin.Post("/api/payouts/run", payoutHandler.RunCycle())
			admin.Post("/api/payouts/{number}/process", payoutHandler.Process())
			admin.Post("/api/payouts/{number}/complete", payoutHandler.Complete())
			admin.Post("/api/payouts/{number}/fail", payoutHandler.Fail())
			admin.Post("/api/payouts/{number}/cancel", payoutHandler.Cancel())
		})
	})

	logger.Log.Info("Running server", zap.String("addr", cfg.ServerAddr))

	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		logger.Log.Fatal("Error starting server", zap.Error(err))
	}
}
