package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tickethub/config"
	"tickethub/internal/handlers"
	"tickethub/internal/inventory"
	"tickethub/internal/payment/daraja"
	"tickethub/internal/repo"
	"tickethub/internal/services"
	"tickethub/monitoring"
	"tickethub/security"
	"tickethub/utils"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUUID))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey

	pn := pubnub.NewPubNub(pnConfig)

	// Initialize the payment gateway client
	gateway := daraja.NewClient(&cfg.Daraja)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	store := repo.NewStore(app)
	ledger := inventory.NewLedger(store.Events, store.Tickets, redisClient)
	issuer := services.NewTicketIssuer(store)
	commission := services.NewCommissionEngine(store)
	dispatcher := services.NewRedisDispatcher(redisClient, pn, cfg.NotifyQueueKey)
	orderService := services.NewOrderService(store, ledger, gateway, cfg.Daraja.PushTimeout)
	callbackProcessor := services.NewCallbackProcessor(store, issuer, commission, dispatcher)
	gateService := services.NewGateService(store)

	notifyWorker := services.NewNotifyWorker(redisClient, services.LogMailer{}, store.Audit, cfg.NotifyQueueKey)

	// Initialize handlers
	orderHandler := handlers.NewOrderHandler(orderService)
	callbackHandler := handlers.NewCallbackHandler(callbackProcessor)
	ticketHandler := handlers.NewTicketHandler(gateService)
	affiliateHandler := handlers.NewAffiliateHandler(store)
	eventHandler := handlers.NewEventHandler(store, ledger)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.OrderRateLimit, cfg.OrderRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go notifyWorker.Run(ctx)
	go monitoring.CollectSystemMetrics(ctx)

	if cfg.EnableMetrics {
		go startOpsServer(cfg)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Event endpoints
		e.Router.GET("/api/v1/events/{eventId}", eventHandler.GetEvent)

		// Order endpoints
		e.Router.POST("/api/v1/orders", orderHandler.CreateOrder).BindFunc(rateLimiter.OrderRateLimit())
		e.Router.GET("/api/v1/orders/{orderId}", orderHandler.GetOrder)

		// Payment gateway webhook
		e.Router.POST("/api/v1/payments/mpesa/callback", callbackHandler.HandleCallback)

		// Gate validation
		e.Router.POST("/api/v1/tickets/validate", ticketHandler.ValidateTicket)

		// Affiliate reporting
		e.Router.GET("/api/v1/affiliates/{code}/sales", affiliateHandler.ListSales)

		// Requeue failed ticket deliveries
		e.Router.POST("/api/v1/notifications/requeue", func(e *core.RequestEvent) error {
			n, err := notifyWorker.RequeueFailed(e.Request.Context())
			if err != nil {
				return apis.NewInternalServerError("requeue failed", err)
			}
			return e.JSON(200, map[string]int{"requeued": n})
		})

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func newOpsServer() *echo.Echo {
	e := echo.New()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}

// startOpsServer exposes prometheus metrics and a liveness probe on a
// separate port, away from the public API.
func startOpsServer(cfg *config.Config) {
	addr := ":" + cfg.MetricsPort
	slog.Info("ops server listening", "addr", addr)

	sc := echo.StartConfig{Address: addr, HideBanner: true}
	if err := sc.Start(newOpsServer()); err != nil && err != http.ErrServerClosed {
		slog.Error("ops server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
