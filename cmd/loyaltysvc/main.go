package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/loyalty-services/configs"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/auth"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/broker"
	loyaltyconfig "github.com/avvvet/loyalty-services/internal/loyaltysvc/config"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/handlers"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/service"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/backend"
	nats "github.com/avvvet/loyalty-services/internal/nats"
	"github.com/avvvet/loyalty-services/internal/telemetry"
)

const SERVICE_NAME = "loyalty"

var instanceId string

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg, err := loyaltyconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv(SERVICE_NAME+"svc"))
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	log.Printf("%s store connection established successfully", cfg.StoreBackend)

	// PIN attempt counters live in redis when configured so every instance shares them
	var attempts auth.AttemptStore
	if cfg.RedisURL != "" {
		rdb, err := auth.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		attempts = auth.NewRedisAttemptStore(rdb)
		log.Printf("redis attempt store ready")
	}

	guard := auth.NewGuard(auth.GuardConfig{
		Secret:      []byte(cfg.AdminHmacKey),
		MaxAttempts: cfg.PinMaxAttempts,
		Window:      cfg.PinWindow,
		Admin:       st.AdminConfig(),
		Attempts:    attempts,
	})

	// card updates reach the socket service through NATS; without it the
	// service still works, customers just refresh their card page
	var notifier service.Notifier
	n, err := nats.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Warnf("unable to connect to NATS server, live card updates disabled: %v", err)
	} else {
		defer n.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		notifier = broker.NewBroker(n.Conn)
	}

	cardService := service.NewCardService(st, notifier, cfg.DefaultMaxStamps)
	customerService := service.NewCustomerService(st, cfg.DefaultMaxStamps)
	menuService := service.NewMenuService(st.Menu())
	analyticsService := service.NewAnalyticsService(st, cfg.Location)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(config.TrustedRealIP(cfg.TrustedProxies))
	r.Use(telemetry.Middleware(SERVICE_NAME))
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cardService, customerService, menuService, analyticsService, guard, cfg.PublicOrigin)
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET_KEY is empty, service token is not secret")
	}
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service shutdown failed: %+v", SERVICE_NAME, err)
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Errorf("closing store: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Errorf("flushing traces: %v", err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
