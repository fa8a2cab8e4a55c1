package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/loyalty-services/configs"
	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/nats"
	"github.com/avvvet/loyalty-services/internal/telemetry"

	"github.com/avvvet/loyalty-services/internal/socketsvc/broker"
	"github.com/avvvet/loyalty-services/internal/socketsvc/routes"
	"github.com/avvvet/loyalty-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.ConfigFromEnv(SERVICE_NAME+"svc"))
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	trusted, err := config.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		log.Fatalf("Invalid TRUSTED_PROXIES value: %v", err)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(config.TrustedRealIP(trusted))
	r.Use(telemetry.Middleware(SERVICE_NAME))
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := 120
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if rateLimit, err = strconv.Atoi(v); err != nil {
			log.Fatalf("Invalid RATE_LIMIT value: %v", err)
		}
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Initialize websocket handler
	s := ws.NewWs()

	// Initialize routes
	routes.InitAuth(os.Getenv("JWT_SECRET_KEY"))
	routes.SetRoutes(r, s)

	// relay card updates from the loyalty service to watching sockets
	b := broker.NewBroker(n.Conn, s.Send, s.GetRoomSockets)
	sub, err := b.Subscribe(comm.TopicCardUpdated)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.TopicCardUpdated, err)
	}

	port := os.Getenv("SOCKET_SERVICE_PORT")
	if port == "" {
		port = "8081"
	}

	// no write timeout: websocket connections are long lived
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown failed: %+v", SERVICE_NAME, err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Errorf("flushing traces: %v", err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
