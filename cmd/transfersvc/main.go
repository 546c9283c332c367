package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/clubmgr/transfer-services/configs"
	"github.com/clubmgr/transfer-services/internal/db"
	nats "github.com/clubmgr/transfer-services/internal/nats"
	"github.com/clubmgr/transfer-services/internal/transfersvc/broker"
	"github.com/clubmgr/transfer-services/internal/transfersvc/handlers"
	"github.com/clubmgr/transfer-services/internal/transfersvc/service"
	"github.com/clubmgr/transfer-services/internal/transfersvc/store"
	"github.com/clubmgr/transfer-services/internal/transfersvc/ws"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "transfer"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	accountStore := store.NewAccountStore(dbpool)
	ledgerService := service.NewLedgerService(accountStore)

	rosterStore := store.NewRosterStore(dbpool)
	rosterService := service.NewRosterService(rosterStore)

	bidStore := store.NewBidStore(dbpool)
	settlementStore := store.NewSettlementStore(dbpool)
	negotiationService := service.NewNegotiationService(bidStore, rosterStore, settlementStore)

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// bid transition events for the notification service and dashboards
	b := broker.NewBroker(n.Conn)
	negotiationService.WithEvents(b)

	// transfer audit log, optional
	var auditReader handlers.AuditReader
	if os.Getenv("MONGODB_URI") != "" {
		mongoDB, cancelMongo, err := db.ConnectMongo()
		if err != nil {
			log.Fatalf("Failed to connect to mongo: %v", err)
		}
		defer cancelMongo()

		auditStore := store.NewAuditStore(mongoDB)
		negotiationService.WithAudit(auditStore)
		auditReader = auditStore
		log.Printf("mongo connection established successfully")
	} else {
		log.Warn("MONGODB_URI not set, transfer log disabled")
	}

	// live event stream for admin dashboards
	hub := ws.NewHub(n.Conn)
	sub, err := hub.Subscribe(broker.TopicEvents)
	if err != nil {
		log.Errorf("Error: unable to subscribe to events topic %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(negotiationService, ledgerService, rosterService, auditReader, hub)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("TRANSFER_SERVICE_PORT"),
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
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
