package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Sismei/CreamCurrency/internal/api/httpapi"
	"github.com/Sismei/CreamCurrency/internal/audit"
	"github.com/Sismei/CreamCurrency/internal/config"
	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/economy"
	"github.com/Sismei/CreamCurrency/internal/jobs"
	"github.com/Sismei/CreamCurrency/internal/ledger"
	"github.com/Sismei/CreamCurrency/internal/logger"
	"github.com/Sismei/CreamCurrency/internal/placeholder"
	"github.com/Sismei/CreamCurrency/internal/repository/sqlstore"
	"github.com/Sismei/CreamCurrency/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting CreamCurrency ledger service...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "type", cfg.Database.Type)

	// Initialize Database
	db, err := sql.Open(cfg.DriverName(), cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	dialect := sqlstore.SQLite
	if cfg.Database.Type == "postgres" {
		dialect = sqlstore.Postgres
	}
	store := sqlstore.NewStore(db, dialect)

	// Load currency definitions
	currencies := currency.NewManager(cfg.Currencies.Dir, cfg.Currencies.Primary)
	if err := currencies.Reload(); err != nil {
		logger.Error("Failed to load currencies", "error", err)
		log.Fatalf("Failed to load currencies: %v", err)
	}

	// Initialize Ledger
	ledgerTTL := time.Duration(cfg.Cache.LeaderboardTTLSeconds) * time.Second
	ldg := ledger.New(store.BalanceRepository, store.SettingsRepository, currencies, ledgerTTL)
	defer ldg.Close()

	// Initialize Audit Sink
	var sink audit.Sink = audit.NopSink{}
	if cfg.Audit.Enabled {
		fileSink, err := audit.NewFileSink(cfg.Audit.Dir)
		if err != nil {
			logger.Error("Failed to initialize audit sink", "error", err)
			log.Fatalf("Failed to initialize audit sink: %v", err)
		}
		sink = fileSink
	}
	defer sink.Close()

	// Initialize Services
	eco := economy.NewService(ldg, currencies, sink)
	resolver := placeholder.NewResolver(ldg, currencies)

	// Initialize HTTP handlers
	handler := httpapi.NewHandler(ldg, currencies, eco, resolver, sink)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// Start Scheduler
	runner := jobs.NewRunner(ldg, currencies)
	sched := scheduler.New(runner, cfg.Scheduler)
	sched.Start()
	defer sched.Stop()

	// Set up HTTP server
	server := &http.Server{
		Addr:    cfg.GetServerAddress(),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Block until asked to shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	if err := server.Close(); err != nil {
		logger.Error("Failed to close HTTP server", "error", err)
	}
}
