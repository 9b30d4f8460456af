// Package main is the entry point for the share pool engine: a fixed-supply
// investment pool where users buy units, hold them to maturity, and sell
// them back to the platform at a guaranteed markup.
//
// Startup sequence:
// 1. Load configuration from environment variables (.env supported)
// 2. Initialize structured logging
// 3. Open the SQLite database and apply the schema
// 4. Seed the pool counters (idempotent, first boot only)
// 5. Wire repositories, services, and HTTP handlers
// 6. Start the scheduler and HTTP server
// 7. Wait for SIGINT/SIGTERM and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/sharepool/internal/clock"
	"github.com/aristath/sharepool/internal/config"
	"github.com/aristath/sharepool/internal/database"
	"github.com/aristath/sharepool/internal/modules/admin"
	adminhandlers "github.com/aristath/sharepool/internal/modules/admin/handlers"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pool"
	poolhandlers "github.com/aristath/sharepool/internal/modules/pool/handlers"
	"github.com/aristath/sharepool/internal/modules/trading"
	tradinghandlers "github.com/aristath/sharepool/internal/modules/trading/handlers"
	"github.com/aristath/sharepool/internal/scheduler"
	"github.com/aristath/sharepool/internal/server"
	"github.com/aristath/sharepool/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting share pool engine")

	// The ledger profile runs synchronous=FULL: this database is the
	// financial source of truth and must survive power loss intact.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "pool.db"),
		Profile: database.ProfileLedger,
		Name:    "pool",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Repositories
	poolRepo := pool.NewRepository(db.Conn(), log)
	lotRepo := ledger.NewLotRepository(db.Conn(), log)
	txnRepo := ledger.NewTransactionRepository(db.Conn(), log)
	userRepo := admin.NewUserRepository(db.Conn(), log)

	// First boot seeds the pool counters; later boots leave them untouched.
	if err := poolRepo.Seed(cfg.TotalShares, cfg.DefaultSharePrice); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed pool settings")
	}

	// Grant the configured bootstrap admin. Every later grant goes through
	// the admin API; this is only the way in for the first one.
	if cfg.BootstrapAdminID != "" {
		if err := userRepo.Ensure(cfg.BootstrapAdminID, ""); err != nil {
			log.Fatal().Err(err).Msg("Failed to create bootstrap admin profile")
		}
		if _, err := userRepo.SetAdmin(cfg.BootstrapAdminID, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to grant bootstrap admin")
		}
	}

	// Services
	tradingService := trading.NewService(
		db.Conn(), poolRepo, lotRepo, txnRepo,
		clock.System(), cfg.DailyCap, log,
	)
	adminService := admin.NewService(userRepo, poolRepo, lotRepo, txnRepo, log)

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		DB:              db,
		Config:          cfg,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		Users:           userRepo,
		TradingHandlers: tradinghandlers.NewTradingHandlers(tradingService, log),
		PoolHandlers:    poolhandlers.NewPoolHandlers(poolRepo, log),
		AdminHandlers:   adminhandlers.NewAdminHandlers(adminService, log),
	})

	// Background maintenance
	sched := scheduler.New(log)
	if err := sched.AddJob("0 15 * * * *", scheduler.NewWALCheckpointJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	if err := sched.AddJob("@hourly", scheduler.NewPoolStatusJob(poolRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register pool status job")
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
