// Package main is the entry point for the grain marketing decision engine.
// It wires the cost, position and market modules into the signal generation
// service, runs the accumulator sweep and signal lifecycle on cron schedules,
// and serves the read/acknowledgement API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/grainflow/grainflow/internal/clients/feed"
	"github.com/grainflow/grainflow/internal/config"
	"github.com/grainflow/grainflow/internal/database"
	"github.com/grainflow/grainflow/internal/modules/accumulators"
	"github.com/grainflow/grainflow/internal/modules/costs"
	"github.com/grainflow/grainflow/internal/modules/market"
	"github.com/grainflow/grainflow/internal/modules/positions"
	"github.com/grainflow/grainflow/internal/modules/preferences"
	"github.com/grainflow/grainflow/internal/modules/signals"
	"github.com/grainflow/grainflow/internal/modules/signals/evaluators"
	"github.com/grainflow/grainflow/internal/reliability"
	"github.com/grainflow/grainflow/internal/scheduler"
	"github.com/grainflow/grainflow/internal/server"
	"github.com/grainflow/grainflow/pkg/logger"
)

const marketCacheTTL = 15 * time.Minute

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

	log.Info().Msg("Starting grainflow")

	// Databases. Operations holds the cost and position inputs, signals and
	// contracts are the audit-trail ledgers, cache holds ephemeral snapshots
	// and job history.
	operationsDB := mustOpen(log, cfg.DataDir, "operations", database.ProfileStandard)
	defer operationsDB.Close()
	signalsDB := mustOpen(log, cfg.DataDir, "signals", database.ProfileLedger)
	defer signalsDB.Close()
	contractsDB := mustOpen(log, cfg.DataDir, "contracts", database.ProfileLedger)
	defer contractsDB.Close()
	cacheDB := mustOpen(log, cfg.DataDir, "cache", database.ProfileCache)
	defer cacheDB.Close()

	allDBs := []*database.DB{operationsDB, signalsDB, contractsDB, cacheDB}

	// Repositories
	costsRepo := costs.NewRepository(operationsDB.Conn(), log)
	positionsRepo := positions.NewRepository(operationsDB.Conn(), log)
	prefsRepo := preferences.NewRepository(operationsDB.Conn(), log)
	signalsRepo := signals.NewRepository(signalsDB.Conn(), log)
	accumulatorsRepo := accumulators.NewRepository(contractsDB.Conn(), log)

	// Core calculators
	aggregator := costs.NewAggregator(costsRepo, log)
	tracker := positions.NewTracker(log)

	// Market feeds
	feedClient := feed.NewClient(cfg.FeedBaseURL, cfg.FeedAPIKey, log)
	marketCache := market.NewCache(cacheDB.Conn(), marketCacheTTL, log)
	assembler := market.NewAssembler(feedClient, feedClient, feed.SeasonalSource{}, feedClient, marketCache, log)

	// Services
	registry := evaluators.NewRegistry(log)
	signalService := signals.NewService(
		assembler, costsRepo, aggregator, positionsRepo, tracker,
		prefsRepo, signalsRepo, registry, log,
	)
	accumulatorService := accumulators.NewService(accumulatorsRepo, feedClient, log)

	// Scheduler and jobs
	sched := scheduler.New(cacheDB.Conn(), log)
	mustRegister(log, sched, cfg.Schedules.GenerateSignals, scheduler.NewGenerateSignalsJob(signalService))
	mustRegister(log, sched, cfg.Schedules.ExpireSignals, scheduler.NewExpireSignalsJob(signalsRepo))
	mustRegister(log, sched, cfg.Schedules.AccumulatorSweep, scheduler.NewAccumulatorSweepJob(accumulatorService))

	if cfg.Backup.Bucket != "" {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup storage client")
		}
		backupService := reliability.NewBackupService(s3Client, allDBs, cfg.DataDir, cfg.Backup.RetainCount, log)
		mustRegister(log, sched, cfg.Schedules.Backup, scheduler.NewBackupJob(backupService))
	} else {
		log.Info().Msg("No backup bucket configured, backups disabled")
	}

	sched.Start()
	defer sched.Stop()

	// Streaming settlement quotes keep the market cache fresh between
	// scheduled passes. Optional.
	if cfg.FeedWSURL != "" {
		stream := feed.NewQuoteStream(cfg.FeedWSURL, cfg.FeedAPIKey, marketCache, log)
		stream.Start()
		defer stream.Stop()
	}

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Databases:    allDBs,
		Signals:      signalsRepo,
		Accumulators: accumulatorsRepo,
		Jobs:         sched,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("grainflow started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("grainflow stopped")
}

func mustOpen(log zerolog.Logger, dataDir, name string, profile database.DatabaseProfile) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
	}
	return db
}

func mustRegister(log zerolog.Logger, s *scheduler.Scheduler, spec string, job scheduler.Job) {
	if err := s.Register(spec, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
