// Package main is the entry point for the Pelorus investment signal service.
// It assembles point-in-time market data from fallback providers, scores it,
// produces investment signals with risk assessments and capital allocations,
// and serves the results over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pelorusfin/pelorus/internal/allocation"
	"github.com/pelorusfin/pelorus/internal/analysis"
	"github.com/pelorusfin/pelorus/internal/assembler"
	"github.com/pelorusfin/pelorus/internal/clientdata"
	"github.com/pelorusfin/pelorus/internal/clients/alphavantage"
	"github.com/pelorusfin/pelorus/internal/clients/stooq"
	"github.com/pelorusfin/pelorus/internal/clients/yahoo"
	"github.com/pelorusfin/pelorus/internal/config"
	"github.com/pelorusfin/pelorus/internal/database"
	"github.com/pelorusfin/pelorus/internal/pipeline"
	"github.com/pelorusfin/pelorus/internal/providers"
	"github.com/pelorusfin/pelorus/internal/reliability"
	"github.com/pelorusfin/pelorus/internal/risk"
	"github.com/pelorusfin/pelorus/internal/scheduler"
	"github.com/pelorusfin/pelorus/internal/server"
	signalpkg "github.com/pelorusfin/pelorus/internal/signal"
	"github.com/pelorusfin/pelorus/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting pelorus")

	// Durable signal/price storage and the ephemeral provider payload cache
	// live in separate databases with different pragma profiles.
	signalsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "signals.db"),
		Profile: database.ProfileStandard,
		Name:    "signals",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open signals database")
	}
	defer signalsDB.Close()

	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open client data database")
	}
	defer clientDataDB.Close()

	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	if err := cacheRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize client data schema")
	}

	signalRepo := signalpkg.NewRepository(signalsDB.Conn(), log)
	if err := signalRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize signal schema")
	}

	// Providers in priority order. Yahoo first (no key required, broadest
	// coverage), Alpha Vantage for fundamentals and news, Stooq as the
	// price fallback of last resort.
	router := providers.NewRouter([]providers.Provider{
		yahoo.NewClient(cacheRepo, log),
		alphavantage.NewClient(cfg.AlphaVantageAPIKey, cacheRepo, log),
		stooq.NewClient(log),
	}, log)

	assessor := risk.NewAssessor(risk.Config{
		VolatilityHighPct:       cfg.VolatilityHighPct,
		VolatilityVeryHighPct:   cfg.VolatilityVeryHighPct,
		IlliquidityThresholdEUR: cfg.IlliquidityThresholdEUR,
	})

	runner := pipeline.NewRunner(
		assembler.New(router, log),
		analysis.NewAnalyzer(log),
		signalpkg.NewCreator(signalRepo, router, assessor, log),
		allocation.NewEngine(allocation.Config{
			TotalCapitalEUR: cfg.TotalCapitalEUR,
			MaxPositionPct:  cfg.MaxPositionPct,
			MaxSectorPct:    cfg.MaxSectorPct,
		}, log),
		signalRepo,
		cfg.Universe,
		log,
	)
	pipelineJob := pipeline.NewJob(runner, nil, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(scheduler.ScheduleDailyAnalysis, pipelineJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register analysis job")
	}
	if err := sched.AddJob(scheduler.ScheduleCacheCleanup, clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register cleanup job")
	}

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Bucket:          cfg.Backup.Bucket,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create backup client")
		}
		backupService := reliability.NewBackupService(s3Client, cfg.DataDir, cfg.Backup.RetainCount, log)
		if err := sched.AddJob(scheduler.ScheduleWeeklyBackup, reliability.NewBackupJob(backupService)); err != nil {
			log.Fatal().Err(err).Msg("failed to register backup job")
		}
	} else {
		log.Info().Msg("backups disabled")
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Log:       log,
		Signals:   signalRepo,
		Providers: router,
		Trigger:   pipelineJob,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}
	log.Info().Msg("stopped")
}
