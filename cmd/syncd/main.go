package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/service"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("market-sync")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}
	if cfg.LogToFile {
		log = logger.NewFileLogger("market-sync")
	}

	backend := adapter.NewHTTPBackend(cfg.Backend, log)
	reach := adapter.NewPollingReachability(cfg.Backend, log)

	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storages")
	}

	services := service.NewServices(*storages, backend, reach, *cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reach.Start(ctx)
	defer reach.Stop()

	background := workers.NewWorkers(services.SyncJob)
	background.Run()
	defer services.SyncJob.Stop()

	log.Info().Str("backend", cfg.Backend.BaseURL).Msg("sync engine running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
