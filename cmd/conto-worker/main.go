package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"conto/internal/amqp"
	"conto/internal/cache"
	"conto/internal/cli"
	"conto/internal/log"
	"conto/internal/provider"
	"conto/internal/provider/httpsource"
	"conto/internal/provider/memory"
	"conto/internal/services"
	"conto/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentWorker)

	logger.Info("Starting conto-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	tokenTable, err := cfg.ParseProviderTokens()
	if err != nil {
		logger.Error("Failed to parse provider tokens", log.FieldError, err)
		os.Exit(1)
	}
	tokens := worker.StaticTokens(tokenTable)
	if len(tokens) == 0 {
		logger.Warn("No provider tokens configured, sync requests will be dropped")
	}

	var source provider.Source
	switch cfg.ProviderBackend {
	case "memory":
		source = memory.NewSource()
		logger.Info("Using in-memory provider source")
	default:
		source = httpsource.New(cfg.ProviderBaseURL)
		logger.Info("Using HTTP provider source", "base_url", cfg.ProviderBaseURL)
	}

	labels := map[string]string(nil)
	if cfg.CategoryMapFile != "" {
		labels, err = services.LoadLabelMap(cfg.CategoryMapFile)
		if err != nil {
			logger.Error("Failed to load category map", log.FieldError, err, "path", cfg.CategoryMapFile)
			os.Exit(1)
		}
		logger.Info("Loaded category map", "path", cfg.CategoryMapFile, "labels", len(labels))
	}
	resolver := services.NewCategoryResolver(repo, labels)

	syncConfig := services.SyncConfig{
		NotReadyBackoff:     cfg.SyncNotReadyBackoff,
		MaxNotReadyRetries:  cfg.SyncMaxNotReadyRetries,
		TransientBackoff:    cfg.SyncTransientBackoff,
		MaxTransientRetries: cfg.SyncMaxTransientRetries,
	}
	engine := services.NewSyncEngine(repo, source, resolver, syncConfig)

	aggregation := services.NewAggregationService(repo)
	budgets := services.NewBudgetService(repo, aggregation)

	cacheManager := cache.NewManager()
	cacheManager.Register(budgets.PageCache())
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	syncWorker := worker.NewSyncWorker(engine, tokens)

	scheduler := worker.NewRefreshScheduler(engine, tokens, worker.RefreshSchedulerConfig{
		Interval: cfg.SyncInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start refresh scheduler", log.FieldError, err)
		os.Exit(1)
	}
	defer scheduler.Stop(context.Background())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		handler := func(msg *amqp.SyncRequestMessage) error {
			if err := syncWorker.HandleSyncRequest(groupCtx, msg); err != nil {
				return err
			}
			// Log the fresh month view so operators see the effect of each
			// sync without querying.
			now := time.Now()
			page, err := budgets.BudgetPage(groupCtx, msg.UserID, int(now.Month()), now.Year())
			if err != nil {
				logger.WarnContext(groupCtx, "Failed to compose month snapshot", log.FieldError, err)
				return nil
			}
			logger.InfoContext(groupCtx, "Month snapshot after sync",
				log.FieldUserID, msg.UserID,
				log.FieldMonth, page.Month,
				log.FieldYear, page.Year,
				"total_spent_cents", page.Summary.TotalSpent.Cents,
				"total_budgeted_cents", page.Summary.TotalBudgeted.Cents)
			return nil
		}
		return amqp.ConsumeWithReconnect(groupCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, handler)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("conto-worker stopped")
}
