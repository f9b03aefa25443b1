// conto-sync is the operator CLI: run a sync for one user right now,
// enqueue a sync request for the worker, or print a month's budget page.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"conto/internal/amqp"
	"conto/internal/cli"
	"conto/internal/config"
	"conto/internal/log"
	"conto/internal/provider"
	"conto/internal/provider/httpsource"
	"conto/internal/provider/memory"
	"conto/internal/services"
	"conto/internal/storage"
	"conto/internal/worker"
)

func main() {
	var (
		userID  = flag.String("user", "", "user id to operate on (required)")
		enqueue = flag.Bool("enqueue", false, "publish a sync request for the worker instead of syncing inline")
		report  = flag.Bool("report", false, "print the budget page for a month instead of syncing")
		month   = flag.Int("month", int(time.Now().Month()), "report month (1-12)")
		year    = flag.Int("year", time.Now().Year(), "report year")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentApp)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: conto-sync -user <id> [-enqueue | -report [-month M -year Y]]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	if *enqueue {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		msg := amqp.NewSyncRequestMessage(*userID)
		if err := client.PublishSyncRequest(ctx, msg); err != nil {
			logger.Error("Failed to publish sync request", log.FieldError, err)
			os.Exit(1)
		}
		fmt.Printf("enqueued sync request %s for user %s\n", msg.RequestID, *userID)
		return
	}

	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	if *report {
		aggregation := services.NewAggregationService(repo)
		budgets := services.NewBudgetService(repo, aggregation)

		page, err := budgets.BudgetPage(ctx, *userID, *month, *year)
		if err != nil {
			logger.Error("Failed to compose budget page", log.FieldError, err)
			os.Exit(1)
		}
		printBudgetPage(*userID, page)
		return
	}

	runInlineSync(ctx, logger, cfg, repo, *userID)
}

func runInlineSync(ctx context.Context, logger *log.Logger, cfg *config.Config, repo *storage.SQLiteRepository, userID string) {
	tokens, err := cfg.ParseProviderTokens()
	if err != nil {
		logger.Error("Failed to parse provider tokens", log.FieldError, err)
		os.Exit(1)
	}
	token, ok := worker.StaticTokens(tokens).AccessToken(userID)
	if !ok {
		logger.Error("No access token configured for user", log.FieldUserID, userID)
		os.Exit(1)
	}

	var source provider.Source
	switch cfg.ProviderBackend {
	case "memory":
		source = memory.NewSource()
	default:
		source = httpsource.New(cfg.ProviderBaseURL)
	}

	labels := map[string]string(nil)
	if cfg.CategoryMapFile != "" {
		labels, err = services.LoadLabelMap(cfg.CategoryMapFile)
		if err != nil {
			logger.Error("Failed to load category map", log.FieldError, err)
			os.Exit(1)
		}
	}

	engine := services.NewSyncEngine(repo, source, services.NewCategoryResolver(repo, labels), services.SyncConfig{
		NotReadyBackoff:     cfg.SyncNotReadyBackoff,
		MaxNotReadyRetries:  cfg.SyncMaxNotReadyRetries,
		TransientBackoff:    cfg.SyncTransientBackoff,
		MaxTransientRetries: cfg.SyncMaxTransientRetries,
	})

	result, err := engine.Sync(ctx, userID, token)
	if err != nil {
		logger.Error("Sync failed", log.FieldError, err, log.FieldUserID, userID)
		os.Exit(1)
	}

	fmt.Printf("sync complete for %s: %d applied, %d duplicates skipped, %d modified, %d removed\n",
		userID, result.Applied, result.SkippedDuplicates, result.Modified, result.Removed)
}

func printBudgetPage(userID string, page services.BudgetPage) {
	fmt.Printf("budget for %s, %04d-%02d\n", userID, page.Year, page.Month)
	fmt.Printf("%-12s %12s %12s %12s %8s\n", "category", "budgeted", "spent", "remaining", "used")
	for _, row := range page.Categories {
		fmt.Printf("%-12d %12s %12s %12s %7.1f%%\n",
			row.CategoryID, row.Budgeted, row.Spent, row.Remaining, row.PercentageUsed)
	}
	fmt.Printf("%-12s %12s %12s %12s %7.1f%%\n", "total",
		page.Summary.TotalBudgeted, page.Summary.TotalSpent,
		page.Summary.TotalRemaining, page.Summary.PercentageUsed)
}
