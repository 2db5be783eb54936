package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/screwyprof/pledger/pkg/ledger"
	"github.com/screwyprof/pledger/pkg/logger"
	"github.com/screwyprof/pledger/pkg/pgxdb"
	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/ownercache"
	donationstore "github.com/screwyprof/pledger/reconciler/store/pgxstore"
	"github.com/screwyprof/pledger/scraper"
	"github.com/screwyprof/pledger/scraper/config"
	"github.com/screwyprof/pledger/scraper/store/pgxstore"
)

func main() {
	// Load configuration
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
		Service:          "scraper",
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL, pgxdb.WithMaxConns(cfg.DatabaseMaxConns))
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Stores share the pool, which is closed above
	checkpoints, _ := pgxstore.New(db)
	donations, _ := donationstore.New(db)

	// HTTP client & ledger client
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	var clientOpts []ledger.Option
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, ledger.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	ledgerClient := ledger.NewClient(httpClient, cfg.LedgerAPIURL, clientOpts...)
	gateway := scraper.NewGateway(ledgerClient)

	// Reconciler
	owners := ownercache.New(donations, cfg.OwnerCacheTTL)
	rec := reconciler.New(
		gateway,
		gateway,
		owners,
		donations,
		reconciler.WithGenesisRetry(reconciler.RetryPolicy{
			Attempts: cfg.GenesisAttempts,
			Delay:    cfg.GenesisRetryDelay,
		}),
		reconciler.WithBlockCacheSize(cfg.BlockCacheSize),
		reconciler.WithLogger(log),
	)

	// Create scraper service
	scraperService := scraper.NewService(
		ledgerClient,
		rec,
		checkpoints,
		scraper.WithChunkSize(cfg.ChunkSize),
		scraper.WithPollInterval(cfg.PollInterval),
	)

	// Start service
	log.InfoContext(ctx, "Starting transfer scraper service",
		slog.Uint64("chunkSize", cfg.ChunkSize),
		slog.String("ledgerAPI", cfg.LedgerAPIURL),
	)
	events, done := scraperService.Start(ctx)

	// Subscribe to events for logging
	subCloser := setupEventLogging(ctx, events, log)
	defer subCloser()

	// Wait for shutdown
	<-done

	// Scheduled genesis retries outlive the scraper loop
	log.InfoContext(ctx, "Waiting for scheduled retries")
	rec.Wait()

	if pending := rec.PendingNotes(); len(pending) > 0 {
		log.WarnContext(ctx, "Transfers still parked at shutdown", slog.Int("notes", len(pending)))
	}
	log.DebugContext(ctx, "Owner cache at shutdown", slog.Int("cachedOwners", owners.Len()))
	log.InfoContext(ctx, "Scraper service stopped gracefully")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan scraper.Event, log *slog.Logger) func() {
	return scraper.NewSubscriber(events,
		scraper.OnBackfillStarted(func(event scraper.BackfillStarted) {
			log.InfoContext(ctx, "Backfill started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Int64("checkpointID", event.CheckpointID),
			)
		}),
		scraper.OnBackfillSyncCompleted(func(event scraper.BackfillSyncCompleted) {
			log.InfoContext(ctx, "Backfill batch completed",
				slog.Int("fetched", event.Fetched),
				slog.Int64("checkpointID", event.CheckpointID),
				slog.Uint64("chunkSize", event.ChunkSize),
				tallyAttr(event.Tally),
			)
		}),
		scraper.OnBackfillDone(func(event scraper.BackfillDone) {
			log.InfoContext(ctx, "Backfill completed",
				slog.Int64("totalProcessed", event.TotalProcessed),
				slog.Duration("duration", event.Duration),
			)
		}),
		scraper.OnBackfillError(func(event scraper.BackfillError) {
			log.ErrorContext(ctx, "Backfill failed", slog.Any("error", event.Err))
		}),
		scraper.OnPollingStarted(func(event scraper.PollingStarted) {
			log.InfoContext(ctx, "Polling started",
				slog.Duration("interval", event.Interval),
			)
		}),
		scraper.OnPollingSyncCompleted(func(event scraper.PollingSyncCompleted) {
			if event.Fetched > 0 {
				log.InfoContext(ctx, "Polling cycle completed",
					slog.Int("fetched", event.Fetched),
					slog.Int64("checkpointID", event.CheckpointID),
					slog.Uint64("chunkSize", event.ChunkSize),
					tallyAttr(event.Tally),
				)
			} else {
				log.DebugContext(ctx, "Polling cycle completed, no new transfers")
			}
		}),
		scraper.OnPollingShutdown(func(event scraper.PollingShutdown) {
			log.InfoContext(ctx, "Polling stopped",
				slog.String("reason", event.Reason.Error()),
			)
		}),
		scraper.OnPollingError(func(event scraper.PollingError) {
			log.ErrorContext(ctx, "Polling failed", slog.Any("error", event.Err))
		}),
		scraper.OnTransferFailed(func(event scraper.TransferFailed) {
			log.ErrorContext(ctx, "Transfer failed",
				slog.Int64("eventID", event.EventID),
				slog.String("txHash", event.TxHash),
				slog.Any("error", event.Err),
			)
		}),
	)
}

func tallyAttr(t scraper.Tally) slog.Attr {
	return slog.Group("outcomes",
		slog.Int("applied", t.Applied),
		slog.Int("deferred", t.Deferred),
		slog.Int("rescheduled", t.Rescheduled),
		slog.Int("failed", t.Failed),
	)
}
