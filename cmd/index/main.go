package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/export"
	"referral-indexer/internal/graph"
	"referral-indexer/internal/indexer"
	"referral-indexer/internal/observability"
	"referral-indexer/internal/registry"
	"referral-indexer/internal/storage"
	chstore "referral-indexer/internal/storage/clickhouse"
	"referral-indexer/internal/storage/migrations"
	pgstore "referral-indexer/internal/storage/postgres"
)

func main() {
	referrers := flag.String("referrers", "", "Comma-separated referrer addresses to index (required)")
	registryPath := flag.String("registry", "chains.yaml", "Path to the chain registry YAML file")
	outDir := flag.String("out", "exports", "Directory for per-chain CSV exports")
	pageSize := flag.Int("page-size", indexer.DefaultPageSize, "Records requested per page")
	maxSkip := flag.Int("max-skip", indexer.DefaultMaxSkip, "Server-side pagination offset ceiling")
	rateLimit := flag.Float64("rate-limit", 5, "Global outbound request ceiling (requests/second)")
	retryAttempts := flag.Int("retry-attempts", indexer.DefaultMaxAttempts, "Fetch attempts before a round is abandoned")
	retryDelay := flag.Duration("retry-delay", indexer.DefaultRetryDelay, "Delay between fetch attempts")
	fetchTimeout := flag.Duration("fetch-timeout", graph.DefaultTimeout, "HTTP timeout for one page request")
	deadline := flag.Duration("deadline", 0, "Overall run deadline (0 disables)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN for aggregate snapshots (empty to disable)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for raw fee events (empty to disable)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[index] ", log.LstdFlags|log.Lshortfile)

	referrerList := splitList(*referrers)
	if len(referrerList) == 0 {
		logger.Fatal("No referrers specified. Use -referrers")
	}

	reg, err := registry.Load(*registryPath)
	if err != nil {
		logger.Fatalf("Loading chain registry: %v", err)
	}
	logger.Printf("Registry: %d chain(s)", reg.Len())

	metrics := observability.NewMetrics("")

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	var snapshots storage.AggregateStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Connecting to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Applying postgres migrations: %v", err)
		}
		snapshots = pgstore.NewAggregateStore(pool)
		logger.Println("Aggregate snapshots: postgres")
	}

	var events storage.FeeEventStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Preparing clickhouse: %v", err)
		}
		defer conn.Close()
		events = chstore.NewFeeEventStore(conn)
		logger.Println("Raw fee events: clickhouse")
	}

	// One limiter shared by every chain's fetch loop; the indexing
	// service throttles clients above this rate.
	limiter := rate.NewLimiter(rate.Limit(*rateLimit), 1)

	newSource := func(chain domain.ChainConfig) indexer.PageSource {
		client := graph.NewClient(chain.Endpoint, graph.WithTimeout(*fetchTimeout))
		return indexer.NewRetrier(indexer.RetrierOptions{
			Source:      client,
			Limiter:     limiter,
			MaxAttempts: *retryAttempts,
			Delay:       *retryDelay,
			Logger:      logger,
			Metrics:     metrics,
		})
	}

	runner := indexer.NewRunner(indexer.RunnerOptions{
		Chains:    reg.Chains(),
		Referrers: referrerList,
		NewSource: newSource,
		Exporter:  export.NewCSVExporter(*outDir, logger),
		Events:    events,
		Snapshots: snapshots,
		PageSize:  *pageSize,
		MaxSkip:   *maxSkip,
		Logger:    logger,
		Metrics:   metrics,
	})

	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Fatalf("Indexing run failed: %v", err)
	}

	if len(summary.TruncatedChains) > 0 {
		logger.Printf("Warning: %d chain(s) truncated by upstream failures: %s",
			len(summary.TruncatedChains), strings.Join(summary.TruncatedChains, ", "))
	}
	logger.Printf("Run %s complete: %d chain run(s), %d record(s), %d export(s)",
		summary.RunID, summary.ChainsIndexed, summary.RecordsAccepted, summary.ExportsWritten)
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
