package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

type serveOptions struct {
	port    int
	rpcAddr string
	watch   bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search engine as an HTTP and RPC service",
		Long: `serve builds the index once and keeps it in memory, answering HTTP and RPC
queries until interrupted. The index is rebuilt and swapped in atomically when
the data directory changes (--watch), on POST /api/v1/reload, or when a message
arrives on the Kafka rebuild topic.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = opts.port
			}
			if flags.Changed("rpc-addr") {
				cfg.RPC.Addr = opts.rpcAddr
			}
			if flags.Changed("watch") {
				cfg.Indexer.Watch = opts.watch
			}
			setupLogging(cmd.ErrOrStderr(), cfg, cfg.Logging.Level, root.verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.port, "port", 0, "HTTP port (default server.port)")
	f.StringVar(&opts.rpcAddr, "rpc-addr", "", "RPC listen address; empty disables RPC (default rpc.addr)")
	f.BoolVar(&opts.watch, "watch", false, "rebuild when files under the data directory change")
	return cmd
}

// rebuilder serialises rebuilds coming from the watcher, the HTTP reload
// endpoint and the Kafka rebuild topic.
type rebuilder struct {
	mu      sync.Mutex
	engine  *indexer.Engine
	handle  *index.Handle
	svc     *searcher.Service
	timeout time.Duration
}

func (r *rebuilder) rebuild(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ix, err := r.engine.Rebuild(ctx, r.handle)
	if err != nil {
		return "", err
	}
	if r.svc != nil {
		if err := r.svc.InvalidateCache(ctx); err != nil {
			slog.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	return ix.BuildID(), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting minisearch service",
		"port", cfg.Server.Port,
		"rpc_addr", cfg.RPC.Addr,
		"source", cfg.Source.Kind,
		"data_dir", cfg.Indexer.DataDir,
	)

	keys, err := apikey.NewValidator(cfg.Server.AdminKeyHashes)
	if err != nil {
		return apperrors.InvalidArgumentf("server.adminKeyHashes: %v", err)
	}
	if !keys.Enabled() {
		slog.Warn("admin endpoints are unauthenticated; set server.adminKeyHashes to protect them")
	}

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		metricsServer := metrics.StartServer(cfg.Metrics.Port, m.Handler())
		defer metricsServer.Close()
	}

	engine, closeSource, err := newEngine(ctx, cfg, m)
	defer closeSource()
	if err != nil {
		return err
	}
	handle := index.NewHandle(nil)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		err = resilience.Retry(ctx, "connect redis", resilience.RetryConfig{}, func(ctx context.Context) error {
			var err error
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.BreakerConfig{})
			queryCache = cache.New(cache.Guard(redisClient, breaker), cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator(20)
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("publishing search events", "topic", cfg.Kafka.Topics.SearchEvents)
	}
	collector := analytics.NewCollector(publisher, aggregator, m, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	svc := searcher.New(handle, searcher.OptionsFromConfig(cfg), queryCache, collector, m)
	rb := &rebuilder{engine: engine, handle: handle, svc: svc, timeout: cfg.Indexer.RebuildTimeout}

	if _, err := rb.rebuild(ctx); err != nil {
		// Keep serving: readiness stays down until a later rebuild succeeds.
		slog.Error("initial index build failed", "error", err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.Indexer.Watch && cfg.Source.Kind == config.SourceFS {
		w := indexer.NewWatcher(cfg.Indexer.DataDir, cfg.Indexer.WatchDebounce, func(ctx context.Context) error {
			_, err := rb.rebuild(ctx)
			return err
		}, cfg.Indexer.SnapshotPath)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				slog.Error("index watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RebuildRequest, rebuildHandler(rb))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				slog.Error("rebuild consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for rebuild requests", "topic", cfg.Kafka.Topics.RebuildRequest)
	}

	if cfg.RPC.Addr != "" {
		rpcServer := grpc.NewServer()
		searcher.RegisterRPC(rpcServer, svc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rpcServer.ListenAndServe(cfg.RPC.Addr); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(handle))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient))
	}
	if db, ok := engine.Source().(health.Pinger); ok {
		checker.Register("postgres", health.PingCheck(db))
	}

	mux := http.NewServeMux()
	handler.New(svc, rb.rebuild).Register(mux, apikey.Require(keys))
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig()),
		middleware.Metrics(m),
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	slog.Info("minisearch service stopped")
	return nil
}

// rebuildHandler turns a message on the rebuild topic into a rebuild. A
// failed rebuild is returned so the message is not committed.
func rebuildHandler(rb *rebuilder) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		req, err := kafka.DecodeJSON[kafka.RebuildRequest](value)
		if err != nil {
			slog.Warn("discarding malformed rebuild request", "error", err)
			return nil
		}
		slog.Info("rebuild requested", "reason", req.Reason, "requested_by", req.RequestedBy)
		_, err = rb.rebuild(ctx)
		return err
	}
}
