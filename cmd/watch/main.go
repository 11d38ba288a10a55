// Package main provides the long-running watcher: it subscribes to live
// snapshot updates for the configured mints, logs every refresh and
// archives each successful result, rebuilding the volume board alongside
// each snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-atlas/internal/archive"
	chstore "solana-token-atlas/internal/archive/clickhouse"
	"solana-token-atlas/internal/archive/memory"
	"solana-token-atlas/internal/config"
	"solana-token-atlas/internal/engine"
	"solana-token-atlas/internal/live"
	"solana-token-atlas/internal/observability"
	"solana-token-atlas/internal/scan"
	"solana-token-atlas/internal/solana"
)

func main() {
	mintsFlag := flag.String("mints", "", "Comma-separated mint addresses to watch (required)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	mints := splitList(*mintsFlag)
	if len(mints) == 0 {
		logger.Fatal("-mints is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := solana.NewHTTPClient(cfg.RPC.Endpoint,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxRetries(cfg.RPC.MaxRetries))

	scanner, err := scan.NewScanner(client, logger)
	if err != nil {
		logger.Fatal("init scanner", zap.Error(err))
	}
	defer scanner.Close()

	snapshots, boards, cleanup, err := newArchiveStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init archive", zap.Error(err))
	}
	defer cleanup()

	minTotal := decimal.Zero
	if cfg.Board.MinTotal != "" {
		minTotal, err = decimal.NewFromString(cfg.Board.MinTotal)
		if err != nil {
			logger.Fatal("parse board min total", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics("")
	go startMetricsServer(cfg.MetricsAddr, logger)

	eng := engine.New(client, scanner, logger, cfg.Snapshot.CacheTTL,
		engine.WithBoardCacheTTL(cfg.Board.CacheTTL),
		engine.WithMetrics(metrics))
	registry := live.NewRegistry(eng, client, logger, live.Config{
		TickInterval:  cfg.Live.TickInterval,
		ForceInterval: cfg.Live.ForceInterval,
		Metrics:       metrics,
	})

	if cfg.RPC.WSEndpoint != "" {
		startActivityHints(ctx, cfg.RPC.WSEndpoint, mints, registry, logger)
	}

	opts := engine.SnapshotOptions{
		TopN:           cfg.Snapshot.TopN,
		EdgeWallets:    cfg.Snapshot.EdgeWallets,
		SignatureLimit: cfg.Snapshot.SignatureLimit,
		MaxSignatures:  cfg.Snapshot.MaxSignatures,
	}
	boardOpts := engine.BoardOptions{
		Limit:          cfg.Board.Limit,
		MinTotal:       minTotal,
		SignatureLimit: cfg.Board.SignatureLimit,
		MaxSignatures:  cfg.Board.MaxSignatures,
	}

	w := &watcher{
		engine:    eng,
		boardOpts: boardOpts,
		snapshots: snapshots,
		boards:    boards,
		log:       logger,
	}

	var wg sync.WaitGroup
	for _, mint := range mints {
		updates, cancel := registry.Subscribe(mint, opts)
		defer cancel()

		wg.Add(1)
		go func(mint string, updates <-chan live.Update) {
			defer wg.Done()
			w.watch(ctx, mint, updates)
		}(mint, updates)
	}

	logger.Info("watching", zap.Strings("mints", mints))
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
}

// watcher archives every successful live refresh: the snapshot itself plus
// a freshly built volume board for the same mint.
type watcher struct {
	engine    *engine.Engine
	boardOpts engine.BoardOptions
	snapshots archive.SnapshotStore
	boards    archive.BoardStore
	log       *zap.Logger
}

// watch consumes one mint's update stream until the context ends.
func (w *watcher) watch(ctx context.Context, mint string, updates <-chan live.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if u.Err != nil {
				w.log.Warn("refresh failed", zap.String("mint", mint), zap.Error(u.Err))
				continue
			}
			w.log.Info("snapshot refreshed",
				zap.String("mint", mint),
				zap.Int("nodes", len(u.Snapshot.Nodes)),
				zap.Int("edges", len(u.Snapshot.Edges)),
				zap.Int64("generatedAt", u.Snapshot.GeneratedAt))

			if err := w.snapshots.Insert(ctx, u.Snapshot); err != nil {
				w.log.Warn("archive snapshot", zap.String("mint", mint), zap.Error(err))
			}

			w.archiveBoard(ctx, mint)
		}
	}
}

// archiveBoard rebuilds and stores the volume board. Best-effort: a failed
// build leaves the snapshot archive entry standing.
func (w *watcher) archiveBoard(ctx context.Context, mint string) {
	board, err := w.engine.BuildBoard(ctx, mint, w.boardOpts)
	if err != nil {
		w.log.Warn("build board", zap.String("mint", mint), zap.Error(err))
		return
	}

	w.log.Info("board refreshed",
		zap.String("mint", mint),
		zap.Int("entries", len(board.Entries)))

	if err := w.boards.Insert(ctx, board); err != nil {
		w.log.Warn("archive board", zap.String("mint", mint), zap.Error(err))
	}
}

// startActivityHints streams log notifications mentioning each mint and
// marks the corresponding live states dirty. Best-effort: a failed
// subscription leaves polling as the only trigger.
func startActivityHints(ctx context.Context, wsEndpoint string, mints []string, registry *live.Registry, logger *zap.Logger) {
	ws, err := solana.NewWSClient(ctx, wsEndpoint, nil)
	if err != nil {
		logger.Warn("websocket unavailable, falling back to polling", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	for _, mint := range mints {
		notifications, err := ws.SubscribeMentions(ctx, mint)
		if err != nil {
			logger.Warn("subscribe mentions", zap.String("mint", mint), zap.Error(err))
			continue
		}
		go func(mint string, notifications <-chan solana.LogNotification) {
			for range notifications {
				registry.MarkActivity(mint)
			}
		}(mint, notifications)
	}
}

// newArchiveStores selects the ClickHouse archive when a DSN is configured,
// the in-memory one otherwise. Both backends carry the snapshot and board
// stores on one connection.
func newArchiveStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (archive.SnapshotStore, archive.BoardStore, func(), error) {
	if cfg.Archive.ClickHouseDSN == "" {
		logger.Info("archive: in-memory backend")
		return memory.NewSnapshotStore(), memory.NewBoardStore(), func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, cfg.Archive.ClickHouseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	if err := conn.Migrate(ctx); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	logger.Info("archive: clickhouse backend")
	return chstore.NewSnapshotStore(conn), chstore.NewBoardStore(conn), func() { conn.Close() }, nil
}

// startMetricsServer serves health and Prometheus metrics endpoints.
func startMetricsServer(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
