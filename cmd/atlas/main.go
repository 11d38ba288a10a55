// Package main provides the one-shot CLI: build the holder snapshot and/or
// the high-volume wallet board for a mint and print the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-atlas/internal/config"
	"solana-token-atlas/internal/engine"
	"solana-token-atlas/internal/scan"
	"solana-token-atlas/internal/solana"
)

func main() {
	mint := flag.String("mint", "", "Token mint address (required)")
	wantSnapshot := flag.Bool("snapshot", true, "Build the holder snapshot")
	wantBoard := flag.Bool("board", false, "Build the high-volume wallet board")
	topN := flag.Int("top-n", 0, "Holder nodes to emit (0 = config default)")
	edgeWallets := flag.Int("edge-wallets", 0, "Top holders included in the transfer graph")
	limit := flag.Int("limit", 0, "Board entries to emit")
	minTotal := flag.String("min-total", "", "Minimum buy+sell volume for a board entry")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall request timeout")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *mint == "" {
		logger.Fatal("-mint is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	client := solana.NewHTTPClient(cfg.RPC.Endpoint,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxRetries(cfg.RPC.MaxRetries))

	scanner, err := scan.NewScanner(client, logger)
	if err != nil {
		logger.Fatal("init scanner", zap.Error(err))
	}
	defer scanner.Close()

	eng := engine.New(client, scanner, logger, cfg.Snapshot.CacheTTL,
		engine.WithBoardCacheTTL(cfg.Board.CacheTTL))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out := make(map[string]interface{})

	if *wantSnapshot {
		snap, err := eng.BuildSnapshot(ctx, *mint, engine.SnapshotOptions{
			TopN:           pick(*topN, cfg.Snapshot.TopN),
			EdgeWallets:    pick(*edgeWallets, cfg.Snapshot.EdgeWallets),
			SignatureLimit: cfg.Snapshot.SignatureLimit,
			MaxSignatures:  cfg.Snapshot.MaxSignatures,
		})
		if err != nil {
			fail(logger, "build snapshot", err)
		}
		out["snapshot"] = snap
	}

	if *wantBoard {
		min := decimal.Zero
		raw := *minTotal
		if raw == "" {
			raw = cfg.Board.MinTotal
		}
		if raw != "" {
			min, err = decimal.NewFromString(raw)
			if err != nil {
				logger.Fatal("parse -min-total", zap.Error(err))
			}
		}

		board, err := eng.BuildBoard(ctx, *mint, engine.BoardOptions{
			Limit:          pick(*limit, cfg.Board.Limit),
			MinTotal:       min,
			SignatureLimit: cfg.Board.SignatureLimit,
			MaxSignatures:  cfg.Board.MaxSignatures,
		})
		if err != nil {
			fail(logger, "build board", err)
		}
		out["board"] = board
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal("encode output", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func pick(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func fail(logger *zap.Logger, msg string, err error) {
	if errors.Is(err, engine.ErrInvalidSubject) {
		logger.Fatal(msg, zap.String("reason", "invalid mint address"), zap.Error(err))
	}
	logger.Fatal(msg, zap.Error(err))
}
