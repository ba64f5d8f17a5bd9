package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/metrics"
	"positionScope/internal/position"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	wallets, err := cfg.WalletAddresses()
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return fmt.Errorf("wallet list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{creationDates: cfg.CreationDate})
	if err != nil {
		return err
	}
	defer a.Close()

	var sinks []position.Sink
	if cfg.Out != "" {
		jsonl := storage.NewJsonlStorage(cfg.Out)
		logger.Info("writing rows", zap.String("path", jsonl.Path()))
		sinks = append(sinks, jsonl)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		logLastScans(ctx, store, wallets, logger)
		sinks = append(sinks, store)
	}

	scanner := position.NewScanner(a.discoverer, a.enricher, sinks, logger,
		position.WithBlockSource(a.reader),
		position.WithScanObserver(observeScan(a.metrics)),
	)
	opts := position.ScanOptions{
		Refresh:     cfg.Refresh,
		Concurrency: cfg.Concurrency,
		Status:      cfg.Status,
		SortBy:      cfg.Sort,
		Order:       cfg.Order,
	}

	logger.Info("scan start",
		zap.Int("wallets", len(wallets)),
		zap.Strings("rpc", cfg.RPCURLs),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("schedule", cfg.Schedule),
	)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, a.registry, logger)
	}

	if cfg.Schedule == "" {
		reports, err := scanner.ScanAll(ctx, wallets, opts)
		if writeErr := writeJSON(cmd.OutOrStdout(), reports); writeErr != nil {
			return errors.Join(err, writeErr)
		}
		return err
	}

	sched := cron.New(cron.WithSeconds(), cron.WithChain(
		cron.Recover(cronLogger{logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
	))
	_, err = sched.AddFunc(cfg.Schedule, func() {
		if opts.Refresh {
			a.rewards.Clear()
		}
		if _, err := scanner.ScanAll(ctx, wallets, opts); err != nil {
			logger.Warn("scheduled scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}
	sched.Start()
	logger.Info("scheduler started", zap.String("schedule", cfg.Schedule))

	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}

// observeScan records one scan observation per wallet.
func observeScan(m *metrics.Metrics) position.ScanObserver {
	return func(wallet common.Address, report position.ScanReport, elapsed time.Duration, err error) {
		m.ObserveScan(wallet.Hex(), elapsed,
			report.Summary.Active, report.Summary.Inactive,
			report.Summary.TVLUSD.InexactFloat64(), err)
	}
}

type lastScanner interface {
	LastScan(ctx context.Context, wallet string) (time.Time, bool, error)
}

func logLastScans(ctx context.Context, store lastScanner, wallets []common.Address, logger *zap.Logger) {
	for _, wallet := range wallets {
		at, ok, err := store.LastScan(ctx, wallet.Hex())
		switch {
		case err != nil:
			logger.Warn("last scan lookup failed", zap.String("wallet", wallet.Hex()), zap.Error(err))
		case !ok:
			logger.Info("wallet never scanned", zap.String("wallet", wallet.Hex()))
		default:
			logger.Info("wallet last scanned", zap.String("wallet", wallet.Hex()), zap.Time("at", at))
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cronLogger routes scheduler messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
