package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/chain"
	"positionScope/internal/config"
	"positionScope/internal/dex"
	"positionScope/internal/explorer"
	"positionScope/internal/metrics"
	"positionScope/internal/position"
	"positionScope/internal/pricing"
	"positionScope/internal/rewards"
)

const explorerMaxRetries = 3

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	chain      *chain.Client
	memo       *cache.Cache
	reader     *dex.Reader
	prices     *pricing.Registry
	rewards    *rewards.Client
	explorer   *explorer.Client
	creation   *explorer.CreationDates
	discoverer *position.Discoverer
	enricher   *position.Enricher
}

type appOptions struct {
	creationDates bool
	explorer      bool
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	chainClient, err := chain.NewClient(ctx, cfg.RPCURLs, cfg.ChainTimeout, logger, chain.WithObserver(m.ObserveRPC))
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	logChain(ctx, chainClient, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		chain:    chainClient,
		memo:     cache.New(cache.WithObserver(m.ObserveCache)),
	}

	positionManager := common.HexToAddress(cfg.PositionManager)
	a.reader, err = dex.NewReader(chainClient, a.memo, dex.ReaderConfig{
		PositionManager: positionManager,
		Factory:         common.HexToAddress(cfg.Factory),
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	pricingCfg, err := cfg.PricingConfig()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.prices, err = pricing.NewRegistry(pricingCfg, a.reader, a.memo, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load price graph: %w", err)
	}

	a.rewards = rewards.New(rewards.Config{
		URL:     cfg.RewardURL,
		Timeout: cfg.OracleTimeout,
	}, a.memo, logger)

	if opts.creationDates || opts.explorer {
		a.explorer, err = explorer.New(explorer.Config{
			V1URL:      cfg.ExplorerV1URL,
			V2URL:      cfg.ExplorerV2URL,
			RPS:        cfg.ExplorerRPS,
			Timeout:    cfg.ExplorerTimeout,
			MaxRetries: explorerMaxRetries,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("explorer client: %w", err)
		}
	}
	if opts.creationDates {
		a.creation, err = explorer.NewCreationDates(a.explorer, positionManager, chainClient, a.memo, explorer.DefaultCreationTTL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.discoverer = position.NewDiscoverer(a.reader, a.memo, position.DiscoveryConfig{
		BatchSize: cfg.DiscoveryBatchSize,
	}, logger)

	enricherCfg := position.EnricherConfig{
		Concurrency:     cfg.Concurrency,
		PositionTimeout: cfg.PositionTimeout,
		Rewards:         a.rewards,
		Observe:         m.ObserveEnrichment,
	}
	if cfg.RewardToken != "" {
		enricherCfg.RewardToken = common.HexToAddress(cfg.RewardToken)
	}
	if a.creation != nil {
		enricherCfg.Creation = a.creation
	}
	a.enricher, err = position.NewEnricher(a.reader, a.prices, enricherCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

type chainInfo interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Endpoints() []string
}

// logChain reports the connected chain. A failing lookup is not fatal; the
// first real call surfaces the problem.
func logChain(ctx context.Context, c chainInfo, logger *zap.Logger) {
	id, err := c.ChainID(ctx)
	if err != nil {
		logger.Warn("chain id unavailable", zap.Strings("rpc", c.Endpoints()), zap.Error(err))
		return
	}
	logger.Info("rpc connected", zap.Strings("rpc", c.Endpoints()), zap.String("chain_id", id.String()))
}

func (a *app) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
}
