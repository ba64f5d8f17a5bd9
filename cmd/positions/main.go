package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "positions",
		Short:        "Concentrated liquidity position scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover, value and store every position of the configured wallets",
		RunE:  runScan,
	}
	addChainFlags(scanCmd.Flags())
	scanCmd.Flags().StringSlice("wallet", nil, "wallet addresses (comma-separated)")
	scanCmd.Flags().Bool("refresh", false, "bypass the cached position list")
	scanCmd.Flags().Int("concurrency", 5, "positions enriched per chunk")
	scanCmd.Flags().Int("discovery-batch-size", 10, "token index lookups per batch")
	scanCmd.Flags().Duration("position-timeout", 15*time.Second, "timeout of the position read")
	scanCmd.Flags().String("status", "", "report only active or inactive positions")
	scanCmd.Flags().String("sort", "tvl", "sort key (tvl, rewards, fees, id)")
	scanCmd.Flags().String("order", "desc", "sort order (asc, desc)")
	scanCmd.Flags().String("out", "./data/positions.jsonl", "output JSONL path, empty disables it")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	scanCmd.Flags().String("schedule", "", "cron spec with seconds field; empty runs once")
	scanCmd.Flags().String("metrics-addr", "", "listen address of the /metrics endpoint")
	scanCmd.Flags().String("reward-url", "", "reward oracle base URL")
	scanCmd.Flags().String("reward-token", "", "token rewards are paid in")
	scanCmd.Flags().Bool("creation-date", false, "look up position creation dates on the explorer")
	addExplorerFlags(scanCmd.Flags())
	root.AddCommand(scanCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "List the position token IDs held by wallets",
		RunE:  runDiscover,
	}
	addChainFlags(discoverCmd.Flags())
	discoverCmd.Flags().StringSlice("wallet", nil, "wallet addresses (comma-separated)")
	discoverCmd.Flags().Int("discovery-batch-size", 10, "token index lookups per batch")
	root.AddCommand(discoverCmd)

	priceCmd := &cobra.Command{
		Use:   "price [token]...",
		Short: "Resolve USD prices through the configured price graph; no tokens prices every configured one",
		Args:  cobra.ArbitraryArgs,
		RunE:  runPrice,
	}
	addChainFlags(priceCmd.Flags())
	priceCmd.Flags().Duration("price-ttl", 30*time.Second, "price cache TTL")
	root.AddCommand(priceCmd)

	poolCmd := &cobra.Command{
		Use:   "pool <pool>...",
		Short: "Show state, liquidity and reserves of pools",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPool,
	}
	addChainFlags(poolCmd.Flags())
	poolCmd.Flags().Bool("explorer", false, "add deployment, recent transactions and token details from the explorer")
	addExplorerFlags(poolCmd.Flags())
	root.AddCommand(poolCmd)

	creationCmd := &cobra.Command{
		Use:   "creation-date <token-id>...",
		Short: "Infer when positions were minted",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCreationDate,
	}
	addChainFlags(creationCmd.Flags())
	addExplorerFlags(creationCmd.Flags())
	root.AddCommand(creationCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(flags *pflag.FlagSet) {
	flags.StringSlice("rpc", nil, "RPC URLs in fallback order (comma-separated)")
	flags.String("position-manager", "", "position manager address")
	flags.String("factory", "", "pool factory address")
	flags.Duration("chain-timeout", 10*time.Second, "timeout of one RPC attempt")
	flags.Duration("oracle-timeout", 10*time.Second, "timeout of price and reward oracle requests")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addExplorerFlags(flags *pflag.FlagSet) {
	flags.String("explorer-v1-url", "", "Etherscan compatible API URL")
	flags.String("explorer-v2-url", "", "Blockscout V2 API URL")
	flags.Float64("explorer-rps", 2, "explorer requests per second")
	flags.Duration("explorer-timeout", 30*time.Second, "explorer request timeout")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
