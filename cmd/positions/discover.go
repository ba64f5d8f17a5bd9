package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type walletPositions struct {
	Wallet   string   `json:"wallet"`
	TokenIDs []string `json:"token_ids"`
	Error    string   `json:"error,omitempty"`
}

func runDiscover(cmd *cobra.Command, _ []string) error {
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

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := make([]walletPositions, 0, len(wallets))
	var errs []error
	for _, wallet := range wallets {
		entry := walletPositions{Wallet: wallet.Hex(), TokenIDs: []string{}}
		ids, err := a.discoverer.FindPositions(ctx, wallet, true)
		if err != nil {
			logger.Warn("discovery failed", zap.String("wallet", wallet.Hex()), zap.Error(err))
			entry.Error = err.Error()
			errs = append(errs, err)
		}
		for _, id := range ids {
			entry.TokenIDs = append(entry.TokenIDs, id.String())
		}
		out = append(out, entry)
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return errors.Join(errs...)
}
