package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type tokenPrice struct {
	Token  string  `json:"token"`
	USD    float64 `json:"usd"`
	Stable bool    `json:"stable,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func runPrice(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokens := make([]common.Address, 0, len(args))
	for _, arg := range args {
		if !common.IsHexAddress(arg) {
			return fmt.Errorf("invalid token address %q", arg)
		}
		tokens = append(tokens, common.HexToAddress(arg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(tokens) == 0 {
		tokens = a.prices.Tokens()
	}
	out := make([]tokenPrice, 0, len(tokens))
	var errs []error
	for _, token := range tokens {
		entry := tokenPrice{Token: token.Hex(), Stable: a.prices.IsStable(token)}
		price, err := a.prices.ResolvePriceUSD(ctx, token)
		if err != nil {
			entry.Error = err.Error()
			errs = append(errs, err)
		}
		entry.USD = price
		out = append(out, entry)
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return errors.Join(errs...)
}
