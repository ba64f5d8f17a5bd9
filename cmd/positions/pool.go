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
	"go.uber.org/zap"

	"positionScope/internal/explorer"
	"positionScope/internal/position"
)

type poolView struct {
	position.PoolReport
	Activity *explorer.ContractActivity `json:"activity,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

func runPool(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pools := make([]common.Address, 0, len(args))
	for _, arg := range args {
		if !common.IsHexAddress(arg) {
			return fmt.Errorf("invalid pool address %q", arg)
		}
		pools = append(pools, common.HexToAddress(arg))
	}
	withExplorer, _ := cmd.Flags().GetBool("explorer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{explorer: withExplorer})
	if err != nil {
		return err
	}
	defer a.Close()

	out := make([]poolView, 0, len(pools))
	var errs []error
	for _, pool := range pools {
		view := poolView{}
		view.PoolReport, err = position.DescribePool(ctx, a.reader, a.prices, pool)
		if err != nil {
			view.Error = err.Error()
			errs = append(errs, err)
			out = append(out, view)
			continue
		}
		if a.explorer != nil {
			tokens := []common.Address{view.Reserves[0].Token.Address, view.Reserves[1].Token.Address}
			activity, err := a.explorer.Activity(ctx, pool, tokens)
			if err != nil {
				logger.Warn("explorer lookup failed", zap.String("pool", pool.Hex()), zap.Error(err))
			} else {
				view.Activity = &activity
			}
		}
		out = append(out, view)
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return errors.Join(errs...)
}
