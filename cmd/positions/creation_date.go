package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type positionCreation struct {
	TokenID   string     `json:"token_id"`
	CreatedAt *time.Time `json:"created_at"`
	Error     string     `json:"error,omitempty"`
}

func runCreationDate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ids := make([]*big.Int, 0, len(args))
	for _, arg := range args {
		id, ok := new(big.Int).SetString(arg, 10)
		if !ok || id.Sign() < 0 {
			return fmt.Errorf("invalid token id %q", arg)
		}
		ids = append(ids, id)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{creationDates: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := make([]positionCreation, 0, len(ids))
	var errs []error
	for _, id := range ids {
		entry := positionCreation{TokenID: id.String()}
		created, err := a.creation.CreationDate(ctx, id)
		if err != nil {
			entry.Error = err.Error()
			errs = append(errs, err)
		}
		entry.CreatedAt = created
		out = append(out, entry)
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return errors.Join(errs...)
}
