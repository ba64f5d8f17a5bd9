package explorer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// ContractActivity is the explorer view of a contract and the tokens it holds.
type ContractActivity struct {
	Creator            string       `json:"creator,omitempty"`
	CreationTx         string       `json:"creation_tx,omitempty"`
	RecentTransactions int          `json:"recent_transactions"`
	LastTransaction    *Transaction `json:"last_transaction,omitempty"`
	Tokens             []TokenInfo  `json:"tokens"`
}

// Activity looks up who deployed contract, its latest transactions and the
// explorer details of tokens.
func (c *Client) Activity(ctx context.Context, contract common.Address, tokens []common.Address) (ContractActivity, error) {
	var (
		activity ContractActivity
		created  []ContractCreation
		page     TransactionPage
	)
	activity.Tokens = make([]TokenInfo, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		created, err = c.ContractCreation(gctx, contract)
		return err
	})
	g.Go(func() error {
		var err error
		page, err = c.AddressTransactions(gctx, contract)
		return err
	})
	for i, token := range tokens {
		g.Go(func() error {
			info, err := c.Token(gctx, token)
			if err != nil {
				return fmt.Errorf("token %s: %w", token.Hex(), err)
			}
			activity.Tokens[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ContractActivity{}, err
	}

	if len(created) > 0 {
		activity.Creator = created[0].ContractCreator
		activity.CreationTx = created[0].TxHash
	}
	activity.RecentTransactions = len(page.Items)
	if len(page.Items) > 0 {
		last := page.Items[0]
		activity.LastTransaction = &last
	}
	return activity, nil
}
