package explorer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"positionScope/internal/model"
)

// NFTTransfer is one row of the V1 tokennfttx action.
type NFTTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenID"`
	TokenIDAlt      string `json:"tokenId"`
}

// ID returns the token ID whichever key the explorer used.
func (t NFTTransfer) ID() string {
	if t.TokenID != "" {
		return t.TokenID
	}
	return t.TokenIDAlt
}

// ContractCreation is one row of the V1 getcontractcreation action.
type ContractCreation struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
}

type v1Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TimeStamp       string   `json:"timeStamp"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
}

// LogQuery selects logs for the V1 getLogs action. Empty topics are wildcards.
type LogQuery struct {
	Address   common.Address
	FromBlock uint64
	// ToBlock zero means latest.
	ToBlock uint64
	Topics  [4]string
}

// TokenInfo is the V2 /tokens/{address} document.
type TokenInfo struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     string `json:"decimals"`
	Type         string `json:"type"`
	ExchangeRate string `json:"exchange_rate"`
}

// Transaction is an entry of the V2 address transactions listing.
type Transaction struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   string `json:"timestamp"`
	Method      string `json:"method"`
	Status      string `json:"status"`
}

// TransactionPage is one page of V2 address transactions.
type TransactionPage struct {
	Items          []Transaction  `json:"items"`
	NextPageParams map[string]any `json:"next_page_params"`
}

// NFTTransfers lists ERC721 transfers of contract, optionally for one holder.
func (c *Client) NFTTransfers(ctx context.Context, contract common.Address, holder *common.Address) ([]NFTTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokennfttx")
	params.Set("contractaddress", contract.Hex())
	if holder != nil {
		params.Set("address", holder.Hex())
	}
	resp, err := c.FetchV1(ctx, params)
	if err != nil {
		return nil, err
	}
	return decodeResult[NFTTransfer](resp)
}

// ContractCreation returns the deployment transaction of each contract.
func (c *Client) ContractCreation(ctx context.Context, contracts ...common.Address) ([]ContractCreation, error) {
	if len(contracts) == 0 {
		return nil, nil
	}
	addrs := make([]string, len(contracts))
	for i, addr := range contracts {
		addrs[i] = addr.Hex()
	}
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", strings.Join(addrs, ","))
	resp, err := c.FetchV1(ctx, params)
	if err != nil {
		return nil, err
	}
	return decodeResult[ContractCreation](resp)
}

// Logs runs a V1 getLogs query.
func (c *Client) Logs(ctx context.Context, q LogQuery) ([]model.LogRecord, error) {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", q.Address.Hex())
	params.Set("fromBlock", strconv.FormatUint(q.FromBlock, 10))
	if q.ToBlock == 0 {
		params.Set("toBlock", "latest")
	} else {
		params.Set("toBlock", strconv.FormatUint(q.ToBlock, 10))
	}
	for i, topic := range q.Topics {
		if topic != "" {
			params.Set(fmt.Sprintf("topic%d", i), topic)
		}
	}
	// Blockscout requires an explicit operator between every pair of topics.
	for i := 0; i < len(q.Topics); i++ {
		for j := i + 1; j < len(q.Topics); j++ {
			if q.Topics[i] != "" && q.Topics[j] != "" {
				params.Set(fmt.Sprintf("topic%d_%d_opr", i, j), "and")
			}
		}
	}

	resp, err := c.FetchV1(ctx, params)
	if err != nil {
		return nil, err
	}
	raw, err := decodeResult[v1Log](resp)
	if err != nil {
		return nil, err
	}

	logs := make([]model.LogRecord, 0, len(raw))
	for _, entry := range raw {
		record := model.LogRecord{
			TxHash:  entry.TransactionHash,
			Address: entry.Address,
			Topics:  entry.Topics,
			Data:    entry.Data,
		}
		if record.BlockNumber, err = parseQuantity(entry.BlockNumber); err != nil {
			return nil, fmt.Errorf("log blockNumber: %w", err)
		}
		if entry.TimeStamp != "" {
			if record.Timestamp, err = parseQuantity(entry.TimeStamp); err != nil {
				return nil, fmt.Errorf("log timeStamp: %w", err)
			}
		}
		if entry.LogIndex != "" {
			if record.LogIndex, err = parseQuantity(entry.LogIndex); err != nil {
				return nil, fmt.Errorf("log logIndex: %w", err)
			}
		}
		logs = append(logs, record)
	}
	return logs, nil
}

// Token fetches V2 token details.
func (c *Client) Token(ctx context.Context, token common.Address) (TokenInfo, error) {
	var info TokenInfo
	err := c.FetchV2(ctx, "/tokens/"+token.Hex(), nil, &info)
	return info, err
}

// AddressTransactions fetches the first page of V2 transactions of an address.
func (c *Client) AddressTransactions(ctx context.Context, address common.Address) (TransactionPage, error) {
	var page TransactionPage
	err := c.FetchV2(ctx, "/addresses/"+address.Hex()+"/transactions", nil, &page)
	return page, err
}

// parseQuantity accepts both 0x-prefixed hex and decimal strings.
func parseQuantity(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0x" {
		return 0, nil
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseUint(value[2:], 16, 64)
	}
	return strconv.ParseUint(value, 10, 64)
}
