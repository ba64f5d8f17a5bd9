package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"positionScope/internal/model"
)

// TransferEvent is a decoded position manager Transfer log.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	TokenID     *big.Int
	BlockNumber uint64
	TxHash      string
	Timestamp   uint64
}

// IsMint reports a transfer out of the zero address.
func (e TransferEvent) IsMint() bool {
	return e.From == (common.Address{})
}

// TransferDecoder decodes ERC721 Transfer logs emitted by the position manager.
type TransferDecoder struct {
	event abi.Event
	topic string
}

// NewTransferDecoder builds a decoder from the position manager ABI.
func NewTransferDecoder() (*TransferDecoder, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	event, ok := parsed.Events["Transfer"]
	if !ok {
		return nil, fmt.Errorf("position manager abi has no Transfer event")
	}
	return &TransferDecoder{
		event: event,
		topic: strings.ToLower(event.ID.Hex()),
	}, nil
}

// Topic0 returns the Transfer event signature hash.
func (d *TransferDecoder) Topic0() string {
	return d.topic
}

// TokenTopic encodes a token ID as the third indexed topic.
func (d *TransferDecoder) TokenTopic(tokenID *big.Int) string {
	return common.BigToHash(tokenID).Hex()
}

// CanDecode checks if the topic0 is supported.
func (d *TransferDecoder) CanDecode(topic0 string) bool {
	return topic0 != "" && strings.ToLower(topic0) == d.topic
}

// Decode converts a LogRecord into a TransferEvent.
func (d *TransferDecoder) Decode(log model.LogRecord) (TransferEvent, error) {
	if len(log.Topics) == 0 {
		return TransferEvent{}, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return TransferEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return TransferEvent{}, err
	}

	indexed := make(map[string]any, 3)
	if err := abi.ParseTopicsIntoMap(indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return TransferEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	from, okFrom := indexed["from"].(common.Address)
	to, okTo := indexed["to"].(common.Address)
	tokenID, okID := indexed["tokenId"].(*big.Int)
	if !okFrom || !okTo || !okID {
		return TransferEvent{}, fmt.Errorf("unexpected transfer topic types")
	}

	return TransferEvent{
		From:        from,
		To:          to,
		TokenID:     tokenID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		Timestamp:   log.Timestamp,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
