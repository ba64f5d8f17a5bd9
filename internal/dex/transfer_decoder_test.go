package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
)

func TestTransferDecoderMint(t *testing.T) {
	decoder, err := NewTransferDecoder()
	require.NoError(t, err)

	// keccak256("Transfer(address,address,uint256)")
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", decoder.Topic0())

	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := model.LogRecord{
		BlockNumber: 123,
		TxHash:      "0xabc",
		Topics: []string{
			decoder.Topic0(),
			common.BytesToHash(common.Address{}.Bytes()).Hex(),
			common.BytesToHash(owner.Bytes()).Hex(),
			decoder.TokenTopic(big.NewInt(4242)),
		},
		Data:      "0x",
		Timestamp: 1_700_000_000,
	}

	event, err := decoder.Decode(log)
	require.NoError(t, err)
	assert.True(t, event.IsMint())
	assert.Equal(t, owner, event.To)
	assert.Equal(t, "4242", event.TokenID.String())
	assert.Equal(t, uint64(123), event.BlockNumber)
}

func TestTransferDecoderRejectsOtherTopics(t *testing.T) {
	decoder, err := NewTransferDecoder()
	require.NoError(t, err)

	_, err = decoder.Decode(model.LogRecord{Topics: []string{"0x1234"}})
	assert.Error(t, err)

	_, err = decoder.Decode(model.LogRecord{Topics: []string{decoder.Topic0()}})
	assert.Error(t, err)
}
