package position

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.token(wflr, "WFLR", 18)
	f.token(eusdt, "eUSDT", 6)
	f.pool(wflrUSDT, wflr, eusdt, 0, nil)
	f.fake.Returns(wflrUSDT, f.poolABI, "liquidity", big.NewInt(987_654_321))
	thousand := new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	f.fake.Returns(wflr, f.erc20, "balanceOf", thousand)
	f.fake.Returns(eusdt, f.erc20, "balanceOf", big.NewInt(50_000_000))
	return f
}

func TestDescribePool(t *testing.T) {
	f := poolFixture(t)

	report, err := DescribePool(context.Background(), f.reader, f.registry(fixedPrice(wflr, 0.02)), wflrUSDT)
	require.NoError(t, err)
	assert.Equal(t, wflrUSDT, report.Address)
	assert.Equal(t, int32(0), report.Tick)
	assert.Equal(t, "987654321", report.Liquidity)
	assert.InEpsilon(t, 1e12, report.Price, 1e-9)

	assert.Equal(t, "WFLR", report.Reserves[0].Token.Symbol)
	assert.Equal(t, "1000", report.Reserves[0].Amount.String())
	assert.Equal(t, "20", report.Reserves[0].ValueUSD.String())
	assert.Equal(t, "50", report.Reserves[1].Amount.String())
	assert.Equal(t, "50", report.Reserves[1].ValueUSD.String())
	assert.Equal(t, "70", report.TVLUSD.String())
	assert.Empty(t, report.Warnings)
}

func TestDescribePoolUnpricedTokenWarns(t *testing.T) {
	f := poolFixture(t)

	report, err := DescribePool(context.Background(), f.reader, f.registry(), wflrUSDT)
	require.NoError(t, err)
	assert.True(t, report.Reserves[0].ValueUSD.IsZero())
	assert.Equal(t, "50", report.TVLUSD.String())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "price WFLR")
}

func TestDescribePoolReadFailure(t *testing.T) {
	f := poolFixture(t)
	f.fake.Fails(wflrUSDT, f.poolABI, "liquidity", errReverted)

	_, err := DescribePool(context.Background(), f.reader, f.registry(), wflrUSDT)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
}
