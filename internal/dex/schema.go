package dex

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ArityError reports an ABI response whose output count does not match the
// decoding schema.
type ArityError struct {
	Method string
	Want   int
	Got    int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("abi: %s returned %d outputs, schema expects %d", e.Method, e.Got, e.Want)
}

// Slot0Output mirrors pool.slot0().
type Slot0Output struct {
	SqrtPriceX96               *big.Int `abi:"sqrtPriceX96"`
	Tick                       *big.Int `abi:"tick"`
	ObservationIndex           uint16   `abi:"observationIndex"`
	ObservationCardinality     uint16   `abi:"observationCardinality"`
	ObservationCardinalityNext uint16   `abi:"observationCardinalityNext"`
	FeeProtocol                uint8    `abi:"feeProtocol"`
	Unlocked                   bool     `abi:"unlocked"`
}

// TicksOutput mirrors pool.ticks(int24).
type TicksOutput struct {
	LiquidityGross                 *big.Int `abi:"liquidityGross"`
	LiquidityNet                   *big.Int `abi:"liquidityNet"`
	FeeGrowthOutside0X128          *big.Int `abi:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128          *big.Int `abi:"feeGrowthOutside1X128"`
	TickCumulativeOutside          *big.Int `abi:"tickCumulativeOutside"`
	SecondsPerLiquidityOutsideX128 *big.Int `abi:"secondsPerLiquidityOutsideX128"`
	SecondsOutside                 uint32   `abi:"secondsOutside"`
	Initialized                    bool     `abi:"initialized"`
}

// PositionsOutput mirrors positionManager.positions(uint256).
type PositionsOutput struct {
	Nonce                    *big.Int       `abi:"nonce"`
	Operator                 common.Address `abi:"operator"`
	Token0                   common.Address `abi:"token0"`
	Token1                   common.Address `abi:"token1"`
	Fee                      *big.Int       `abi:"fee"`
	TickLower                *big.Int       `abi:"tickLower"`
	TickUpper                *big.Int       `abi:"tickUpper"`
	Liquidity                *big.Int       `abi:"liquidity"`
	FeeGrowthInside0LastX128 *big.Int       `abi:"feeGrowthInside0LastX128"`
	FeeGrowthInside1LastX128 *big.Int       `abi:"feeGrowthInside1LastX128"`
	TokensOwed0              *big.Int       `abi:"tokensOwed0"`
	TokensOwed1              *big.Int       `abi:"tokensOwed1"`
}

// decodeOutputs unpacks a call result into out. A struct out must have exactly
// one field per ABI output; any other out receives the single output.
func decodeOutputs(parsed abi.ABI, method string, data []byte, out any) error {
	m, ok := parsed.Methods[method]
	if !ok {
		return fmt.Errorf("abi: method %s not found", method)
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}

	want := 1
	if rv := reflect.ValueOf(out); rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Struct {
		want = rv.Elem().NumField()
	}
	if len(m.Outputs) != want || len(values) != want {
		return &ArityError{Method: method, Want: want, Got: len(values)}
	}
	if err := m.Outputs.Copy(out, values); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func bytes32ToString(value [32]byte) string {
	return string(bytes.TrimRight(value[:], "\x00"))
}

func toUint256(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return new(uint256.Int), nil
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", value.String())
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", value.String())
	}
	return out, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("int24: nil value")
	}
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

func uint24FromBig(value *big.Int) (uint32, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > 24 {
		return 0, fmt.Errorf("uint24 overflow: %v", value)
	}
	return uint32(value.Uint64()), nil
}
