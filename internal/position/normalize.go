package position

import (
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"positionScope/internal/model"
)

// Sort keys accepted by SortPositions.
const (
	SortByTVL     = "tvl"
	SortByRewards = "rewards"
	SortByFees    = "fees"
	SortByID      = "id"
)

// Sort orders accepted by SortPositions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Summary aggregates a set of rows.
type Summary struct {
	TotalCount int             `json:"total_count"`
	Active     int             `json:"active"`
	Inactive   int             `json:"inactive"`
	InRange    int             `json:"in_range"`
	TVLUSD     decimal.Decimal `json:"tvl_usd"`
	FeesUSD    decimal.Decimal `json:"fees_usd"`
	RewardsUSD decimal.Decimal `json:"rewards_usd"`
}

// Normalize flattens an enriched position into its row form.
func Normalize(p model.EnrichedPosition) model.PositionRow {
	row := model.PositionRow{
		ID:            p.TokenID.String(),
		PairLabel:     p.Token0.Symbol + "/" + p.Token1.Symbol,
		PoolAddress:   p.Pool.Hex(),
		WalletAddress: p.Owner.Hex(),
		Token0:        tokenRow(p.Token0),
		Token1:        tokenRow(p.Token1),
		FeeTierBps:    p.Fee,

		TickLower:      p.TickLower,
		TickLowerLabel: strconv.Itoa(int(p.TickLower)),
		TickUpper:      p.TickUpper,
		TickUpperLabel: strconv.Itoa(int(p.TickUpper)),
		CurrentTick:    p.CurrentTick,

		Amount0: p.Amount0,
		Amount1: p.Amount1,
		Fee0:    p.Fees0,
		Fee1:    p.Fees1,

		LowerPrice:   p.LowerPrice,
		UpperPrice:   p.UpperPrice,
		CurrentPrice: p.CurrentPrice,

		Price0USD: p.Price0USD,
		Price1USD: p.Price1USD,
		TVLUSD:    p.TVLUSD,
		FeesUSD:   p.FeesUSD,

		RewardAmount:   p.RewardAmount,
		RewardUSD:      p.RewardUSD,
		RewardPriceUSD: p.RewardPriceUSD,

		InRange:   p.InRange,
		Status:    Status(p.TVLUSD),
		CreatedAt: p.CreatedAt,
	}
	for _, warning := range p.Warnings {
		row.Warnings = append(row.Warnings, warning.Error())
	}
	return row
}

func tokenRow(meta model.TokenMetadata) model.TokenRow {
	return model.TokenRow{
		Address:  meta.Address.Hex(),
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
	}
}

// NormalizeAll converts positions and stamps them with a scan.
func NormalizeAll(positions []model.EnrichedPosition, scanID string, scannedAt time.Time) []model.PositionRow {
	rows := make([]model.PositionRow, 0, len(positions))
	for _, p := range positions {
		row := Normalize(p)
		row.ScanID = scanID
		row.ScannedAt = scannedAt
		rows = append(rows, row)
	}
	return rows
}

// FilterByStatus keeps rows whose status matches, ignoring case. An empty
// status keeps everything.
func FilterByStatus(rows []model.PositionRow, status string) []model.PositionRow {
	if status == "" {
		return rows
	}
	out := make([]model.PositionRow, 0, len(rows))
	for _, row := range rows {
		if strings.EqualFold(row.Status, status) {
			out = append(out, row)
		}
	}
	return out
}

// SortPositions returns a sorted copy of rows. Unknown keys sort by tvl and
// unknown orders sort descending.
func SortPositions(rows []model.PositionRow, by, order string) []model.PositionRow {
	sorted := make([]model.PositionRow, len(rows))
	copy(sorted, rows)

	asc := strings.EqualFold(order, OrderAsc)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareRows(sorted[i], sorted[j], strings.ToLower(by))
		if asc {
			return c < 0
		}
		return c > 0
	})
	return sorted
}

func compareRows(a, b model.PositionRow, by string) int {
	switch by {
	case SortByRewards:
		return a.FeesUSD.Add(a.RewardUSD).Cmp(b.FeesUSD.Add(b.RewardUSD))
	case SortByFees:
		return a.FeesUSD.Cmp(b.FeesUSD)
	case SortByID:
		ai, okA := new(big.Int).SetString(a.ID, 10)
		bi, okB := new(big.Int).SetString(b.ID, 10)
		if !okA || !okB {
			return strings.Compare(a.ID, b.ID)
		}
		return ai.Cmp(bi)
	default:
		return a.TVLUSD.Cmp(b.TVLUSD)
	}
}

// Summarize counts rows by status and totals their USD values.
func Summarize(rows []model.PositionRow) Summary {
	summary := Summary{
		TotalCount: len(rows),
		TVLUSD:     decimal.Zero,
		FeesUSD:    decimal.Zero,
		RewardsUSD: decimal.Zero,
	}
	for _, row := range rows {
		if row.Status == model.StatusActive {
			summary.Active++
		} else {
			summary.Inactive++
		}
		if row.InRange {
			summary.InRange++
		}
		summary.TVLUSD = summary.TVLUSD.Add(row.TVLUSD)
		summary.FeesUSD = summary.FeesUSD.Add(row.FeesUSD)
		summary.RewardsUSD = summary.RewardsUSD.Add(row.RewardUSD)
	}
	return summary
}
