package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	wallet_address   TEXT        NOT NULL,
	token_id         NUMERIC     NOT NULL,
	pair_label       TEXT        NOT NULL,
	pool_address     TEXT        NOT NULL,
	token0_address   TEXT        NOT NULL,
	token0_symbol    TEXT        NOT NULL,
	token0_decimals  SMALLINT    NOT NULL,
	token1_address   TEXT        NOT NULL,
	token1_symbol    TEXT        NOT NULL,
	token1_decimals  SMALLINT    NOT NULL,
	fee              INTEGER     NOT NULL,
	tick_lower       INTEGER     NOT NULL,
	tick_upper       INTEGER     NOT NULL,
	current_tick     INTEGER     NOT NULL,
	amount0          NUMERIC     NOT NULL,
	amount1          NUMERIC     NOT NULL,
	fee0             NUMERIC     NOT NULL,
	fee1             NUMERIC     NOT NULL,
	price0_usd       NUMERIC     NOT NULL,
	price1_usd       NUMERIC     NOT NULL,
	tvl_usd          NUMERIC     NOT NULL,
	fees_usd         NUMERIC     NOT NULL,
	reward_amount    NUMERIC     NOT NULL,
	reward_usd       NUMERIC     NOT NULL,
	in_range         BOOLEAN     NOT NULL,
	status           TEXT        NOT NULL,
	position_created TIMESTAMPTZ,
	warnings         TEXT[]      NOT NULL DEFAULT '{}',
	scan_id          UUID,
	scanned_at       TIMESTAMPTZ NOT NULL,
	block_number     BIGINT      NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (wallet_address, token_id)
);

ALTER TABLE positions ADD COLUMN IF NOT EXISTS block_number BIGINT NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS scan_state (
	wallet_address TEXT PRIMARY KEY,
	last_scan_id   UUID,
	last_scanned_at TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const upsertPositionSQL = `
	INSERT INTO positions (
		wallet_address, token_id, pair_label, pool_address,
		token0_address, token0_symbol, token0_decimals,
		token1_address, token1_symbol, token1_decimals,
		fee, tick_lower, tick_upper, current_tick,
		amount0, amount1, fee0, fee1, price0_usd, price1_usd,
		tvl_usd, fees_usd, reward_amount, reward_usd,
		in_range, status, position_created, warnings, scan_id, scanned_at,
		block_number, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,now(),now())
	ON CONFLICT (wallet_address, token_id)
	DO UPDATE SET
		pair_label = EXCLUDED.pair_label,
		pool_address = EXCLUDED.pool_address,
		token0_symbol = EXCLUDED.token0_symbol,
		token0_decimals = EXCLUDED.token0_decimals,
		token1_symbol = EXCLUDED.token1_symbol,
		token1_decimals = EXCLUDED.token1_decimals,
		current_tick = EXCLUDED.current_tick,
		amount0 = EXCLUDED.amount0,
		amount1 = EXCLUDED.amount1,
		fee0 = EXCLUDED.fee0,
		fee1 = EXCLUDED.fee1,
		price0_usd = EXCLUDED.price0_usd,
		price1_usd = EXCLUDED.price1_usd,
		tvl_usd = EXCLUDED.tvl_usd,
		fees_usd = EXCLUDED.fees_usd,
		reward_amount = EXCLUDED.reward_amount,
		reward_usd = EXCLUDED.reward_usd,
		in_range = EXCLUDED.in_range,
		status = EXCLUDED.status,
		position_created = COALESCE(EXCLUDED.position_created, positions.position_created),
		warnings = EXCLUDED.warnings,
		scan_id = EXCLUDED.scan_id,
		scanned_at = EXCLUDED.scanned_at,
		block_number = EXCLUDED.block_number,
		updated_at = now()
	WHERE positions.scanned_at <= EXCLUDED.scanned_at
`

const saveScanSQL = `
	INSERT INTO scan_state (wallet_address, last_scan_id, last_scanned_at, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (wallet_address) DO UPDATE
	SET last_scan_id = EXCLUDED.last_scan_id, last_scanned_at = EXCLUDED.last_scanned_at, updated_at = now()
`

// Store persists the latest snapshot of every position in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// Write upserts rows keyed by (wallet, token id) and records the scan per
// wallet. Older scans never overwrite newer ones.
func (s *Store) Write(ctx context.Context, rows []model.PositionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := buildBatch(rows)
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert positions: %w", err)
		}
	}
	return nil
}

func buildBatch(rows []model.PositionRow) *pgx.Batch {
	batch := &pgx.Batch{}
	type scan struct {
		id string
		at time.Time
	}
	latest := make(map[string]scan)
	var wallets []string

	for _, row := range rows {
		wallet := strings.ToLower(row.WalletAddress)
		warnings := row.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		batch.Queue(upsertPositionSQL,
			wallet,
			row.ID,
			row.PairLabel,
			strings.ToLower(row.PoolAddress),
			strings.ToLower(row.Token0.Address),
			row.Token0.Symbol,
			int16(row.Token0.Decimals),
			strings.ToLower(row.Token1.Address),
			row.Token1.Symbol,
			int16(row.Token1.Decimals),
			int32(row.FeeTierBps),
			row.TickLower,
			row.TickUpper,
			row.CurrentTick,
			row.Amount0,
			row.Amount1,
			row.Fee0,
			row.Fee1,
			row.Price0USD,
			row.Price1USD,
			row.TVLUSD,
			row.FeesUSD,
			row.RewardAmount,
			row.RewardUSD,
			row.InRange,
			row.Status,
			row.CreatedAt,
			warnings,
			nullableUUID(row.ScanID),
			row.ScannedAt,
			int64(row.BlockNumber),
		)

		prev, ok := latest[wallet]
		if !ok {
			wallets = append(wallets, wallet)
		}
		if !ok || row.ScannedAt.After(prev.at) {
			latest[wallet] = scan{id: row.ScanID, at: row.ScannedAt}
		}
	}

	for _, wallet := range wallets {
		sc := latest[wallet]
		batch.Queue(saveScanSQL, wallet, nullableUUID(sc.id), sc.at)
	}
	return batch
}

// LastScan returns when wallet was last written.
func (s *Store) LastScan(ctx context.Context, wallet string) (time.Time, bool, error) {
	if wallet == "" {
		return time.Time{}, false, fmt.Errorf("wallet required")
	}
	var at time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_scanned_at FROM scan_state WHERE wallet_address=$1`, strings.ToLower(wallet))
	if err := row.Scan(&at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return at, true, nil
}

func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
