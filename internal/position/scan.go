package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"positionScope/internal/model"
)

// Sink receives the rows of every scan.
type Sink interface {
	Write(ctx context.Context, rows []model.PositionRow) error
}

// ScanOptions tunes one scan.
type ScanOptions struct {
	Refresh     bool
	Concurrency int
	Status      string
	SortBy      string
	Order       string
}

// ScanReport is the outcome of scanning one wallet.
type ScanReport struct {
	ID         uuid.UUID           `json:"id"`
	Wallet     common.Address      `json:"wallet"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Block      uint64              `json:"block,omitempty"`
	Total      int                 `json:"total"`
	Dropped    int                 `json:"dropped"`
	Summary    Summary             `json:"summary"`
	Rows       []model.PositionRow `json:"rows"`
}

// BlockSource reports the chain head a scan reads at.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ScanObserver sees every wallet scan, failed or not.
type ScanObserver func(wallet common.Address, report ScanReport, elapsed time.Duration, err error)

// Scanner runs discovery, enrichment and normalization for wallets and hands
// the rows to its sinks.
type Scanner struct {
	discoverer *Discoverer
	enricher   *Enricher
	sinks      []Sink
	blocks     BlockSource
	observer   ScanObserver
	now        func() time.Time
	logger     *zap.Logger
}

type ScannerOption func(*Scanner)

// WithBlockSource stamps rows with the block number read before enrichment.
func WithBlockSource(blocks BlockSource) ScannerOption {
	return func(s *Scanner) { s.blocks = blocks }
}

func WithScanObserver(observer ScanObserver) ScannerOption {
	return func(s *Scanner) { s.observer = observer }
}

func NewScanner(discoverer *Discoverer, enricher *Enricher, sinks []Sink, logger *zap.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		discoverer: discoverer,
		enricher:   enricher,
		sinks:      sinks,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan values every position held by wallet. Report rows are filtered and
// sorted per opts; sinks receive all rows.
func (s *Scanner) Scan(ctx context.Context, wallet common.Address, opts ScanOptions) (ScanReport, error) {
	report := ScanReport{
		ID:        uuid.New(),
		Wallet:    wallet,
		StartedAt: s.now().UTC(),
		Rows:      []model.PositionRow{},
	}
	logger := s.logger.With(zap.String("scan_id", report.ID.String()), zap.String("wallet", wallet.Hex()))

	ids, err := s.discoverer.FindPositions(ctx, wallet, opts.Refresh)
	if err != nil {
		return report, fmt.Errorf("discover %s: %w", wallet.Hex(), err)
	}
	report.Total = len(ids)

	var rows []model.PositionRow
	if len(ids) > 0 {
		report.Block = s.blockNumber(ctx, logger)
		result, err := s.enricher.EnrichPositions(ctx, ids, wallet, opts.Concurrency)
		if err != nil {
			return report, fmt.Errorf("enrich %s: %w", wallet.Hex(), err)
		}
		report.Dropped = result.Dropped
		rows = NormalizeAll(result.Positions, report.ID.String(), report.StartedAt)
		for i := range rows {
			rows[i].BlockNumber = report.Block
		}
	}

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, rows); err != nil {
			return report, fmt.Errorf("write rows: %w", err)
		}
	}

	report.Summary = Summarize(rows)
	if filtered := SortPositions(FilterByStatus(rows, opts.Status), opts.SortBy, opts.Order); len(filtered) > 0 {
		report.Rows = filtered
	}
	report.FinishedAt = s.now().UTC()

	logger.Info("scan finished",
		zap.Uint64("block", report.Block),
		zap.Int("total", report.Total),
		zap.Int("dropped", report.Dropped),
		zap.Int("active", report.Summary.Active),
		zap.String("tvl_usd", report.Summary.TVLUSD.StringFixed(2)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// blockNumber returns 0 when no source is set or the read fails.
func (s *Scanner) blockNumber(ctx context.Context, logger *zap.Logger) uint64 {
	if s.blocks == nil {
		return 0
	}
	block, err := s.blocks.BlockNumber(ctx)
	if err != nil {
		logger.Warn("block number unavailable", zap.Error(err))
		return 0
	}
	return block
}

// ScanAll scans wallets one after another. A failing wallet does not stop the
// others; its error is joined into the returned error.
func (s *Scanner) ScanAll(ctx context.Context, wallets []common.Address, opts ScanOptions) ([]ScanReport, error) {
	reports := make([]ScanReport, 0, len(wallets))
	var errs []error
	for _, wallet := range wallets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := s.now()
		report, err := s.Scan(ctx, wallet, opts)
		if s.observer != nil {
			s.observer(wallet, report, s.now().Sub(start), err)
		}
		if err != nil {
			s.logger.Warn("scan failed", zap.String("wallet", wallet.Hex()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
