package storage

import (
	"context"

	"positionScope/internal/model"
)

// Storage is a sink for normalized position rows.
type Storage interface {
	Write(ctx context.Context, rows []model.PositionRow) error
}
