// Package archive defines append-only stores for computed snapshots and
// boards. The archive is an analytical sink: the aggregation engine never
// reads it back, so losing it costs history, not correctness.
package archive

import (
	"context"
	"errors"

	"solana-token-atlas/internal/domain"
)

// ErrNotFound is returned when no archived result exists for a mint.
var ErrNotFound = errors.New("archive: not found")

// SnapshotStore archives holder snapshots.
type SnapshotStore interface {
	// Insert appends one snapshot observation.
	Insert(ctx context.Context, snap *domain.Snapshot) error

	// GetByMint retrieves all archived snapshots for a mint, ordered by
	// GeneratedAt ascending.
	GetByMint(ctx context.Context, mint string) ([]*domain.Snapshot, error)

	// GetLatest retrieves the most recent snapshot for a mint. Returns
	// ErrNotFound when none exists.
	GetLatest(ctx context.Context, mint string) (*domain.Snapshot, error)
}

// BoardStore archives high-volume boards.
type BoardStore interface {
	// Insert appends one board observation.
	Insert(ctx context.Context, board *domain.Board) error

	// GetByMint retrieves all archived boards for a mint, ordered by
	// GeneratedAt ascending.
	GetByMint(ctx context.Context, mint string) ([]*domain.Board, error)
}
