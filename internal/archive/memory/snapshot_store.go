// Package memory holds in-memory archive backends, used in tests and when
// no ClickHouse DSN is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-atlas/internal/archive"
	"solana-token-atlas/internal/domain"
)

// SnapshotStore is an in-memory implementation of archive.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Snapshot // keyed by mint
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string][]*domain.Snapshot)}
}

var _ archive.SnapshotStore = (*SnapshotStore)(nil)

// Insert appends one snapshot observation.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.Snapshot) error {
	cp := *snap
	cp.Nodes = append([]domain.HolderNode(nil), snap.Nodes...)
	cp.Edges = append([]domain.TransferEdge(nil), snap.Edges...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.Mint] = append(s.data[snap.Mint], &cp)
	return nil
}

// GetByMint retrieves all archived snapshots for a mint, GeneratedAt ascending.
func (s *SnapshotStore) GetByMint(_ context.Context, mint string) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]*domain.Snapshot(nil), s.data[mint]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt < out[j].GeneratedAt
	})
	return out, nil
}

// GetLatest retrieves the most recent snapshot for a mint.
func (s *SnapshotStore) GetLatest(ctx context.Context, mint string) (*domain.Snapshot, error) {
	snaps, err := s.GetByMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, archive.ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}
