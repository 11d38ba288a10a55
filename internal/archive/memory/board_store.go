package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-atlas/internal/archive"
	"solana-token-atlas/internal/domain"
)

// BoardStore is an in-memory implementation of archive.BoardStore.
type BoardStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Board // keyed by mint
}

// NewBoardStore creates a new in-memory board store.
func NewBoardStore() *BoardStore {
	return &BoardStore{data: make(map[string][]*domain.Board)}
}

var _ archive.BoardStore = (*BoardStore)(nil)

// Insert appends one board observation.
func (s *BoardStore) Insert(_ context.Context, board *domain.Board) error {
	cp := *board
	cp.Entries = append([]domain.BoardEntry(nil), board.Entries...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[board.Mint] = append(s.data[board.Mint], &cp)
	return nil
}

// GetByMint retrieves all archived boards for a mint, GeneratedAt ascending.
func (s *BoardStore) GetByMint(_ context.Context, mint string) ([]*domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]*domain.Board(nil), s.data[mint]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt < out[j].GeneratedAt
	})
	return out, nil
}
