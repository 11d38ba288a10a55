package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/archive"
	"solana-token-atlas/internal/domain"
)

// BoardStore implements archive.BoardStore using ClickHouse.
type BoardStore struct {
	conn *Conn
}

// NewBoardStore creates a new BoardStore.
func NewBoardStore(conn *Conn) *BoardStore {
	return &BoardStore{conn: conn}
}

// Compile-time interface check.
var _ archive.BoardStore = (*BoardStore)(nil)

// Insert appends one board observation.
func (s *BoardStore) Insert(ctx context.Context, board *domain.Board) error {
	entries, err := json.Marshal(board.Entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO volume_boards (
			mint, entries_json, scanned_sigs, scanned_txs, min_total, generated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`, board.Mint, string(entries), uint32(board.ScannedSigs),
		uint32(board.ScannedTxs), board.MinTotal.String(), board.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

// GetByMint retrieves all archived boards for a mint, GeneratedAt ascending.
func (s *BoardStore) GetByMint(ctx context.Context, mint string) ([]*domain.Board, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, entries_json, scanned_sigs, scanned_txs, min_total, generated_at
		FROM volume_boards
		WHERE mint = ?
		ORDER BY generated_at ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	defer rows.Close()

	var out []*domain.Board
	for rows.Next() {
		var (
			board       domain.Board
			entriesJSON string
			scannedSigs uint32
			scannedTxs  uint32
			minTotal    string
		)
		if err := rows.Scan(&board.Mint, &entriesJSON, &scannedSigs,
			&scannedTxs, &minTotal, &board.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan board row: %w", err)
		}

		board.ScannedSigs = int(scannedSigs)
		board.ScannedTxs = int(scannedTxs)

		parsed, err := decimal.NewFromString(minTotal)
		if err != nil {
			return nil, fmt.Errorf("parse min total %q: %w", minTotal, err)
		}
		board.MinTotal = parsed

		if err := json.Unmarshal([]byte(entriesJSON), &board.Entries); err != nil {
			return nil, fmt.Errorf("unmarshal entries: %w", err)
		}
		out = append(out, &board)
	}
	return out, rows.Err()
}
