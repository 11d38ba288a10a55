package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/archive"
	"solana-token-atlas/internal/domain"
)

// SnapshotStore implements archive.SnapshotStore using ClickHouse. Node and
// edge lists are archived as JSON columns; the archive is an analytical
// sink, not a query surface for individual holders.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ archive.SnapshotStore = (*SnapshotStore)(nil)

// Insert appends one snapshot observation.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.Snapshot) error {
	nodes, err := json.Marshal(snap.Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	edges, err := json.Marshal(snap.Edges)
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO holder_snapshots (
			mint, name, decimals, supply, nodes_json, edges_json, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.Mint, snap.Name, uint8(snap.Decimals), snap.Supply.String(),
		string(nodes), string(edges), snap.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByMint retrieves all archived snapshots for a mint, GeneratedAt ascending.
func (s *SnapshotStore) GetByMint(ctx context.Context, mint string) ([]*domain.Snapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, name, decimals, supply, nodes_json, edges_json, generated_at
		FROM holder_snapshots
		WHERE mint = ?
		ORDER BY generated_at ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// GetLatest retrieves the most recent snapshot for a mint.
func (s *SnapshotStore) GetLatest(ctx context.Context, mint string) (*domain.Snapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, name, decimals, supply, nodes_json, edges_json, generated_at
		FROM holder_snapshots
		WHERE mint = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, archive.ErrNotFound
	}
	return scanSnapshot(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var (
		snap      domain.Snapshot
		decimals  uint8
		supply    string
		nodesJSON string
		edgesJSON string
	)
	if err := row.Scan(&snap.Mint, &snap.Name, &decimals, &supply,
		&nodesJSON, &edgesJSON, &snap.GeneratedAt); err != nil {
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}

	snap.Decimals = int(decimals)

	parsed, err := decimal.NewFromString(supply)
	if err != nil {
		return nil, fmt.Errorf("parse supply %q: %w", supply, err)
	}
	snap.Supply = parsed

	if err := json.Unmarshal([]byte(nodesJSON), &snap.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edgesJSON), &snap.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	return &snap, nil
}
