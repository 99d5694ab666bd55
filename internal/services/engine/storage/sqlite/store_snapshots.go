package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/snapshot"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
)

// PutSnapshot stores a snapshot. Snapshots are immutable; writing the same
// ordinal twice is refused by the primary key.
func (s *Store) PutSnapshot(ctx context.Context, snap snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	encoded, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO snapshots (ordinal, state_json, taken_at) VALUES (?, ?, ?)`,
		int64(snap.Ordinal),
		string(encoded),
		toMillis(snap.TakenAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ordinal.
func (s *Store) GetSnapshot(ctx context.Context, ordinal uint64) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return snapshot.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT ordinal, state_json, taken_at FROM snapshots WHERE ordinal = ?`,
		int64(ordinal),
	)
	return scanSnapshot(row)
}

// LatestSnapshot retrieves the snapshot with the highest ordinal.
func (s *Store) LatestSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return snapshot.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT ordinal, state_json, taken_at FROM snapshots ORDER BY ordinal DESC LIMIT 1`,
	)
	return scanSnapshot(row)
}

// ListSnapshots returns snapshots ordered by ordinal descending.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT ordinal, state_json, taken_at FROM snapshots ORDER BY ordinal DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Snapshot
	for rows.Next() {
		var ordinal int64
		var stateJSON string
		var takenAt int64
		if err := rows.Scan(&ordinal, &stateJSON, &takenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(ordinal, stateJSON, takenAt)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func scanSnapshot(row *sql.Row) (snapshot.Snapshot, error) {
	var ordinal int64
	var stateJSON string
	var takenAt int64
	if err := row.Scan(&ordinal, &stateJSON, &takenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, storage.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return decodeSnapshot(ordinal, stateJSON, takenAt)
}

func decodeSnapshot(ordinal int64, stateJSON string, takenAt int64) (snapshot.Snapshot, error) {
	calc := state.NewCalculatedState()
	if err := json.Unmarshal([]byte(stateJSON), &calc); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("decode snapshot state: %w", err)
	}
	return snapshot.Snapshot{
		Ordinal: uint64(ordinal),
		State:   calc,
		TakenAt: fromMillis(takenAt),
	}, nil
}
