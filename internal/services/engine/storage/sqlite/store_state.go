package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
)

// GetState loads the persisted ordinal and calculated state.
func (s *Store) GetState(ctx context.Context) (uint64, state.CalculatedState, error) {
	if err := ctx.Err(); err != nil {
		return 0, state.CalculatedState{}, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, state.CalculatedState{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT ordinal, state_json FROM engine_state WHERE id = 1`)

	var ordinal int64
	var stateJSON string
	if err := row.Scan(&ordinal, &stateJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, state.CalculatedState{}, storage.ErrNotFound
		}
		return 0, state.CalculatedState{}, fmt.Errorf("get engine state: %w", err)
	}

	calc := state.NewCalculatedState()
	if err := json.Unmarshal([]byte(stateJSON), &calc); err != nil {
		return 0, state.CalculatedState{}, fmt.Errorf("decode engine state: %w", err)
	}
	return uint64(ordinal), calc, nil
}

// SetState durably replaces the persisted ordinal and calculated state.
func (s *Store) SetState(ctx context.Context, ordinal uint64, calc state.CalculatedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	encoded, err := json.Marshal(calc)
	if err != nil {
		return fmt.Errorf("encode engine state: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO engine_state (id, ordinal, state_json, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   ordinal = excluded.ordinal,
		   state_json = excluded.state_json,
		   updated_at = excluded.updated_at`,
		int64(ordinal),
		string(encoded),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set engine state: %w", err)
	}
	return nil
}
