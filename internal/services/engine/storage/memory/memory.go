// Package memory stores engine state and snapshots in memory. It backs tests
// and ephemeral deployments; durable deployments use the sqlite store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/snapshot"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
)

// Store is a mutex-guarded in-memory implementation of storage.Store. All
// state crossing the boundary is deep-copied so callers can never alias the
// stored records.
type Store struct {
	mu        sync.Mutex
	hasState  bool
	ordinal   uint64
	calc      state.CalculatedState
	snapshots map[uint64]snapshot.Snapshot
	telemetry []storage.TelemetryEvent
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{snapshots: make(map[uint64]snapshot.Snapshot)}
}

// GetState loads the persisted ordinal and calculated state.
func (s *Store) GetState(ctx context.Context) (uint64, state.CalculatedState, error) {
	if err := ctx.Err(); err != nil {
		return 0, state.CalculatedState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasState {
		return 0, state.CalculatedState{}, storage.ErrNotFound
	}
	return s.ordinal, s.calc.Clone(), nil
}

// SetState replaces the persisted ordinal and calculated state.
func (s *Store) SetState(ctx context.Context, ordinal uint64, calc state.CalculatedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasState = true
	s.ordinal = ordinal
	s.calc = calc.Clone()
	return nil
}

// PutSnapshot stores a snapshot keyed by ordinal.
func (s *Store) PutSnapshot(ctx context.Context, snap snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.Ordinal] = snapshot.Snapshot{
		Ordinal: snap.Ordinal,
		State:   snap.State.Clone(),
		TakenAt: snap.TakenAt,
	}
	return nil
}

// GetSnapshot returns the snapshot at an exact ordinal.
func (s *Store) GetSnapshot(ctx context.Context, ordinal uint64) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[ordinal]
	if !ok {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	return snapshot.Snapshot{Ordinal: snap.Ordinal, State: snap.State.Clone(), TakenAt: snap.TakenAt}, nil
}

// LatestSnapshot returns the snapshot with the highest ordinal.
func (s *Store) LatestSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var latest uint64
	found := false
	for ordinal := range s.snapshots {
		if !found || ordinal > latest {
			latest = ordinal
			found = true
		}
	}
	if !found {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	snap := s.snapshots[latest]
	return snapshot.Snapshot{Ordinal: snap.Ordinal, State: snap.State.Clone(), TakenAt: snap.TakenAt}, nil
}

// ListSnapshots returns snapshots ordered by ordinal descending.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ordinals := make([]uint64, 0, len(s.snapshots))
	for ordinal := range s.snapshots {
		ordinals = append(ordinals, ordinal)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] > ordinals[j] })

	if limit > 0 && len(ordinals) > limit {
		ordinals = ordinals[:limit]
	}

	out := make([]snapshot.Snapshot, 0, len(ordinals))
	for _, ordinal := range ordinals {
		snap := s.snapshots[ordinal]
		out = append(out, snapshot.Snapshot{Ordinal: snap.Ordinal, State: snap.State.Clone(), TakenAt: snap.TakenAt})
	}
	return out, nil
}

// AppendTelemetryEvent records an operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.telemetry = append(s.telemetry, evt)
	return nil
}

// ListTelemetryEvents returns events ordered by time descending.
func (s *Store) ListTelemetryEvents(ctx context.Context, limit int) ([]storage.TelemetryEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]storage.TelemetryEvent, len(s.telemetry))
	copy(out, s.telemetry)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close releases nothing; it satisfies storage.Store.
func (s *Store) Close() error {
	return nil
}
