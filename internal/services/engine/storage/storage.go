// Package storage defines the persistence interfaces the engine core
// requires. The calculated state is externally durable: the engine only needs
// a get/set hook for it plus ordinal-indexed snapshot records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/snapshot"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// StateStore persists the engine's current calculated state together with the
// ordinal of the last applied snapshot.
type StateStore interface {
	// GetState loads the persisted ordinal and calculated state. Returns
	// ErrNotFound when nothing has been persisted yet.
	GetState(ctx context.Context) (uint64, state.CalculatedState, error)
	// SetState durably replaces the persisted ordinal and calculated state.
	SetState(ctx context.Context, ordinal uint64, calc state.CalculatedState) error
}

// SnapshotStore persists immutable ordinal-tagged snapshots.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snap snapshot.Snapshot) error
	// GetSnapshot returns the snapshot at an exact ordinal.
	GetSnapshot(ctx context.Context, ordinal uint64) (snapshot.Snapshot, error)
	// LatestSnapshot returns the snapshot with the highest ordinal.
	LatestSnapshot(ctx context.Context) (snapshot.Snapshot, error)
	// ListSnapshots returns snapshots ordered by ordinal descending.
	ListSnapshots(ctx context.Context, limit int) ([]snapshot.Snapshot, error)
}

// TelemetryEvent records one engine operation for operational visibility.
type TelemetryEvent struct {
	Timestamp time.Time
	Operation string
	Code      string
	Message   string
}

// TelemetryStore persists operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
	// ListTelemetryEvents returns events ordered by time descending.
	ListTelemetryEvents(ctx context.Context, limit int) ([]TelemetryEvent, error)
}

// Store bundles every persistence concern the engine host wires.
type Store interface {
	StateStore
	SnapshotStore
	TelemetryStore
	Close() error
}
