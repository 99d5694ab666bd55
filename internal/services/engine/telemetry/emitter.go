// Package telemetry records operational events emitted by the engine host.
package telemetry

import (
	"context"
	"time"

	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
)

// Operation names used by the engine host.
const (
	OpBatchApplied    = "batch.applied"
	OpBatchRejected   = "batch.rejected"
	OpBatchFailed     = "batch.failed"
	OpSnapshotTaken   = "snapshot.taken"
	OpSnapshotApplied = "snapshot.applied"
	OpSnapshotRefused = "snapshot.refused"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter. A nil store yields a no-op
// emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// WithClock overrides the emitter clock. Used by tests.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	e.clock = clock
	return e
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}
