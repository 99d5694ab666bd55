// Package snapshot provides ordinal-tagged checkpoints of the calculated
// state. Ordinals are strictly increasing and are the single source of
// happens-before ordering for checkpoints.
package snapshot

import (
	"time"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
)

// Snapshot is an immutable checkpoint of the calculated state. Once created
// it is owned by the snapshot manager and persistence layer and never mutated;
// State is deep-copied at capture so later reductions cannot reach into it.
type Snapshot struct {
	// Ordinal identifies this snapshot's position in the checkpoint sequence.
	Ordinal uint64 `json:"ordinal"`
	// State is the calculated state captured at the ordinal.
	State state.CalculatedState `json:"state"`
	// TakenAt records when the snapshot was captured. Informational only; it
	// carries no ordering semantics.
	TakenAt time.Time `json:"taken_at"`
}

// Take packages a deep copy of calc tagged with lastOrdinal+1. It reads only;
// application state is never mutated by taking a snapshot.
func Take(calc state.CalculatedState, lastOrdinal uint64, now time.Time) Snapshot {
	return Snapshot{
		Ordinal: lastOrdinal + 1,
		State:   calc.Clone(),
		TakenAt: now.UTC(),
	}
}
