package snapshot

import (
	"fmt"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
)

// ErrOrdinalViolation indicates a snapshot whose ordinal does not strictly
// increase the current one.
var ErrOrdinalViolation = apperrors.New(apperrors.CodeSnapshotOrdinalViolation, "snapshot ordinal must strictly increase")

// Manager tracks the current snapshot ordinal and enforces strict ordering at
// the apply boundary. It holds no other state; snapshot contents live with the
// persistence layer.
//
// Manager is not safe for concurrent use on its own: the caller serializes
// Validate and Apply with concurrent reduction so a torn calculated state is
// never observed.
type Manager struct {
	current uint64
}

// NewManager creates a manager seeded with the ordinal of the most recently
// applied snapshot (zero when none has been applied).
func NewManager(current uint64) *Manager {
	return &Manager{current: current}
}

// Current returns the ordinal of the last applied snapshot.
func (m *Manager) Current() uint64 {
	return m.current
}

// Validate succeeds iff the candidate's ordinal is strictly greater than the
// current one. Equal or regressing ordinals fail with an ordinal violation and
// cause no state change.
func (m *Manager) Validate(candidate Snapshot) error {
	if candidate.Ordinal <= m.current {
		return apperrors.WithMetadata(
			apperrors.CodeSnapshotOrdinalViolation,
			fmt.Sprintf("snapshot ordinal %d does not advance current ordinal %d", candidate.Ordinal, m.current),
			map[string]string{
				"candidate_ordinal": fmt.Sprintf("%d", candidate.Ordinal),
				"current_ordinal":   fmt.Sprintf("%d", m.current),
			},
		)
	}
	return nil
}

// Apply re-validates the candidate and advances the current ordinal. Applying
// the same snapshot twice fails the second time: re-validation is the guard
// against double-apply.
func (m *Manager) Apply(candidate Snapshot) error {
	if err := m.Validate(candidate); err != nil {
		return err
	}
	m.current = candidate.Ordinal
	return nil
}
