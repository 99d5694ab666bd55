// Package app hosts the engine: it wires the validator, reducer, snapshot
// manager, and persistence behind a single serialized entrypoint, and serves
// the process over gRPC.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
	"github.com/surveyledger/surveyledger/internal/platform/id"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/engine"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/snapshot"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/update"
	"github.com/surveyledger/surveyledger/internal/services/engine/integrity"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
	"github.com/surveyledger/surveyledger/internal/services/engine/telemetry"
)

// Options configures an engine host.
type Options struct {
	// Ledger settles token movement. Required.
	Ledger engine.Ledger
	// Limiter gates per-identity request budgets. Optional; nil disables
	// rate limiting.
	Limiter engine.RateLimiter
	// Store persists calculated state, snapshots, and telemetry. Optional;
	// nil keeps the engine purely in-memory.
	Store storage.Store
	// Hasher digests calculated state. Defaults to the canonical JSON hasher.
	Hasher engine.Hasher
	// Clock stamps snapshots and telemetry. Defaults to time.Now.
	Clock func() time.Time
}

// Engine is the serialized host around the deterministic core. All mutating
// operations take the same mutex, so a reduction and a snapshot apply can
// never interleave and readers never observe a torn state.
type Engine struct {
	mu sync.Mutex

	reducer *engine.Reducer
	manager *snapshot.Manager
	store   storage.Store
	hasher  engine.Hasher
	emitter *telemetry.Emitter
	clock   func() time.Time

	validator *engine.Validator

	st   state.State
	calc state.CalculatedState
}

// BatchResult reports the outcome of a batch application.
type BatchResult struct {
	// BatchID correlates this batch across telemetry.
	BatchID string
	// Rejections lists per-update policy violations. Rejected updates do not
	// halt their siblings.
	Rejections []update.Rejection
	// Applied counts updates folded into state.
	Applied int
}

// New creates an engine host, restoring calculated state and the snapshot
// ordinal from the store when one is configured and has prior state.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if opts.Hasher == nil {
		opts.Hasher = integrity.Hasher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	validator := engine.NewValidator(opts.Limiter)
	e := &Engine{
		reducer:   engine.NewReducer(opts.Ledger, validator),
		validator: validator,
		store:     opts.Store,
		hasher:    opts.Hasher,
		clock:     opts.Clock,
		st:        state.NewState(),
		calc:      state.NewCalculatedState(),
	}
	if opts.Store != nil {
		e.emitter = telemetry.NewEmitter(opts.Store)
	}

	ordinal := uint64(0)
	if opts.Store != nil {
		persistedOrdinal, calc, err := opts.Store.GetState(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Fresh store; start empty.
		case err != nil:
			return nil, fmt.Errorf("restore state: %w", err)
		default:
			ordinal = persistedOrdinal
			e.calc = calc
			e.st = rehydrate(calc)
		}
	}
	e.manager = snapshot.NewManager(ordinal)
	return e, nil
}

// ValidateUpdate checks a single update without mutating state. The limiter's
// budget bookkeeping still applies.
func (e *Engine) ValidateUpdate(ctx context.Context, upd update.Update) error {
	return e.validator.Validate(ctx, upd, upd.Actor())
}

// ApplyBatch validates and folds an ordered batch of updates. Policy
// violations come back as rejections; the first reference or ledger failure
// aborts the batch with the state as of the last successful step kept, since
// the ledger has already settled those steps.
func (e *Engine) ApplyBatch(ctx context.Context, updates []update.Update) (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	batchID, err := id.NewID()
	if err != nil {
		return BatchResult{}, fmt.Errorf("assign batch id: %w", err)
	}

	before := e.calc.TotalSurveys + e.calc.TotalResponses
	nextState, nextCalc, rejections, err := e.reducer.ApplyBatch(ctx, e.st, e.calc, updates)

	e.st, e.calc = nextState, nextCalc
	result := BatchResult{
		BatchID:    batchID,
		Rejections: rejections,
		Applied:    int(nextCalc.TotalSurveys + nextCalc.TotalResponses - before),
	}

	if err != nil {
		e.emit(ctx, telemetry.OpBatchFailed, string(apperrors.GetCode(err)),
			fmt.Sprintf("batch %s: %v", batchID, err))
		if result.Applied > 0 {
			if persistErr := e.persistLocked(ctx); persistErr != nil {
				return result, errors.Join(err, persistErr)
			}
		}
		return result, err
	}

	if persistErr := e.persistLocked(ctx); persistErr != nil {
		return result, persistErr
	}
	if len(rejections) > 0 {
		e.emit(ctx, telemetry.OpBatchRejected, string(rejections[0].Code),
			fmt.Sprintf("batch %s: %d of %d updates rejected", batchID, len(rejections), len(updates)))
	}
	e.emit(ctx, telemetry.OpBatchApplied, "OK",
		fmt.Sprintf("batch %s: %d updates applied", batchID, result.Applied))
	return result, nil
}

// CalculatedState returns a deep copy of the current projection.
func (e *Engine) CalculatedState() state.CalculatedState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calc.Clone()
}

// StateDigest returns the canonical content digest of the current projection.
func (e *Engine) StateDigest() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.Digest(e.calc)
}

// CurrentOrdinal returns the ordinal of the last applied snapshot.
func (e *Engine) CurrentOrdinal() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Current()
}

// TakeSnapshot captures the current projection as the next checkpoint,
// advances the ordinal, and persists both the snapshot record and the state
// row. Taking a snapshot never mutates application state.
func (e *Engine) TakeSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := snapshot.Take(e.calc, e.manager.Current(), e.clock())
	if err := e.manager.Apply(snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	if e.store != nil {
		if err := e.store.PutSnapshot(ctx, snap); err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("persist snapshot: %w", err)
		}
	}
	if err := e.persistLocked(ctx); err != nil {
		return snapshot.Snapshot{}, err
	}
	e.emit(ctx, telemetry.OpSnapshotTaken, "OK", fmt.Sprintf("snapshot ordinal %d", snap.Ordinal))
	return snap, nil
}

// ValidateSnapshot checks whether a candidate snapshot would be accepted,
// without applying it.
func (e *Engine) ValidateSnapshot(candidate snapshot.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Validate(candidate)
}

// ApplySnapshot replaces the projection with an externally supplied candidate
// after the ordinal check passes. Raw state is rehydrated from the snapshot's
// projection. A refused candidate causes no state change.
func (e *Engine) ApplySnapshot(ctx context.Context, candidate snapshot.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.manager.Apply(candidate); err != nil {
		e.emit(ctx, telemetry.OpSnapshotRefused, string(apperrors.GetCode(err)), err.Error())
		return err
	}

	e.calc = candidate.State.Clone()
	e.st = rehydrate(e.calc)

	if e.store != nil {
		if err := e.store.PutSnapshot(ctx, candidate); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}
	if err := e.persistLocked(ctx); err != nil {
		return err
	}
	e.emit(ctx, telemetry.OpSnapshotApplied, "OK", fmt.Sprintf("snapshot ordinal %d", candidate.Ordinal))
	return nil
}

// SnapshotByOrdinal loads a persisted snapshot by its ordinal.
func (e *Engine) SnapshotByOrdinal(ctx context.Context, ordinal uint64) (snapshot.Snapshot, error) {
	if e.store == nil {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	return e.store.GetSnapshot(ctx, ordinal)
}

// LatestSnapshot loads the persisted snapshot with the highest ordinal.
func (e *Engine) LatestSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	if e.store == nil {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	return e.store.LatestSnapshot(ctx)
}

func (e *Engine) persistLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SetState(ctx, e.manager.Current(), e.calc); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, operation, code, message string) {
	if e.emitter == nil {
		return
	}
	// Telemetry is best effort and never fails the operation it describes.
	_ = e.emitter.Emit(ctx, storage.TelemetryEvent{
		Operation: operation,
		Code:      code,
		Message:   message,
	})
}

// rehydrate rebuilds raw state from a projection. Surveys and responses carry
// over directly; balances are re-derived from the same accounting the reducer
// performs (creator fees negative, respondent rewards positive).
func rehydrate(calc state.CalculatedState) state.State {
	st := state.NewState()
	for id, sv := range calc.Surveys {
		admitted := sv.Clone()
		st.Surveys[id] = admitted
		if admitted.TokenReward != nil {
			st.AddBalance(admitted.Creator, new(big.Int).Neg(admitted.TokenReward))
		}
	}
	for id, responses := range calc.Responses {
		cloned := make([]survey.Response, len(responses))
		for i, r := range responses {
			cloned[i] = r.Clone()
		}
		st.Responses[id] = cloned
	}
	for identity, amount := range calc.Rewards {
		st.AddBalance(identity, amount)
	}
	return st
}
