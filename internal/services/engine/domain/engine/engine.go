// Package engine implements the deterministic state-transition core: update
// validation and the sequential reducer that folds validated updates over
// survey state and its calculated projection.
//
// The ledger, rate limiter, and hasher are external collaborators reached
// through the interfaces below. The engine issues commands and reacts to
// success or failure; it never reads balances and never retries an ambiguous
// ledger call.
package engine

import (
	"context"
	"math/big"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
)

// RateLimiter answers whether an identity is under its request budget. The
// check may consume budget; that bookkeeping belongs to the limiter, not the
// engine.
type RateLimiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// Ledger is the external authoritative holder of token balances. Amounts are
// non-negative arbitrary-precision integers. Each call is a synchronous
// blocking boundary with at-most-once semantics per call.
type Ledger interface {
	// DeductFee removes the survey reward budget from a creator's balance.
	DeductFee(ctx context.Context, identity string, amount *big.Int) error
	// DistributeReward credits a respondent with an earned reward.
	DistributeReward(ctx context.Context, identity string, amount *big.Int) error
}

// Hasher produces a deterministic content digest of a calculated state, used
// to detect divergence between independent computations of the same state.
type Hasher interface {
	Digest(calc state.CalculatedState) (string, error)
}
