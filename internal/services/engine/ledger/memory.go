// Package ledger provides an in-memory token ledger. It is the default
// collaborator wired by the engine host; production deployments replace it
// with a client for the authoritative ledger service.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
)

var (
	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = apperrors.New(apperrors.CodeLedgerInvalidAmount, "ledger amount must be non-negative")
	// ErrInsufficientFunds indicates a fee larger than the payer's balance.
	ErrInsufficientFunds = apperrors.New(apperrors.CodeLedgerInsufficientFunds, "balance does not cover fee")
)

// Memory is a mutex-guarded in-memory ledger. Each call settles atomically,
// giving the at-most-once semantics the engine requires.
type Memory struct {
	mu       sync.Mutex
	balances map[string]*big.Int
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]*big.Int)}
}

// Credit seeds an identity's balance. Test and bootstrap helper; the engine
// itself never calls it.
func (m *Memory) Credit(identity string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[identity] = new(big.Int).Add(m.balance(identity), amount)
	return nil
}

// Balance reports an identity's current balance.
func (m *Memory) Balance(identity string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(identity))
}

// DeductFee removes amount from the identity's balance, failing without any
// movement when the balance does not cover it.
func (m *Memory) DeductFee(ctx context.Context, identity string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.balance(identity)
	if current.Cmp(amount) < 0 {
		return apperrors.WithMetadata(
			apperrors.CodeLedgerInsufficientFunds,
			"balance does not cover fee",
			map[string]string{
				"identity": identity,
				"balance":  current.String(),
				"fee":      amount.String(),
			},
		)
	}
	m.balances[identity] = new(big.Int).Sub(current, amount)
	return nil
}

// DistributeReward credits amount to the identity's balance.
func (m *Memory) DistributeReward(ctx context.Context, identity string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[identity] = new(big.Int).Add(m.balance(identity), amount)
	return nil
}

// balance returns the raw balance entry. Callers hold the mutex.
func (m *Memory) balance(identity string) *big.Int {
	if current, ok := m.balances[identity]; ok {
		return current
	}
	return new(big.Int)
}

// String renders the ledger for debugging.
func (m *Memory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("ledger(%d accounts)", len(m.balances))
}
