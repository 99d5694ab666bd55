// Package state holds the engine's authoritative survey state and its derived
// calculated-state projection. The two are always mutated in the same atomic
// reduction step; the projection is never updated independently.
package state

import (
	"math/big"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
)

// State is the raw, authoritative application state. Responses are kept in
// arrival order per survey; Balances accumulates the signed token deltas this
// engine has instructed the ledger to apply (fees negative, rewards positive).
type State struct {
	Surveys   map[string]survey.Survey     `json:"surveys"`
	Responses map[string][]survey.Response `json:"responses"`
	Balances  map[string]*big.Int          `json:"balances"`
}

// NewState returns an empty raw state.
func NewState() State {
	return State{
		Surveys:   make(map[string]survey.Survey),
		Responses: make(map[string][]survey.Response),
		Balances:  make(map[string]*big.Int),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := NewState()
	for id, sv := range s.Surveys {
		out.Surveys[id] = sv.Clone()
	}
	for id, responses := range s.Responses {
		cloned := make([]survey.Response, len(responses))
		for i, r := range responses {
			cloned[i] = r.Clone()
		}
		out.Responses[id] = cloned
	}
	for identity, balance := range s.Balances {
		out.Balances[identity] = new(big.Int).Set(balance)
	}
	return out
}

// AddBalance accumulates a signed delta for an identity.
func (s State) AddBalance(identity string, delta *big.Int) {
	current, ok := s.Balances[identity]
	if !ok {
		current = new(big.Int)
	}
	s.Balances[identity] = new(big.Int).Add(current, delta)
}

// CalculatedState is the queryable projection of State. Counters are
// monotonically non-decreasing and always derivable from the raw state at the
// same point in the update sequence.
//
// Accounting rule: RewardsEarmarked accrues the full budget when a survey is
// created (the fee deducted from the creator); RewardsDistributed accrues only
// respondent-side credits. No amount is counted in both.
type CalculatedState struct {
	Surveys   map[string]survey.Survey     `json:"surveys"`
	Responses map[string][]survey.Response `json:"responses"`
	// Rewards maps respondent identity to total credited rewards.
	Rewards map[string]*big.Int `json:"rewards"`

	TotalSurveys       uint64   `json:"total_surveys"`
	TotalResponses     uint64   `json:"total_responses"`
	RewardsEarmarked   *big.Int `json:"rewards_earmarked"`
	RewardsDistributed *big.Int `json:"rewards_distributed"`
}

// NewCalculatedState returns an empty projection.
func NewCalculatedState() CalculatedState {
	return CalculatedState{
		Surveys:            make(map[string]survey.Survey),
		Responses:          make(map[string][]survey.Response),
		Rewards:            make(map[string]*big.Int),
		RewardsEarmarked:   new(big.Int),
		RewardsDistributed: new(big.Int),
	}
}

// Clone returns a deep copy of the projection.
func (c CalculatedState) Clone() CalculatedState {
	out := NewCalculatedState()
	for id, sv := range c.Surveys {
		out.Surveys[id] = sv.Clone()
	}
	for id, responses := range c.Responses {
		cloned := make([]survey.Response, len(responses))
		for i, r := range responses {
			cloned[i] = r.Clone()
		}
		out.Responses[id] = cloned
	}
	for identity, amount := range c.Rewards {
		out.Rewards[identity] = new(big.Int).Set(amount)
	}
	out.TotalSurveys = c.TotalSurveys
	out.TotalResponses = c.TotalResponses
	if c.RewardsEarmarked != nil {
		out.RewardsEarmarked.Set(c.RewardsEarmarked)
	}
	if c.RewardsDistributed != nil {
		out.RewardsDistributed.Set(c.RewardsDistributed)
	}
	return out
}

// AddReward accumulates a respondent credit.
func (c CalculatedState) AddReward(identity string, amount *big.Int) {
	current, ok := c.Rewards[identity]
	if !ok {
		current = new(big.Int)
	}
	c.Rewards[identity] = new(big.Int).Add(current, amount)
}
