// Package reward computes respondent rewards. The calculation is pure and
// must be bit-for-bit reproducible across nodes: it feeds ledger balances.
package reward

import (
	"math/big"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
)

// Amount returns the reward for answering a survey.
//
// The reward is floor(tokenReward * answers / questions²): the per-question
// base is tokenReward/questions, scaled by the answered fraction
// answers/questions, with a single floor at the end. Working entirely in
// big.Int with one multiply and one divide keeps the rounding (toward zero)
// exact for arbitrarily large budgets; no floating point is involved.
//
// Answers beyond the question count do not earn extra: the count is capped at
// the number of questions, so the result is always within
// [0, survey.TokenReward].
func Amount(s survey.Survey, r survey.Response) *big.Int {
	questions := int64(len(s.Questions))
	if questions == 0 || s.TokenReward == nil || s.TokenReward.Sign() <= 0 {
		return new(big.Int)
	}

	answers := int64(len(r.Answers))
	if answers <= 0 {
		return new(big.Int)
	}
	if answers > questions {
		answers = questions
	}

	out := new(big.Int).Mul(s.TokenReward, big.NewInt(answers))
	out.Quo(out, big.NewInt(questions*questions))
	return out
}
