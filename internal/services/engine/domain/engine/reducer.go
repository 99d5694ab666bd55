package engine

import (
	"context"
	"math/big"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/reward"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/update"
)

var (
	// ErrSurveyExists indicates a CreateSurvey update reusing an admitted id.
	ErrSurveyExists = apperrors.New(apperrors.CodeSurveyExists, "survey id already exists")
	// ErrSurveyNotFound indicates a response referencing an unknown survey.
	ErrSurveyNotFound = apperrors.New(apperrors.CodeSurveyNotFound, "survey does not exist")
)

// Reducer folds validated updates over raw state and its calculated
// projection, one update at a time, strictly in batch arrival order. Both
// views are mutated in the same step so the projection's counters always match
// aggregates derivable from the raw state.
type Reducer struct {
	ledger    Ledger
	validator *Validator
}

// NewReducer creates a reducer that settles token movement through ledger and
// gates batch updates through validator.
func NewReducer(ledger Ledger, validator *Validator) *Reducer {
	return &Reducer{ledger: ledger, validator: validator}
}

// Apply folds one already-validated update. Inputs are never mutated: the
// reduction builds cloned state, calls the ledger, and only then publishes the
// clones. On any error the originals are returned unchanged, so a failing
// update can never leave a partial mutation behind.
func (r *Reducer) Apply(ctx context.Context, st state.State, calc state.CalculatedState, upd update.Update) (state.State, state.CalculatedState, error) {
	if err := ctx.Err(); err != nil {
		return st, calc, err
	}
	if err := upd.Check(); err != nil {
		return st, calc, err
	}

	switch upd.Kind {
	case update.KindCreateSurvey:
		return r.applyCreateSurvey(ctx, st, calc, upd)
	default:
		return r.applySubmitResponse(ctx, st, calc, upd)
	}
}

func (r *Reducer) applyCreateSurvey(ctx context.Context, st state.State, calc state.CalculatedState, upd update.Update) (state.State, state.CalculatedState, error) {
	sv := *upd.CreateSurvey
	if _, exists := st.Surveys[sv.ID]; exists {
		return st, calc, ErrSurveyExists
	}

	// The ledger call happens before any mutation: if the fee cannot be
	// deducted the update fails fatally and both views stay untouched.
	if err := r.ledger.DeductFee(ctx, sv.Creator, sv.TokenReward); err != nil {
		return st, calc, apperrors.Wrap(apperrors.CodeLedgerDeductFailed, "deduct survey fee", err)
	}

	nextState := st.Clone()
	nextCalc := calc.Clone()

	admitted := sv.Clone()
	nextState.Surveys[admitted.ID] = admitted
	nextState.AddBalance(admitted.Creator, negate(admitted.TokenReward))

	nextCalc.Surveys[admitted.ID] = admitted.Clone()
	nextCalc.TotalSurveys++
	nextCalc.RewardsEarmarked.Add(nextCalc.RewardsEarmarked, admitted.TokenReward)

	return nextState, nextCalc, nil
}

func (r *Reducer) applySubmitResponse(ctx context.Context, st state.State, calc state.CalculatedState, upd update.Update) (state.State, state.CalculatedState, error) {
	resp := *upd.SubmitResponse
	sv, exists := st.Surveys[resp.SurveyID]
	if !exists {
		return st, calc, ErrSurveyNotFound
	}

	amount := reward.Amount(sv, resp)
	if err := r.ledger.DistributeReward(ctx, resp.Respondent, amount); err != nil {
		return st, calc, apperrors.Wrap(apperrors.CodeLedgerDistributeFailed, "distribute response reward", err)
	}

	nextState := st.Clone()
	nextCalc := calc.Clone()

	admitted := resp.Clone()
	nextState.Responses[admitted.SurveyID] = append(nextState.Responses[admitted.SurveyID], admitted)
	nextState.AddBalance(admitted.Respondent, amount)

	nextCalc.Responses[admitted.SurveyID] = append(nextCalc.Responses[admitted.SurveyID], admitted.Clone())
	nextCalc.TotalResponses++
	nextCalc.AddReward(admitted.Respondent, amount)
	nextCalc.RewardsDistributed.Add(nextCalc.RewardsDistributed, amount)

	return nextState, nextCalc, nil
}

// ApplyBatch validates and folds an ordered batch. Policy violations become
// per-update rejections and do not halt sibling updates; the first reference
// or ledger failure aborts the batch and is returned together with the state
// as of the last successful step. The caller's batch-commit boundary decides
// whether to keep or discard that intermediate state.
func (r *Reducer) ApplyBatch(ctx context.Context, st state.State, calc state.CalculatedState, updates []update.Update) (state.State, state.CalculatedState, []update.Rejection, error) {
	var rejections []update.Rejection

	for i, upd := range updates {
		if err := ctx.Err(); err != nil {
			return st, calc, rejections, err
		}

		if r.validator != nil {
			if err := r.validator.Validate(ctx, upd, upd.Actor()); err != nil {
				if ctx.Err() != nil {
					return st, calc, rejections, err
				}
				rejections = append(rejections, update.Rejected(i, err))
				continue
			}
		}

		nextState, nextCalc, err := r.Apply(ctx, st, calc, upd)
		if err != nil {
			return st, calc, rejections, err
		}
		st, calc = nextState, nextCalc
	}

	return st, calc, rejections, nil
}

func negate(amount *big.Int) *big.Int {
	return new(big.Int).Neg(amount)
}
