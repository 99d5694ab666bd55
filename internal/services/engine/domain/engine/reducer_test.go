package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/update"
)

type ledgerCall struct {
	op       string
	identity string
	amount   *big.Int
}

type fakeLedger struct {
	deductErr     error
	distributeErr error
	calls         []ledgerCall
}

func (f *fakeLedger) DeductFee(_ context.Context, identity string, amount *big.Int) error {
	f.calls = append(f.calls, ledgerCall{op: "deduct", identity: identity, amount: new(big.Int).Set(amount)})
	return f.deductErr
}

func (f *fakeLedger) DistributeReward(_ context.Context, identity string, amount *big.Int) error {
	f.calls = append(f.calls, ledgerCall{op: "distribute", identity: identity, amount: new(big.Int).Set(amount)})
	return f.distributeErr
}

func newTestReducer(ledger Ledger) *Reducer {
	return NewReducer(ledger, NewValidator(&fakeLimiter{}))
}

func freshState(t *testing.T) (state.State, state.CalculatedState) {
	t.Helper()
	return state.NewState(), state.NewCalculatedState()
}

func createUpdate(id string, reward int64, questions int) update.Update {
	qs := make([]string, questions)
	for i := range qs {
		qs[i] = "q"
	}
	return update.NewCreateSurvey(survey.Survey{
		ID:          id,
		Creator:     "creator-1",
		Questions:   qs,
		TokenReward: big.NewInt(reward),
	})
}

func submitUpdate(surveyID, respondent string, answers int) update.Update {
	as := make([][]byte, answers)
	for i := range as {
		as[i] = []byte("enc")
	}
	return update.NewSubmitResponse(survey.Response{
		SurveyID:   surveyID,
		Respondent: respondent,
		Answers:    as,
	})
}

func TestApplyCreateSurvey(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	nextState, nextCalc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 4))
	if err != nil {
		t.Fatalf("apply create: %v", err)
	}

	if nextCalc.TotalSurveys != 1 {
		t.Fatalf("total surveys = %d, want 1", nextCalc.TotalSurveys)
	}
	admitted, ok := nextState.Surveys["s-1"]
	if !ok {
		t.Fatal("survey missing from raw state")
	}
	if len(admitted.Questions) != 4 || admitted.TokenReward.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("survey not inserted unchanged")
	}
	if _, ok := nextCalc.Surveys["s-1"]; !ok {
		t.Fatal("survey missing from calculated state")
	}
	if nextCalc.RewardsEarmarked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("earmarked = %s, want 100", nextCalc.RewardsEarmarked)
	}
	if nextState.Balances["creator-1"].Cmp(big.NewInt(-100)) != 0 {
		t.Fatalf("creator balance delta = %s, want -100", nextState.Balances["creator-1"])
	}

	if len(ledger.calls) != 1 || ledger.calls[0].op != "deduct" {
		t.Fatalf("ledger calls = %+v, want one deduct", ledger.calls)
	}

	// Inputs must remain untouched.
	if len(st.Surveys) != 0 || calc.TotalSurveys != 0 {
		t.Fatal("inputs were mutated")
	}
}

func TestApplyCreateSurveyDuplicateID(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	st, calc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 2))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, _, err = r.Apply(context.Background(), st, calc, createUpdate("s-1", 50, 2))
	if !errors.Is(err, ErrSurveyExists) {
		t.Fatalf("error = %v, want %v", err, ErrSurveyExists)
	}
	// The duplicate must be refused before any ledger movement.
	if len(ledger.calls) != 1 {
		t.Fatalf("ledger calls = %d, want 1", len(ledger.calls))
	}
}

func TestApplyCreateSurveyLedgerFailureNoMutation(t *testing.T) {
	ledger := &fakeLedger{deductErr: errors.New("insufficient funds")}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	nextState, nextCalc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 2))
	if apperrors.GetCode(err) != apperrors.CodeLedgerDeductFailed {
		t.Fatalf("error code = %s, want %s", apperrors.GetCode(err), apperrors.CodeLedgerDeductFailed)
	}
	if len(nextState.Surveys) != 0 {
		t.Fatal("survey inserted despite ledger failure")
	}
	if nextCalc.TotalSurveys != 0 {
		t.Fatal("counter bumped despite ledger failure")
	}
}

func TestApplySubmitResponse(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	st, calc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 4))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st, calc, err = r.Apply(context.Background(), st, calc, submitUpdate("s-1", "respondent-1", 2))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// floor(100 * 2 / 16) = 12
	want := big.NewInt(12)
	if calc.RewardsDistributed.Cmp(want) != 0 {
		t.Fatalf("distributed = %s, want %s", calc.RewardsDistributed, want)
	}
	if calc.Rewards["respondent-1"].Cmp(want) != 0 {
		t.Fatalf("respondent reward = %s, want %s", calc.Rewards["respondent-1"], want)
	}
	if st.Balances["respondent-1"].Cmp(want) != 0 {
		t.Fatalf("respondent balance delta = %s, want %s", st.Balances["respondent-1"], want)
	}
	if calc.TotalResponses != 1 {
		t.Fatalf("total responses = %d, want 1", calc.TotalResponses)
	}
	if len(st.Responses["s-1"]) != 1 || len(calc.Responses["s-1"]) != 1 {
		t.Fatal("response not appended to both views")
	}

	last := ledger.calls[len(ledger.calls)-1]
	if last.op != "distribute" || last.identity != "respondent-1" || last.amount.Cmp(want) != 0 {
		t.Fatalf("ledger call = %+v, want distribute of %s to respondent-1", last, want)
	}
}

func TestApplySubmitResponseUnknownSurvey(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	nextState, nextCalc, err := r.Apply(context.Background(), st, calc, submitUpdate("X", "respondent-1", 1))
	if !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrSurveyNotFound)
	}
	if len(ledger.calls) != 0 {
		t.Fatal("ledger called for an unknown survey")
	}
	if nextCalc.TotalResponses != 0 || len(nextState.Responses) != 0 {
		t.Fatal("state changed despite reference error")
	}
}

func TestApplySubmitResponseLedgerFailureNoMutation(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReducer(ledger)
	st, calc := freshState(t)

	st, calc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ledger.distributeErr = errors.New("ledger unavailable")
	nextState, nextCalc, err := r.Apply(context.Background(), st, calc, submitUpdate("s-1", "respondent-1", 1))
	if apperrors.GetCode(err) != apperrors.CodeLedgerDistributeFailed {
		t.Fatalf("error code = %s, want %s", apperrors.GetCode(err), apperrors.CodeLedgerDistributeFailed)
	}
	if nextCalc.TotalResponses != 0 {
		t.Fatal("counter bumped despite ledger failure")
	}
	if len(nextState.Responses["s-1"]) != 0 {
		t.Fatal("response appended despite ledger failure")
	}
}

func TestApplyPreservesResponseArrivalOrder(t *testing.T) {
	r := newTestReducer(&fakeLedger{})
	st, calc := freshState(t)

	st, calc, err := r.Apply(context.Background(), st, calc, createUpdate("s-1", 100, 2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, respondent := range []string{"r-a", "r-b", "r-c"} {
		st, calc, err = r.Apply(context.Background(), st, calc, submitUpdate("s-1", respondent, 1))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	got := st.Responses["s-1"]
	if len(got) != 3 {
		t.Fatalf("responses = %d, want 3", len(got))
	}
	for i, respondent := range []string{"r-a", "r-b", "r-c"} {
		if got[i].Respondent != respondent {
			t.Fatalf("response %d respondent = %q, want %q", i, got[i].Respondent, respondent)
		}
	}
}

func TestApplyDeterministicAcrossRuns(t *testing.T) {
	updates := []update.Update{
		createUpdate("s-1", 100, 4),
		createUpdate("s-2", 37, 3),
		submitUpdate("s-1", "r-1", 2),
		submitUpdate("s-2", "r-2", 3),
		submitUpdate("s-1", "r-1", 4),
	}

	run := func() (state.State, state.CalculatedState) {
		r := newTestReducer(&fakeLedger{})
		st, calc := state.NewState(), state.NewCalculatedState()
		var err error
		for _, upd := range updates {
			st, calc, err = r.Apply(context.Background(), st, calc, upd)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
		}
		return st, calc
	}

	_, calcA := run()
	_, calcB := run()

	if calcA.TotalSurveys != calcB.TotalSurveys || calcA.TotalResponses != calcB.TotalResponses {
		t.Fatal("counters diverged between identical runs")
	}
	if calcA.RewardsDistributed.Cmp(calcB.RewardsDistributed) != 0 {
		t.Fatalf("distributed diverged: %s vs %s", calcA.RewardsDistributed, calcB.RewardsDistributed)
	}
	if calcA.RewardsEarmarked.Cmp(calcB.RewardsEarmarked) != 0 {
		t.Fatalf("earmarked diverged: %s vs %s", calcA.RewardsEarmarked, calcB.RewardsEarmarked)
	}
	for identity, amount := range calcA.Rewards {
		if calcB.Rewards[identity] == nil || calcB.Rewards[identity].Cmp(amount) != 0 {
			t.Fatalf("reward for %s diverged", identity)
		}
	}
}

func TestApplyBatchRejectionsDoNotHaltSiblings(t *testing.T) {
	r := newTestReducer(&fakeLedger{})
	st, calc := freshState(t)

	empty := createUpdate("s-bad", 10, 1)
	empty.CreateSurvey.Questions = nil

	updates := []update.Update{
		createUpdate("s-1", 100, 2),
		empty,
		submitUpdate("s-1", "r-1", 2),
	}

	st, calc, rejections, err := r.ApplyBatch(context.Background(), st, calc, updates)
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(rejections))
	}
	if rejections[0].Index != 1 {
		t.Fatalf("rejection index = %d, want 1", rejections[0].Index)
	}
	if rejections[0].Code != apperrors.CodeSurveyEmptyQuestions {
		t.Fatalf("rejection code = %s, want %s", rejections[0].Code, apperrors.CodeSurveyEmptyQuestions)
	}
	if calc.TotalSurveys != 1 || calc.TotalResponses != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", calc.TotalSurveys, calc.TotalResponses)
	}
	if _, ok := st.Surveys["s-bad"]; ok {
		t.Fatal("rejected survey leaked into state")
	}
}

func TestApplyBatchFatalErrorSurfaces(t *testing.T) {
	r := newTestReducer(&fakeLedger{})
	st, calc := freshState(t)

	updates := []update.Update{
		createUpdate("s-1", 100, 2),
		submitUpdate("unknown", "r-1", 1),
		createUpdate("s-2", 50, 2),
	}

	st, calc, rejections, err := r.ApplyBatch(context.Background(), st, calc, updates)
	if !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrSurveyNotFound)
	}
	if len(rejections) != 0 {
		t.Fatalf("rejections = %d, want 0", len(rejections))
	}
	// State reflects the last successful step only.
	if calc.TotalSurveys != 1 {
		t.Fatalf("total surveys = %d, want 1", calc.TotalSurveys)
	}
	if _, ok := st.Surveys["s-2"]; ok {
		t.Fatal("update after the fatal step was applied")
	}
}

func TestApplyBatchRateLimitedUpdateRejected(t *testing.T) {
	limiter := &fakeLimiter{allowed: map[string]bool{"creator-1": true, "blocked": false}}
	r := NewReducer(&fakeLedger{}, NewValidator(limiter))
	st, calc := freshState(t)

	blocked := submitUpdate("s-1", "blocked", 1)
	updates := []update.Update{
		createUpdate("s-1", 100, 2),
		blocked,
	}

	_, calc, rejections, err := r.ApplyBatch(context.Background(), st, calc, updates)
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(rejections) != 1 || rejections[0].Code != apperrors.CodeUpdateRateLimited {
		t.Fatalf("rejections = %+v, want one rate-limited", rejections)
	}
	if calc.TotalResponses != 0 {
		t.Fatal("rate-limited response reached the reducer")
	}
}

func TestApplyBatchCancelledContextAbortsStep(t *testing.T) {
	r := newTestReducer(&fakeLedger{})
	st, calc := freshState(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, nextCalc, _, err := r.ApplyBatch(ctx, st, calc, []update.Update{createUpdate("s-1", 10, 1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if nextCalc.TotalSurveys != 0 {
		t.Fatal("cancelled batch mutated state")
	}
}
