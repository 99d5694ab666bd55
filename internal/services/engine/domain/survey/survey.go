// Package survey defines the survey and response value types accepted by the
// engine. Both are immutable once admitted into state.
package survey

import (
	"math/big"
	"strings"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
)

var (
	// ErrEmptyID indicates a missing survey id.
	ErrEmptyID = apperrors.New(apperrors.CodeSurveyEmptyID, "survey id is required")
	// ErrEmptyCreator indicates a missing creator identity.
	ErrEmptyCreator = apperrors.New(apperrors.CodeSurveyEmptyCreator, "survey creator is required")
	// ErrEmptyQuestions indicates a survey with no questions.
	ErrEmptyQuestions = apperrors.New(apperrors.CodeSurveyEmptyQuestions, "survey requires at least one question")
	// ErrInvalidReward indicates a missing or negative token reward budget.
	ErrInvalidReward = apperrors.New(apperrors.CodeSurveyInvalidReward, "survey token reward must be a non-negative amount")

	// ErrEmptySurveyID indicates a response with no survey reference.
	ErrEmptySurveyID = apperrors.New(apperrors.CodeResponseEmptySurveyID, "response survey id is required")
	// ErrEmptyRespondent indicates a missing respondent identity.
	ErrEmptyRespondent = apperrors.New(apperrors.CodeResponseEmptyRespondent, "response respondent is required")
	// ErrEmptyAnswers indicates a response with no answers.
	ErrEmptyAnswers = apperrors.New(apperrors.CodeResponseEmptyAnswers, "response requires at least one answer")
)

// Survey is an immutable questionnaire with a token reward budget. The budget
// is deducted from the creator when the survey is admitted and paid out to
// respondents proportionally to how many questions they answer.
type Survey struct {
	// ID uniquely identifies the survey.
	ID string
	// Creator is the identity that funds the reward budget.
	Creator string
	// Questions is the ordered question list. Never empty once admitted.
	Questions []string
	// TokenReward is the non-negative reward budget for the whole survey.
	TokenReward *big.Int
}

// Validate checks the structural invariants of a survey.
func (s Survey) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(s.Creator) == "" {
		return ErrEmptyCreator
	}
	if len(s.Questions) == 0 {
		return ErrEmptyQuestions
	}
	if s.TokenReward == nil || s.TokenReward.Sign() < 0 {
		return ErrInvalidReward
	}
	return nil
}

// Clone returns a deep copy of the survey.
func (s Survey) Clone() Survey {
	out := Survey{
		ID:      s.ID,
		Creator: s.Creator,
	}
	if s.Questions != nil {
		out.Questions = append([]string(nil), s.Questions...)
	}
	if s.TokenReward != nil {
		out.TokenReward = new(big.Int).Set(s.TokenReward)
	}
	return out
}

// Response is an immutable set of encrypted answers to a survey. The engine
// never interprets answer contents; they are opaque to everything below the
// host's encryption layer.
type Response struct {
	// SurveyID references the survey being answered.
	SurveyID string
	// Respondent is the identity credited with the reward.
	Respondent string
	// Answers holds the ordered encrypted answer payloads. Never empty once
	// admitted.
	Answers [][]byte
}

// Validate checks the structural invariants of a response.
func (r Response) Validate() error {
	if strings.TrimSpace(r.SurveyID) == "" {
		return ErrEmptySurveyID
	}
	if strings.TrimSpace(r.Respondent) == "" {
		return ErrEmptyRespondent
	}
	if len(r.Answers) == 0 {
		return ErrEmptyAnswers
	}
	return nil
}

// Clone returns a deep copy of the response.
func (r Response) Clone() Response {
	out := Response{
		SurveyID:   r.SurveyID,
		Respondent: r.Respondent,
	}
	if r.Answers != nil {
		out.Answers = make([][]byte, len(r.Answers))
		for i, answer := range r.Answers {
			out.Answers[i] = append([]byte(nil), answer...)
		}
	}
	return out
}
