// Package errors provides structured error handling for the engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Survey errors
	CodeSurveyEmptyID        Code = "SURVEY_EMPTY_ID"
	CodeSurveyEmptyCreator   Code = "SURVEY_EMPTY_CREATOR"
	CodeSurveyEmptyQuestions Code = "SURVEY_EMPTY_QUESTIONS"
	CodeSurveyInvalidReward  Code = "SURVEY_INVALID_REWARD"
	CodeSurveyExists         Code = "SURVEY_EXISTS"
	CodeSurveyNotFound       Code = "SURVEY_NOT_FOUND"

	// Response errors
	CodeResponseEmptySurveyID   Code = "RESPONSE_EMPTY_SURVEY_ID"
	CodeResponseEmptyRespondent Code = "RESPONSE_EMPTY_RESPONDENT"
	CodeResponseEmptyAnswers    Code = "RESPONSE_EMPTY_ANSWERS"

	// Update errors
	CodeUpdateInvalidKind Code = "UPDATE_INVALID_KIND"
	CodeUpdateRateLimited Code = "UPDATE_RATE_LIMITED"

	// Ledger errors
	CodeLedgerDeductFailed      Code = "LEDGER_DEDUCT_FAILED"
	CodeLedgerDistributeFailed  Code = "LEDGER_DISTRIBUTE_FAILED"
	CodeLedgerInvalidAmount     Code = "LEDGER_INVALID_AMOUNT"
	CodeLedgerInsufficientFunds Code = "LEDGER_INSUFFICIENT_FUNDS"

	// Snapshot errors
	CodeSnapshotOrdinalViolation Code = "SNAPSHOT_ORDINAL_VIOLATION"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSurveyEmptyID,
		CodeSurveyEmptyCreator,
		CodeSurveyEmptyQuestions,
		CodeSurveyInvalidReward,
		CodeResponseEmptySurveyID,
		CodeResponseEmptyRespondent,
		CodeResponseEmptyAnswers,
		CodeUpdateInvalidKind,
		CodeLedgerInvalidAmount:
		return codes.InvalidArgument

	// ResourceExhausted - policy budgets
	case CodeUpdateRateLimited:
		return codes.ResourceExhausted

	// FailedPrecondition - state disallows the operation
	case CodeSurveyExists,
		CodeSnapshotOrdinalViolation,
		CodeLedgerInsufficientFunds:
		return codes.FailedPrecondition

	// NotFound - missing references
	case CodeSurveyNotFound,
		CodeNotFound:
		return codes.NotFound

	// Internal - collaborator failures
	case CodeLedgerDeductFailed,
		CodeLedgerDistributeFailed:
		return codes.Internal

	default:
		return codes.Internal
	}
}
