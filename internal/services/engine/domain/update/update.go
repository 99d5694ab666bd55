// Package update defines the tagged union of state-transition updates consumed
// by the reducer, and the rejection record produced when validation declines
// one. Updates are transient: they are folded into state and not retained.
package update

import (
	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
)

// Kind identifies the variant of an update.
type Kind string

const (
	// KindCreateSurvey admits a new survey and earmarks its reward budget.
	KindCreateSurvey Kind = "survey.create"
	// KindSubmitResponse records an encrypted response and pays its reward.
	KindSubmitResponse Kind = "survey.submit_response"
)

// ErrInvalidKind indicates an update whose variant tag matches no known kind.
var ErrInvalidKind = apperrors.New(apperrors.CodeUpdateInvalidKind, "update kind is not recognized")

// Update is the explicit tagged union of survey updates. Exactly one variant
// pointer is set, selected by Kind.
type Update struct {
	Kind           Kind
	CreateSurvey   *survey.Survey
	SubmitResponse *survey.Response
}

// NewCreateSurvey builds a CreateSurvey update.
func NewCreateSurvey(s survey.Survey) Update {
	return Update{Kind: KindCreateSurvey, CreateSurvey: &s}
}

// NewSubmitResponse builds a SubmitResponse update.
func NewSubmitResponse(r survey.Response) Update {
	return Update{Kind: KindSubmitResponse, SubmitResponse: &r}
}

// Actor returns the identity that submitted the update. Validation and rate
// limiting are charged against this identity.
func (u Update) Actor() string {
	switch u.Kind {
	case KindCreateSurvey:
		if u.CreateSurvey != nil {
			return u.CreateSurvey.Creator
		}
	case KindSubmitResponse:
		if u.SubmitResponse != nil {
			return u.SubmitResponse.Respondent
		}
	}
	return ""
}

// Check verifies the union is well-formed: a known kind with its variant set.
func (u Update) Check() error {
	switch u.Kind {
	case KindCreateSurvey:
		if u.CreateSurvey == nil {
			return ErrInvalidKind
		}
		return nil
	case KindSubmitResponse:
		if u.SubmitResponse == nil {
			return ErrInvalidKind
		}
		return nil
	default:
		return ErrInvalidKind
	}
}

// Rejection captures a policy-level reason an update was declined. Rejections
// are per-update: a rejected update never halts its batch siblings.
type Rejection struct {
	// Index is the update's position within its batch.
	Index int
	// Code is the machine-readable policy violation code.
	Code apperrors.Code
	// Message describes the violation.
	Message string
}

// Rejected builds a rejection for the update at the given batch index.
func Rejected(index int, err error) Rejection {
	return Rejection{
		Index:   index,
		Code:    apperrors.GetCode(err),
		Message: err.Error(),
	}
}
