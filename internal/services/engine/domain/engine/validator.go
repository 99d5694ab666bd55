package engine

import (
	"context"

	apperrors "github.com/surveyledger/surveyledger/internal/platform/errors"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/update"
)

// ErrRateLimited indicates the actor has exceeded its request budget.
var ErrRateLimited = apperrors.New(apperrors.CodeUpdateRateLimited, "request budget exceeded")

// Validator gates updates on structural and policy validity before reduction.
// It performs no state mutation; apart from the limiter's own bookkeeping a
// validation check is free to repeat.
type Validator struct {
	limiter RateLimiter
}

// NewValidator creates a validator backed by the given rate limiter.
func NewValidator(limiter RateLimiter) *Validator {
	return &Validator{limiter: limiter}
}

// Validate checks a single update submitted by actor. Distinct updates may be
// validated concurrently; there is no cross-update ordering dependency here.
func (v *Validator) Validate(ctx context.Context, upd update.Update, actor string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := upd.Check(); err != nil {
		return err
	}

	if v != nil && v.limiter != nil {
		allowed, err := v.limiter.Allow(ctx, actor)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}
	}

	switch upd.Kind {
	case update.KindCreateSurvey:
		return upd.CreateSurvey.Validate()
	case update.KindSubmitResponse:
		return upd.SubmitResponse.Validate()
	default:
		return update.ErrInvalidKind
	}
}
