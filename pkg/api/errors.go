package api

import (
	"errors"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/catalog"
	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/marketplace"
	"github.com/tutorhub/tutorhub/pkg/repository"
	"github.com/tutorhub/tutorhub/pkg/search"
)

var specErrorCodes = map[error]string{
	search.ErrInvalidFilterField: "validation.invalid_filter_field",
	search.ErrInvalidFilterValue: "validation.invalid_filter_value",
	search.ErrInvalidPagination:  "validation.invalid_pagination",
}

// mapError turns domain errors into localized AppErrors. Anything unrecognized
// is returned as is and reported as internal.error.
func mapError(err error, rating config.RatingConfig) error {
	var specErr *search.SpecError
	if errors.As(err, &specErr) {
		code, ok := specErrorCodes[specErr.Kind]
		if ok {
			return controller.NewValidationErrorWithCode(code, specErr.Error(),
				map[string]any{"field": specErr.Field, "reason": specErr.Reason},
				map[string]any{"field": specErr.Field})
		}
	}

	switch {
	case errors.Is(err, ledger.ErrUnauthorizedOpinion):
		return controller.NewUnauthorizedError("opinion.unauthorized", "enrollment belongs to another student", err)
	case errors.Is(err, ledger.ErrEnrollmentNotAccepted):
		return controller.NewUnauthorizedError("opinion.enrollment_not_accepted", "enrollment is not accepted", err)
	case errors.Is(err, ledger.ErrScoreOutOfRange):
		return controller.NewValidationErrorWithCode("opinion.score_out_of_range", "score out of range",
			map[string]any{"min": rating.MinScore, "max": rating.MaxScore},
			map[string]any{"min": rating.MinScore, "max": rating.MaxScore})
	case errors.Is(err, ledger.ErrTutorNotFound):
		return controller.NewNotFoundError("tutor.not_found", "tutor not found", err)
	case errors.Is(err, ledger.ErrEnrollmentNotFound):
		return controller.NewNotFoundError("enrollment.not_found", "enrollment not found", err)
	case errors.Is(err, marketplace.ErrStudentNotFound):
		return controller.NewNotFoundError("student.not_found", "student not found", err)
	case errors.Is(err, marketplace.ErrTutorNotValidated):
		return controller.NewConflictError("tutor.not_validated", "tutor is not validated", err)
	case errors.Is(err, marketplace.ErrDuplicateEnrollment):
		return controller.NewConflictError("enrollment.duplicate", "enrollment already exists", err)
	case errors.Is(err, marketplace.ErrNotEnrollmentOwner):
		return controller.NewForbiddenError("enrollment.not_owner", "enrollment belongs to another tutor", err)
	case errors.Is(err, catalog.ErrScopeDenied):
		return controller.NewForbiddenError("", "role has no access to this resource", err)
	case errors.Is(err, auth.ErrInvalidIdentity):
		return controller.NewUnauthorizedError("", "invalid identity", err)
	case errors.Is(err, repository.ErrTransactionClosed):
		return controller.NewInternalError("internal.transaction_closed", "transaction is closed", err)
	case repository.IsStorageError(err):
		return controller.NewInternalError("internal.storage", "storage unavailable", err)
	}
	return err
}
