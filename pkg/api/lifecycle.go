package api

import (
	"context"

	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/repository"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// opinionRequest is the body of PUT /api/enrollments/opinion.
type opinionRequest struct {
	EnrollmentID int64  `json:"enrollment_id" validate:"required,gt=0"`
	Score        *int   `json:"score" validate:"required"`
	Text         string `json:"text" validate:"max=2000"`
}

func (h *Handler) signUp(c router.Context) error {
	tutorID, err := pathID(c, "id")
	if err != nil {
		return controller.Error(c, err)
	}
	a, err := h.actor(c)
	if err != nil {
		return controller.Error(c, err)
	}
	enrollment, err := h.market.SignUp(c.Request().Context(), a.OwnerID, tutorID)
	if err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}
	return controller.Created(c, enrollment)
}

func (h *Handler) accept(c router.Context) error {
	enrollmentID, err := pathID(c, "id")
	if err != nil {
		return controller.Error(c, err)
	}
	a, err := h.actor(c)
	if err != nil {
		return controller.Error(c, err)
	}
	if err := h.market.Accept(c.Request().Context(), a.OwnerID, enrollmentID); err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}
	return controller.NoContent(c)
}

// recordOpinion stores the caller's score and the tutor aggregate in one transaction.
func (h *Handler) recordOpinion(c router.Context) error {
	var req opinionRequest
	if err := bindBody(c, &req, false); err != nil {
		return controller.Error(c, err)
	}
	if err := controller.ValidateDTO(&req); err != nil {
		return controller.Error(c, err)
	}
	a, err := h.actor(c)
	if err != nil {
		return controller.Error(c, err)
	}

	in := ledger.OpinionInput{EnrollmentID: req.EnrollmentID, StudentID: a.OwnerID, Score: *req.Score, Text: req.Text}
	var rec ledger.OpinionRecord
	err = h.coordinator.WithTransaction(c.Request().Context(), func(ctx context.Context, tx *repository.Tx) error {
		var err error
		rec, err = h.ledger.RecordOpinion(ctx, tx, in)
		return err
	})
	if err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}
	return controller.Success(c, rec)
}

func (h *Handler) validateTutor(c router.Context) error {
	return h.adminUpdate(c, func(ctx context.Context, id int64) error {
		return h.market.SetTutorValidated(ctx, id, true)
	})
}

func (h *Handler) lockTutor(c router.Context) error {
	return h.adminUpdate(c, func(ctx context.Context, id int64) error {
		return h.market.SetTutorLocked(ctx, id, true)
	})
}

func (h *Handler) setStudentActive(active bool) router.HandlerFunc {
	return func(c router.Context) error {
		return h.adminUpdate(c, func(ctx context.Context, id int64) error {
			return h.market.SetStudentActive(ctx, id, active)
		})
	}
}

func (h *Handler) adminUpdate(c router.Context, update func(ctx context.Context, id int64) error) error {
	id, err := pathID(c, "id")
	if err != nil {
		return controller.Error(c, err)
	}
	if err := update(c.Request().Context(), id); err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}
	h.logger.WithContext(c.Request().Context()).Info("account updated", "route", c.FullPath(), "id", id)
	return controller.NoContent(c)
}
