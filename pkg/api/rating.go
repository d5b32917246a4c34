package api

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/repository"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

type tutorRating struct {
	TutorID int64            `json:"tutor_id"`
	Sum     decimal.Decimal  `json:"sum"`
	Count   int64            `json:"count"`
	Average *decimal.Decimal `json:"average"`
}

// tutorRating reports a tutor's current aggregate. Average is null until the
// first opinion.
func (h *Handler) tutorRating(c router.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return controller.Error(c, err)
	}

	var agg ledger.Aggregate
	err = h.coordinator.WithReadSnapshot(c.Request().Context(), func(ctx context.Context, tx *repository.Tx) error {
		var err error
		agg, err = h.ledger.Current(ctx, tx, id)
		return err
	})
	if err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}

	out := tutorRating{TutorID: id, Sum: agg.Sum, Count: agg.Count}
	if avg, ok := agg.Average(); ok {
		out.Average = &avg
	}
	return controller.Success(c, out)
}
