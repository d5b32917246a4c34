package search

import (
	"context"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/observability/tracing"
	"github.com/tutorhub/tutorhub/pkg/repository"
)

// Row is one result row keyed by output column alias.
type Row map[string]any

// Executor runs plans inside a read snapshot.
type Executor struct {
	coordinator *repository.Coordinator
	logger      logger.Logger
}

// NewExecutor creates an executor over coordinator.
func NewExecutor(coordinator *repository.Coordinator, log logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{coordinator: coordinator, logger: log}
}

// Execute runs the count query and, when the requested page can hold rows, the page query.
// Both run in one read-only transaction so total and rows describe the same state.
func (e *Executor) Execute(ctx context.Context, plan Plan) ([]Row, int64, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery,
		tracing.WithDBTable(plan.Entity),
		tracing.WithDBSystem(e.coordinator.Dialect()),
		tracing.WithDBStatement(plan.Query),
	)
	defer span.End()

	var rows []Row
	var total int64

	err := e.coordinator.WithReadSnapshot(ctx, func(ctx context.Context, tx *repository.Tx) error {
		if err := tx.GetContext(ctx, &total, tx.Rebind(plan.CountQuery), plan.CountArgs...); err != nil {
			return err
		}
		if PastEnd(plan.Page, plan.Limit, total) {
			return nil
		}

		result, err := tx.QueryxContext(ctx, tx.Rebind(plan.Query), plan.Args...)
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			row := make(map[string]any)
			if err := result.MapScan(row); err != nil {
				return &repository.StorageError{Op: "scan", Err: err}
			}
			rows = append(rows, normalize(row))
		}
		if err := result.Err(); err != nil {
			return &repository.StorageError{Op: "scan", Err: err}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		e.logger.WithContext(ctx).Error("search query failed", "entity", plan.Entity, "error", err)
		return nil, 0, err
	}

	tracing.RecordSuccess(span)
	return rows, total, nil
}

func normalize(row map[string]any) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Row(row)
}
