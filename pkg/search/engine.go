package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/observability/metrics"
	"github.com/tutorhub/tutorhub/pkg/repository"
)

// Engine validates, builds, executes and formats searches for registered entities.
type Engine struct {
	mu       sync.RWMutex
	entities map[string]*Descriptor
	limits   Limits
	executor *Executor
	logger   logger.Logger
}

// NewEngine creates an engine without entities.
func NewEngine(coordinator *repository.Coordinator, limits Limits, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		entities: make(map[string]*Descriptor),
		limits:   limits,
		executor: NewExecutor(coordinator, log),
		logger:   log,
	}
}

// Register adds entities. Registering a name twice is an error.
func (e *Engine) Register(entities ...Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range entities {
		d, err := NewDescriptor(ent)
		if err != nil {
			return err
		}
		if _, exists := e.entities[d.Name()]; exists {
			return fmt.Errorf("search entity %s already registered", d.Name())
		}
		e.entities[d.Name()] = d
	}
	return nil
}

// Descriptor returns the registered descriptor for entity.
func (e *Engine) Descriptor(entity string) (*Descriptor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.entities[entity]
	return d, ok
}

// Search runs raw against entity, restricted by scope.
func (e *Engine) Search(ctx context.Context, entity string, raw RawSpec, scope ScopePredicate) (ResultPage, error) {
	start := time.Now()

	page, err := e.search(ctx, entity, raw, scope)

	outcome := metrics.SearchOutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidFilterField), errors.Is(err, ErrInvalidFilterValue), errors.Is(err, ErrInvalidPagination):
		outcome = metrics.SearchOutcomeRejected
		e.logger.WithContext(ctx).Debug("search rejected", "entity", entity, "error", err)
	default:
		outcome = metrics.SearchOutcomeError
	}
	metrics.RecordSearch(entity, outcome, time.Since(start))

	return page, err
}

func (e *Engine) search(ctx context.Context, entity string, raw RawSpec, scope ScopePredicate) (ResultPage, error) {
	d, ok := e.Descriptor(entity)
	if !ok {
		return ResultPage{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	spec, err := Validate(d, raw, e.limits)
	if err != nil {
		return ResultPage{}, err
	}

	plan, err := Build(d, spec, scope)
	if err != nil {
		return ResultPage{}, err
	}

	rows, total, err := e.executor.Execute(ctx, plan)
	if err != nil {
		return ResultPage{}, err
	}
	return Format(rows, total, plan.Page, plan.Limit), nil
}
