// Package ledger maintains tutor rating aggregates as students add and revise opinions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/observability/metrics"
	"github.com/tutorhub/tutorhub/pkg/observability/tracing"
	"github.com/tutorhub/tutorhub/pkg/repository"
)

var (
	ErrEnrollmentNotFound    = errors.New("enrollment not found")
	ErrUnauthorizedOpinion   = errors.New("student does not own the enrollment")
	ErrEnrollmentNotAccepted = errors.New("enrollment is not accepted")
	ErrTutorNotFound         = errors.New("tutor not found")
	ErrScoreOutOfRange       = errors.New("score out of range")
)

// StateAccepted is the enrollments.state value required for opinion writes.
const StateAccepted = 1

const (
	selectEnrollmentForUpdate = `SELECT student_id, tutor_id, state, score FROM enrollments WHERE id = ? FOR UPDATE`
	selectAggregateForUpdate  = `SELECT rating_sum, rating_count FROM tutors WHERE id = ? FOR UPDATE`
	selectAggregate           = `SELECT rating_sum, rating_count FROM tutors WHERE id = ?`
	applyDelta                = `UPDATE tutors SET rating_sum = rating_sum + CAST(? AS DECIMAL(12,2)), rating_count = rating_count + ? WHERE id = ?`
	writeOpinion              = `UPDATE enrollments SET score = ?, opinion = ?, opinion_at = ? WHERE id = ?`
)

// Config bounds accepted scores.
type Config struct {
	MinScore int
	MaxScore int
}

// OpinionInput is a student's score for one enrollment.
type OpinionInput struct {
	EnrollmentID int64
	StudentID    int64
	Score        int
	Text         string
}

// OpinionRecord is the stored opinion and the tutor aggregate after the write.
type OpinionRecord struct {
	EnrollmentID  int64     `json:"enrollment_id"`
	TutorID       int64     `json:"tutor_id"`
	StudentID     int64     `json:"student_id"`
	Score         int       `json:"score"`
	PreviousScore *int      `json:"previous_score,omitempty"`
	Text          string    `json:"opinion"`
	RecordedAt    time.Time `json:"recorded_at"`
	Aggregate     Aggregate `json:"aggregate"`
}

// Revised reports whether the write changed an existing opinion.
func (r OpinionRecord) Revised() bool {
	return r.PreviousScore != nil
}

type enrollmentRow struct {
	StudentID int64         `db:"student_id"`
	TutorID   int64         `db:"tutor_id"`
	State     int           `db:"state"`
	Score     sql.NullInt64 `db:"score"`
}

type aggregateRow struct {
	Sum   decimal.Decimal `db:"rating_sum"`
	Count int64           `db:"rating_count"`
}

// Ledger is the only writer of tutors.rating_sum and tutors.rating_count.
type Ledger struct {
	cfg    Config
	logger logger.Logger
	now    func() time.Time
}

// New creates a ledger.
func New(cfg Config, log logger.Logger) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{cfg: cfg, logger: log, now: func() time.Time { return time.Now().UTC() }}
}

// RecordOpinion stores in.Score on the enrollment and moves the tutor aggregate by the
// matching delta. Both rows are locked for the rest of tx; the caller commits or rolls back.
func (l *Ledger) RecordOpinion(ctx context.Context, tx *repository.Tx, in OpinionInput) (OpinionRecord, error) {
	if in.Score < l.cfg.MinScore || in.Score > l.cfg.MaxScore {
		metrics.RecordOpinion(metrics.OpinionKindRejected)
		return OpinionRecord{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrScoreOutOfRange, in.Score, l.cfg.MinScore, l.cfg.MaxScore)
	}

	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBTx, tracing.WithDBTable("enrollments"))
	defer span.End()

	rec, err := l.record(ctx, tx, in)
	if err != nil {
		tracing.RecordError(span, err)
		if !repository.IsStorageError(err) && !errors.Is(err, repository.ErrTransactionClosed) {
			metrics.RecordOpinion(metrics.OpinionKindRejected)
		}
		return OpinionRecord{}, err
	}
	tracing.RecordSuccess(span)

	kind := metrics.OpinionKindAdd
	if rec.Revised() {
		kind = metrics.OpinionKindRevise
	}
	metrics.RecordOpinion(kind)
	l.logger.WithContext(ctx).Info("opinion recorded",
		"enrollment_id", rec.EnrollmentID,
		"tutor_id", rec.TutorID,
		"kind", kind,
		"rating_count", rec.Aggregate.Count,
	)
	return rec, nil
}

func (l *Ledger) record(ctx context.Context, tx *repository.Tx, in OpinionInput) (OpinionRecord, error) {
	var enr enrollmentRow
	if err := tx.GetContext(ctx, &enr, tx.Rebind(selectEnrollmentForUpdate), in.EnrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OpinionRecord{}, ErrEnrollmentNotFound
		}
		return OpinionRecord{}, err
	}
	if enr.StudentID != in.StudentID {
		return OpinionRecord{}, ErrUnauthorizedOpinion
	}
	if enr.State != StateAccepted {
		return OpinionRecord{}, ErrEnrollmentNotAccepted
	}

	var agg aggregateRow
	if err := tx.GetContext(ctx, &agg, tx.Rebind(selectAggregateForUpdate), enr.TutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OpinionRecord{}, ErrTutorNotFound
		}
		return OpinionRecord{}, err
	}

	current := Aggregate{Sum: agg.Sum, Count: agg.Count}
	var next Aggregate
	var delta Delta
	var previous *int
	if enr.Score.Valid {
		p := int(enr.Score.Int64)
		previous = &p
		next, delta = current.Revise(p, in.Score)
	} else {
		next, delta = current.Add(in.Score)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(applyDelta), delta.Sum, delta.Count, enr.TutorID); err != nil {
		return OpinionRecord{}, err
	}

	recordedAt := l.now()
	text := sql.NullString{String: in.Text, Valid: in.Text != ""}
	if _, err := tx.ExecContext(ctx, tx.Rebind(writeOpinion), in.Score, text, recordedAt, in.EnrollmentID); err != nil {
		return OpinionRecord{}, err
	}

	return OpinionRecord{
		EnrollmentID:  in.EnrollmentID,
		TutorID:       enr.TutorID,
		StudentID:     enr.StudentID,
		Score:         in.Score,
		PreviousScore: previous,
		Text:          in.Text,
		RecordedAt:    recordedAt,
		Aggregate:     next,
	}, nil
}

// Current reads a tutor's aggregate without locking it.
func (l *Ledger) Current(ctx context.Context, tx *repository.Tx, tutorID int64) (Aggregate, error) {
	var agg aggregateRow
	if err := tx.GetContext(ctx, &agg, tx.Rebind(selectAggregate), tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Aggregate{}, ErrTutorNotFound
		}
		return Aggregate{}, err
	}
	return Aggregate{Sum: agg.Sum, Count: agg.Count}, nil
}
