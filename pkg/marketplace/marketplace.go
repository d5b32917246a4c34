// Package marketplace implements the enrollment and account lifecycle around the rating ledger.
package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/catalog"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/repository"
)

var (
	ErrTutorNotFound       = ledger.ErrTutorNotFound
	ErrEnrollmentNotFound  = ledger.ErrEnrollmentNotFound
	ErrStudentNotFound     = errors.New("student not found")
	ErrTutorNotValidated   = errors.New("tutor is not validated")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrNotEnrollmentOwner  = errors.New("enrollment belongs to another tutor")
)

const (
	selectStudentByUser = `SELECT id FROM students WHERE user_id = ?`
	selectTutorByUser   = `SELECT id FROM tutors WHERE user_id = ?`
	selectTutorStatus   = `SELECT validated, locked FROM tutors WHERE id = ?`
	selectPairing       = `SELECT id FROM enrollments WHERE student_id = ? AND tutor_id = ?`
	insertEnrollment    = `INSERT INTO enrollments (student_id, tutor_id, state, created_at) VALUES (?, ?, ?, ?)`
	selectEnrollmentOwn = `SELECT tutor_id, state FROM enrollments WHERE id = ? FOR UPDATE`
	acceptEnrollment    = `UPDATE enrollments SET state = ? WHERE id = ?`
	setTutorValidated   = `UPDATE tutors SET validated = ? WHERE id = ?`
	setTutorLocked      = `UPDATE tutors SET locked = ? WHERE id = ?`
	setStudentActive    = `UPDATE students SET active = ? WHERE id = ?`
)

// Enrollment is a student-tutor pairing.
type Enrollment struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	TutorID   int64     `json:"tutor_id"`
	State     int       `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Service runs lifecycle operations, each in its own transaction.
type Service struct {
	coordinator *repository.Coordinator
	logger      logger.Logger
	now         func() time.Time
}

// NewService creates a Service.
func NewService(coordinator *repository.Coordinator, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{coordinator: coordinator, logger: log, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveActor maps an authenticated user to the student or tutor row that owns their data.
func (s *Service) ResolveActor(ctx context.Context, id auth.Identity) (catalog.Actor, error) {
	actor := catalog.Actor{Role: id.Role}
	var query string
	var notFound error
	switch id.Role {
	case auth.RoleAdmin:
		return actor, nil
	case auth.RoleStudent:
		query, notFound = selectStudentByUser, ErrStudentNotFound
	case auth.RoleTutor:
		query, notFound = selectTutorByUser, ErrTutorNotFound
	default:
		return catalog.Actor{}, auth.ErrInvalidIdentity
	}

	err := s.coordinator.WithReadSnapshot(ctx, func(ctx context.Context, tx *repository.Tx) error {
		return tx.GetContext(ctx, &actor.OwnerID, tx.Rebind(query), id.UserID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Actor{}, notFound
	}
	if err != nil {
		return catalog.Actor{}, err
	}
	return actor, nil
}

// SignUp creates a pending enrollment of a student with a validated, unlocked tutor.
func (s *Service) SignUp(ctx context.Context, studentID, tutorID int64) (Enrollment, error) {
	enr := Enrollment{StudentID: studentID, TutorID: tutorID, State: catalog.StatePending, CreatedAt: s.now()}

	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		var status struct {
			Validated bool `db:"validated"`
			Locked    bool `db:"locked"`
		}
		if err := tx.GetContext(ctx, &status, tx.Rebind(selectTutorStatus), tutorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTutorNotFound
			}
			return err
		}
		if !status.Validated || status.Locked {
			return ErrTutorNotValidated
		}

		var existing int64
		err := tx.GetContext(ctx, &existing, tx.Rebind(selectPairing), studentID, tutorID)
		switch {
		case err == nil:
			return ErrDuplicateEnrollment
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		id, err := insertReturningID(ctx, tx, insertEnrollment, studentID, tutorID, enr.State, enr.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEnrollment
			}
			return err
		}
		enr.ID = id
		return nil
	})
	if err != nil {
		return Enrollment{}, err
	}

	s.logger.WithContext(ctx).Info("enrollment created", "enrollment_id", enr.ID, "student_id", studentID, "tutor_id", tutorID)
	return enr, nil
}

// Accept moves a tutor's pending enrollment to accepted. Accepting twice is not an error.
func (s *Service) Accept(ctx context.Context, tutorID, enrollmentID int64) error {
	return s.coordinator.WithTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		var row struct {
			TutorID int64 `db:"tutor_id"`
			State   int   `db:"state"`
		}
		if err := tx.GetContext(ctx, &row, tx.Rebind(selectEnrollmentOwn), enrollmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEnrollmentNotFound
			}
			return err
		}
		if row.TutorID != tutorID {
			return ErrNotEnrollmentOwner
		}
		if row.State == catalog.StateAccepted {
			return nil
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(acceptEnrollment), catalog.StateAccepted, enrollmentID)
		return err
	})
}

// SetTutorValidated marks a tutor as reviewed by an admin, or withdraws it.
func (s *Service) SetTutorValidated(ctx context.Context, tutorID int64, validated bool) error {
	return s.updateOne(ctx, setTutorValidated, ErrTutorNotFound, validated, tutorID)
}

// SetTutorLocked hides or restores a tutor in public listings.
func (s *Service) SetTutorLocked(ctx context.Context, tutorID int64, locked bool) error {
	return s.updateOne(ctx, setTutorLocked, ErrTutorNotFound, locked, tutorID)
}

// SetStudentActive is the logical delete and undelete of a student.
func (s *Service) SetStudentActive(ctx context.Context, studentID int64, active bool) error {
	return s.updateOne(ctx, setStudentActive, ErrStudentNotFound, active, studentID)
}

func (s *Service) updateOne(ctx context.Context, query string, notFound error, args ...any) error {
	return s.coordinator.WithTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &repository.StorageError{Op: "rows_affected", Err: err}
		}
		if n == 0 {
			return notFound
		}
		return nil
	})
}

// insertReturningID runs an INSERT and returns the new id. PostgreSQL has no
// LastInsertId, so the statement gets a RETURNING clause there.
func insertReturningID(ctx context.Context, tx *repository.Tx, query string, args ...any) (int64, error) {
	if tx.DriverName() == "postgres" {
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind(query+" RETURNING id"), args...)
		return id, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &repository.StorageError{Op: "last_insert_id", Err: err}
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
