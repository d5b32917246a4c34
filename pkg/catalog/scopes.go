package catalog

import (
	"errors"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/search"
)

// ErrScopeDenied is returned when a role has no view of an entity.
var ErrScopeDenied = errors.New("role has no access to this entity")

// Actor is a requester whose user id has been resolved to a role-specific id.
// OwnerID is the student id for students, the tutor id for tutors and unused for admins.
type Actor struct {
	Role    auth.Role
	OwnerID int64
}

// StudentsOfTutor admits students holding an enrollment with the tutor.
func StudentsOfTutor(tutorID int64) search.ScopePredicate {
	return search.ColumnIn("s.id", "SELECT en.student_id FROM enrollments en WHERE en.tutor_id = ?", tutorID)
}

// TutorsOfStudent admits tutors the student holds an enrollment with.
func TutorsOfStudent(studentID int64) search.ScopePredicate {
	return search.ColumnIn("t.id", "SELECT en.tutor_id FROM enrollments en WHERE en.student_id = ?", studentID)
}

// EnrollmentsOfTutor admits the tutor's own enrollments.
func EnrollmentsOfTutor(tutorID int64) search.ScopePredicate {
	return search.ColumnEquals("e.tutor_id", tutorID)
}

// EnrollmentsOfStudent admits the student's own enrollments.
func EnrollmentsOfStudent(studentID int64) search.ScopePredicate {
	return search.ColumnEquals("e.student_id", studentID)
}

// StudentScope picks the students view of a.
func StudentScope(a Actor) (search.ScopePredicate, error) {
	switch a.Role {
	case auth.RoleAdmin:
		return search.Unrestricted(), nil
	case auth.RoleTutor:
		return StudentsOfTutor(a.OwnerID), nil
	}
	return search.ScopePredicate{}, ErrScopeDenied
}

// TutorScope picks the tutors view of a.
func TutorScope(a Actor) (search.ScopePredicate, error) {
	switch a.Role {
	case auth.RoleAdmin:
		return search.Unrestricted(), nil
	case auth.RoleStudent:
		return TutorsOfStudent(a.OwnerID), nil
	}
	return search.ScopePredicate{}, ErrScopeDenied
}

// EnrollmentScope picks the enrollments view of a.
func EnrollmentScope(a Actor) (search.ScopePredicate, error) {
	switch a.Role {
	case auth.RoleTutor:
		return EnrollmentsOfTutor(a.OwnerID), nil
	case auth.RoleStudent:
		return EnrollmentsOfStudent(a.OwnerID), nil
	case auth.RoleAdmin:
		return search.Unrestricted(), nil
	}
	return search.ScopePredicate{}, ErrScopeDenied
}

// PublicScope is used for anonymous entities; their visibility rules live in the entity base condition.
func PublicScope() search.ScopePredicate {
	return search.Unrestricted()
}
