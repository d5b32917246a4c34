package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tutorhub/tutorhub/pkg/migrate"
)

// MigratedPostgres starts PostgreSQL, applies the bundled schema and returns an open handle.
func MigratedPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	return MigratePostgres(t, StartPostgres(t))
}

// MigratePostgres applies the bundled schema to the database at dsn.
func MigratePostgres(t *testing.T, dsn string) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	manager, err := migrate.NewEmbeddedManager(db)
	if err != nil {
		t.Fatalf("migration manager: %v", err)
	}
	if _, err := manager.Up(context.Background()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// Seeder inserts marketplace rows into a migrated PostgreSQL database.
type Seeder struct {
	t   *testing.T
	db  *sqlx.DB
	seq atomic.Int64
}

// NewSeeder creates a Seeder over db.
func NewSeeder(t *testing.T, db *sqlx.DB) *Seeder {
	return &Seeder{t: t, db: db}
}

// TutorSeed describes a tutor row.
type TutorSeed struct {
	Name       string
	City       string
	Branch     string
	HourlyRate string
	Experience int
	Validated  bool
	Locked     bool
}

// Branch returns the id of the named branch, inserting it when missing.
func (s *Seeder) Branch(name string) int64 {
	s.t.Helper()
	var id int64
	err := s.db.Get(&id, `INSERT INTO branches (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`, name)
	if err != nil {
		s.t.Fatalf("seed branch %q: %v", name, err)
	}
	return id
}

// User inserts a user with the given role and returns its id.
func (s *Seeder) User(name, city, role string) int64 {
	s.t.Helper()
	n := s.seq.Add(1)
	var id int64
	err := s.db.Get(&id, `INSERT INTO users (email, name, surname, phone, city, role)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		fmt.Sprintf("user%d@tutorhub.test", n), name, fmt.Sprintf("Surname%d", n), fmt.Sprintf("+34600%06d", n), city, role)
	if err != nil {
		s.t.Fatalf("seed user %q: %v", name, err)
	}
	return id
}

// Student inserts an active student and returns the student and user ids.
func (s *Seeder) Student(name string) (studentID, userID int64) {
	s.t.Helper()
	userID = s.User(name, "Madrid", "student")
	if err := s.db.Get(&studentID, `INSERT INTO students (user_id) VALUES ($1) RETURNING id`, userID); err != nil {
		s.t.Fatalf("seed student %q: %v", name, err)
	}
	return studentID, userID
}

// Tutor inserts a tutor and returns the tutor and user ids.
func (s *Seeder) Tutor(seed TutorSeed) (tutorID, userID int64) {
	s.t.Helper()
	if seed.Branch == "" {
		seed.Branch = "Mathematics"
	}
	if seed.HourlyRate == "" {
		seed.HourlyRate = "20.00"
	}
	if seed.City == "" {
		seed.City = "Madrid"
	}
	branchID := s.Branch(seed.Branch)
	userID = s.User(seed.Name, seed.City, "tutor")
	err := s.db.Get(&tutorID, `INSERT INTO tutors (user_id, branch_id, hourly_rate, experience_years, validated, locked)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		userID, branchID, seed.HourlyRate, seed.Experience, seed.Validated, seed.Locked)
	if err != nil {
		s.t.Fatalf("seed tutor %q: %v", seed.Name, err)
	}
	return tutorID, userID
}

// Enrollment pairs a student with a tutor in the given state and returns its id.
func (s *Seeder) Enrollment(studentID, tutorID int64, state int) int64 {
	s.t.Helper()
	var id int64
	err := s.db.Get(&id, `INSERT INTO enrollments (student_id, tutor_id, state) VALUES ($1, $2, $3) RETURNING id`,
		studentID, tutorID, state)
	if err != nil {
		s.t.Fatalf("seed enrollment: %v", err)
	}
	return id
}
