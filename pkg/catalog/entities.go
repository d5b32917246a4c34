// Package catalog declares the searchable entities of the marketplace and the
// role scopes that restrict them.
package catalog

import "github.com/tutorhub/tutorhub/pkg/search"

// Entity names registered with the search engine.
const (
	Students            = "students"
	Tutors              = "tutors"
	TutorsPublic        = "tutors_public"
	TutorsPublicContact = "tutors_public_contact"
	Enrollments         = "enrollments"
	Branches            = "branches"
	Opinions            = "opinions"
)

// Enrollment states as stored in enrollments.state.
const (
	StatePending  = 0
	StateAccepted = 1
)

// RatingExpr is the tutor average derived from the ledger aggregate.
const RatingExpr = "CASE WHEN t.rating_count > 0 THEN ROUND(t.rating_sum / t.rating_count, 2) END"

// ratingSortExpr orders unrated tutors below every rated one on both dialects.
const ratingSortExpr = "COALESCE(" + RatingExpr + ", -1)"

var (
	numeric     = []search.Operator{search.OpEquals, search.OpSet, search.OpRange}
	scalarRange = []search.Operator{search.OpEquals, search.OpRange}
	dateRange   = []search.Operator{search.OpRange}
	flag        = []search.Operator{search.OpEquals}
	label       = []search.Operator{search.OpEquals, search.OpSet}
	contains    = []search.Operator{search.OpSubstring}
)

const (
	studentsFrom    = "students s JOIN users u ON u.id = s.user_id"
	tutorsFrom      = "tutors t JOIN users u ON u.id = t.user_id JOIN branches b ON b.id = t.branch_id"
	enrollmentsFrom = "enrollments e" +
		" JOIN students s ON s.id = e.student_id JOIN users su ON su.id = s.user_id" +
		" JOIN tutors t ON t.id = e.tutor_id JOIN users tu ON tu.id = t.user_id"
	opinionsFrom = "enrollments e JOIN students s ON s.id = e.student_id JOIN users u ON u.id = s.user_id"

	publicTutorCondition = "t.validated = TRUE AND t.locked = FALSE"
)

// All returns every entity descriptor.
func All() []search.Entity {
	return []search.Entity{
		StudentsEntity(),
		TutorsEntity(),
		PublicTutorsEntity(false),
		PublicTutorsEntity(true),
		EnrollmentsEntity(),
		BranchesEntity(),
		OpinionsEntity(),
	}
}

func StudentsEntity() search.Entity {
	return search.Entity{
		Name: Students,
		From: studentsFrom,
		Columns: []search.Column{
			{Expr: "s.id", Alias: "id"},
			{Expr: "s.user_id", Alias: "user_id"},
			{Expr: "u.name", Alias: "name"},
			{Expr: "u.surname", Alias: "surname"},
			{Expr: "u.email", Alias: "email"},
			{Expr: "u.phone", Alias: "phone"},
			{Expr: "u.city", Alias: "city"},
			{Expr: "s.active", Alias: "active"},
			{Expr: "u.created_at", Alias: "created_at"},
		},
		Fields: []search.FilterField{
			{Name: "id", Column: "s.id", Type: search.TypeInteger, Operators: numeric, Sortable: true},
			{Name: "name", Column: "u.name", Type: search.TypeText, Operators: contains, Sortable: true},
			{Name: "surname", Column: "u.surname", Type: search.TypeText, Operators: contains, Sortable: true},
			{Name: "email", Column: "u.email", Type: search.TypeText, Operators: contains, Sortable: true},
			{Name: "city", Column: "u.city", Type: search.TypeText, Operators: contains, Sortable: true, Groupable: true},
			{Name: "active", Column: "s.active", Type: search.TypeBoolean, Operators: flag, Groupable: true},
			{Name: "created_at", Column: "u.created_at", Type: search.TypeDate, Operators: dateRange, Sortable: true},
		},
		Key:         "s.id",
		DefaultSort: []search.SortDirective{{Field: "id", Direction: "asc"}},
	}
}

func tutorFields(private bool) []search.FilterField {
	fields := []search.FilterField{
		{Name: "id", Column: "t.id", Type: search.TypeInteger, Operators: numeric, Sortable: true},
		{Name: "name", Column: "u.name", Type: search.TypeText, Operators: contains, Sortable: true},
		{Name: "surname", Column: "u.surname", Type: search.TypeText, Operators: contains, Sortable: true},
		{Name: "city", Column: "u.city", Type: search.TypeText, Operators: contains, Sortable: true, Groupable: true},
		{Name: "branch", Column: "b.name", Type: search.TypeText, Operators: label, Sortable: true, Groupable: true},
		{Name: "branch_id", Column: "t.branch_id", Type: search.TypeInteger, Operators: label, Groupable: true},
		{Name: "hourly_rate", Column: "t.hourly_rate", Type: search.TypeDecimal, Operators: scalarRange, Sortable: true},
		{Name: "experience", Column: "t.experience_years", Type: search.TypeInteger, Operators: numeric, Sortable: true},
		{Name: "rating", Column: RatingExpr, SortColumn: ratingSortExpr, Type: search.TypeDecimal, Operators: scalarRange, Sortable: true},
	}
	if private {
		fields = append(fields,
			search.FilterField{Name: "email", Column: "u.email", Type: search.TypeText, Operators: contains, Sortable: true},
			search.FilterField{Name: "validated", Column: "t.validated", Type: search.TypeBoolean, Operators: flag, Groupable: true},
			search.FilterField{Name: "locked", Column: "t.locked", Type: search.TypeBoolean, Operators: flag, Groupable: true},
			search.FilterField{Name: "rating_count", Column: "t.rating_count", Type: search.TypeInteger, Operators: numeric, Sortable: true},
		)
	}
	return fields
}

func tutorColumns(contact, private bool) []search.Column {
	cols := []search.Column{
		{Expr: "t.id", Alias: "id"},
		{Expr: "u.name", Alias: "name"},
		{Expr: "u.surname", Alias: "surname"},
		{Expr: "u.city", Alias: "city"},
		{Expr: "t.branch_id", Alias: "branch_id"},
		{Expr: "b.name", Alias: "branch"},
		{Expr: "t.hourly_rate", Alias: "hourly_rate"},
		{Expr: "t.experience_years", Alias: "experience"},
		{Expr: RatingExpr, Alias: "rating"},
		{Expr: "t.rating_count", Alias: "rating_count"},
	}
	if contact {
		cols = append(cols, search.Column{Expr: "u.email", Alias: "email"}, search.Column{Expr: "u.phone", Alias: "phone"})
	}
	if private {
		cols = append(cols,
			search.Column{Expr: "t.user_id", Alias: "user_id"},
			search.Column{Expr: "t.validated", Alias: "validated"},
			search.Column{Expr: "t.locked", Alias: "locked"},
		)
	}
	return cols
}

func TutorsEntity() search.Entity {
	return search.Entity{
		Name:        Tutors,
		From:        tutorsFrom,
		Columns:     tutorColumns(true, true),
		Fields:      tutorFields(true),
		Key:         "t.id",
		DefaultSort: []search.SortDirective{{Field: "id", Direction: "asc"}},
	}
}

// PublicTutorsEntity lists validated, unlocked tutors. Contact columns are only
// selected for the authenticated variant.
func PublicTutorsEntity(withContact bool) search.Entity {
	name := TutorsPublic
	if withContact {
		name = TutorsPublicContact
	}
	return search.Entity{
		Name:        name,
		From:        tutorsFrom,
		Columns:     tutorColumns(withContact, false),
		Fields:      tutorFields(false),
		Key:         "t.id",
		Base:        publicTutorCondition,
		DefaultSort: []search.SortDirective{{Field: "rating", Direction: "desc"}},
	}
}

func EnrollmentsEntity() search.Entity {
	return search.Entity{
		Name: Enrollments,
		From: enrollmentsFrom,
		Columns: []search.Column{
			{Expr: "e.id", Alias: "id"},
			{Expr: "e.student_id", Alias: "student_id"},
			{Expr: "e.tutor_id", Alias: "tutor_id"},
			{Expr: "su.name", Alias: "student_name"},
			{Expr: "su.surname", Alias: "student_surname"},
			{Expr: "tu.name", Alias: "tutor_name"},
			{Expr: "tu.surname", Alias: "tutor_surname"},
			{Expr: "e.state", Alias: "state"},
			{Expr: "e.score", Alias: "score"},
			{Expr: "e.opinion", Alias: "opinion"},
			{Expr: "e.created_at", Alias: "created_at"},
			{Expr: "e.opinion_at", Alias: "opinion_at"},
		},
		Fields: []search.FilterField{
			{Name: "id", Column: "e.id", Type: search.TypeInteger, Operators: numeric, Sortable: true},
			{Name: "student_id", Column: "e.student_id", Type: search.TypeInteger, Operators: label, Sortable: true, Groupable: true},
			{Name: "tutor_id", Column: "e.tutor_id", Type: search.TypeInteger, Operators: label, Sortable: true, Groupable: true},
			{Name: "student_name", Column: "su.name", Type: search.TypeText, Operators: contains, Sortable: true},
			{Name: "tutor_name", Column: "tu.name", Type: search.TypeText, Operators: contains, Sortable: true},
			{
				Name: "state", Column: "e.state", Type: search.TypeEnum, Operators: label, Sortable: true, Groupable: true,
				Enum: map[string]any{"pending": StatePending, "accepted": StateAccepted},
			},
			{Name: "score", Column: "e.score", Type: search.TypeInteger, Operators: numeric, Sortable: true, Groupable: true},
			{Name: "created_at", Column: "e.created_at", Type: search.TypeDate, Operators: dateRange, Sortable: true},
		},
		Key:         "e.id",
		DefaultSort: []search.SortDirective{{Field: "created_at", Direction: "desc"}},
	}
}

func BranchesEntity() search.Entity {
	return search.Entity{
		Name:    Branches,
		From:    "branches b",
		Columns: []search.Column{{Expr: "b.id", Alias: "id"}, {Expr: "b.name", Alias: "name"}},
		Fields: []search.FilterField{
			{Name: "id", Column: "b.id", Type: search.TypeInteger, Operators: numeric, Sortable: true},
			{Name: "name", Column: "b.name", Type: search.TypeText, Operators: contains, Sortable: true},
		},
		Key:         "b.id",
		DefaultSort: []search.SortDirective{{Field: "name", Direction: "asc"}},
	}
}

// OpinionsEntity exposes scored enrollments only.
func OpinionsEntity() search.Entity {
	return search.Entity{
		Name: Opinions,
		From: opinionsFrom,
		Columns: []search.Column{
			{Expr: "e.id", Alias: "id"},
			{Expr: "e.tutor_id", Alias: "tutor_id"},
			{Expr: "u.name", Alias: "student_name"},
			{Expr: "e.score", Alias: "score"},
			{Expr: "e.opinion", Alias: "opinion"},
			{Expr: "e.opinion_at", Alias: "opinion_at"},
		},
		Fields: []search.FilterField{
			{Name: "tutor_id", Column: "e.tutor_id", Type: search.TypeInteger, Operators: label, Groupable: true},
			{Name: "score", Column: "e.score", Type: search.TypeInteger, Operators: numeric, Sortable: true, Groupable: true},
			{Name: "opinion_at", Column: "e.opinion_at", Type: search.TypeDate, Operators: dateRange, Sortable: true},
		},
		Key:         "e.id",
		Base:        "e.score IS NOT NULL",
		DefaultSort: []search.SortDirective{{Field: "opinion_at", Direction: "desc"}},
	}
}
