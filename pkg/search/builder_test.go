package search

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const tutorSelect = "SELECT t.id AS id, u.name AS name, b.name AS branch, t.hourly_rate AS hourly_rate FROM " + tutorsFrom

func buildFrom(t *testing.T, raw RawSpec, scope ScopePredicate) Plan {
	t.Helper()
	d := mustDescriptor(tutorEntity())
	spec, err := Validate(d, raw, DefaultLimits())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	plan, err := Build(d, spec, scope)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return plan
}

func TestBuild_PageAndCountQueries(t *testing.T) {
	plan := buildFrom(t, RawSpec{
		Filters: map[string]any{"branch": "Math"},
		Page:    "2",
		Limit:   "10",
	}, ColumnEquals("t.validated", true))

	wantQuery := tutorSelect + " WHERE (t.validated = ?) AND LOWER(b.name) = LOWER(?) ORDER BY t.id ASC LIMIT ? OFFSET ?"
	if plan.Query != wantQuery {
		t.Fatalf("Query =\n%s\nwant\n%s", plan.Query, wantQuery)
	}
	if want := []any{true, "Math", 10, 10}; !reflect.DeepEqual(plan.Args, want) {
		t.Fatalf("Args = %#v, want %#v", plan.Args, want)
	}

	wantCount := "SELECT COUNT(*) FROM " + tutorsFrom + " WHERE (t.validated = ?) AND LOWER(b.name) = LOWER(?)"
	if plan.CountQuery != wantCount {
		t.Fatalf("CountQuery =\n%s\nwant\n%s", plan.CountQuery, wantCount)
	}
	if want := []any{true, "Math"}; !reflect.DeepEqual(plan.CountArgs, want) {
		t.Fatalf("CountArgs = %#v, want %#v", plan.CountArgs, want)
	}
	if plan.Offset != 10 || plan.Aggregate {
		t.Fatalf("Offset = %d Aggregate = %v", plan.Offset, plan.Aggregate)
	}
}

func TestBuild_Operators(t *testing.T) {
	tests := []struct {
		name      string
		filters   map[string]any
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "prefix substring escapes wildcards",
			filters:   map[string]any{"name": `50%_off\`},
			wantWhere: "LOWER(u.name) LIKE LOWER(?)",
			wantArgs:  []any{`50\%\_off\\%`},
		},
		{
			name:      "contains substring",
			filters:   map[string]any{"city": "rid"},
			wantWhere: "LOWER(u.city) LIKE LOWER(?)",
			wantArgs:  []any{"%rid%"},
		},
		{
			name:      "integer set",
			filters:   map[string]any{"id": []any{3.0, 5.0}},
			wantWhere: "t.id IN (?, ?)",
			wantArgs:  []any{int64(3), int64(5)},
		},
		{
			name:      "text set is case insensitive",
			filters:   map[string]any{"branch": []any{"Math", "Physics"}},
			wantWhere: "LOWER(b.name) IN (LOWER(?), LOWER(?))",
			wantArgs:  []any{"Math", "Physics"},
		},
		{
			name:      "open range",
			filters:   map[string]any{"id": map[string]any{"max": 9.0}},
			wantWhere: "(t.id <= ?)",
			wantArgs:  []any{int64(9)},
		},
		{
			name:      "closed range",
			filters:   map[string]any{"id": map[string]any{"min": 2.0, "max": 9.0}},
			wantWhere: "(t.id >= ? AND t.id <= ?)",
			wantArgs:  []any{int64(2), int64(9)},
		},
		{
			name:      "enum label",
			filters:   map[string]any{"status": "locked"},
			wantWhere: "t.locked = ?",
			wantArgs:  []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := buildFrom(t, RawSpec{Filters: tt.filters}, Unrestricted())
			want := tutorSelect + " WHERE " + tt.wantWhere + " ORDER BY t.id ASC LIMIT ? OFFSET ?"
			if plan.Query != want {
				t.Fatalf("Query =\n%s\nwant\n%s", plan.Query, want)
			}
			if !reflect.DeepEqual(plan.CountArgs, tt.wantArgs) {
				t.Fatalf("CountArgs = %#v, want %#v", plan.CountArgs, tt.wantArgs)
			}
		})
	}
}

func TestBuild_SortAlwaysEndsWithKey(t *testing.T) {
	plan := buildFrom(t, RawSpec{Sort: []SortDirective{{Field: "branch", Direction: "desc"}, {Field: "name"}}}, Unrestricted())
	if !strings.HasSuffix(plan.Query, " ORDER BY b.name DESC, u.name ASC, t.id ASC LIMIT ? OFFSET ?") {
		t.Fatalf("Query = %s", plan.Query)
	}

	plan = buildFrom(t, RawSpec{Sort: []SortDirective{{Field: "id", Direction: "desc"}}}, Unrestricted())
	if !strings.HasSuffix(plan.Query, " ORDER BY t.id DESC LIMIT ? OFFSET ?") {
		t.Fatalf("key already sorted should not repeat: %s", plan.Query)
	}
}

func TestBuild_AggregateMode(t *testing.T) {
	plan := buildFrom(t, RawSpec{
		GroupBy: []string{"branch"},
		Sort:    []SortDirective{{Field: "count", Direction: "desc"}},
		Filters: map[string]any{"validated": true},
	}, Unrestricted())

	wantQuery := "SELECT b.name AS branch, COUNT(*) AS count FROM " + tutorsFrom +
		" WHERE t.validated = ? GROUP BY b.name ORDER BY count DESC, b.name ASC LIMIT ? OFFSET ?"
	if plan.Query != wantQuery {
		t.Fatalf("Query =\n%s\nwant\n%s", plan.Query, wantQuery)
	}
	wantCount := "SELECT COUNT(*) FROM (SELECT 1 AS one FROM " + tutorsFrom + " WHERE t.validated = ? GROUP BY b.name) AS grouped"
	if plan.CountQuery != wantCount {
		t.Fatalf("CountQuery =\n%s\nwant\n%s", plan.CountQuery, wantCount)
	}
	if !plan.Aggregate {
		t.Fatal("expected aggregate plan")
	}
}

func TestBuild_BaseConditionAndScope(t *testing.T) {
	e := tutorEntity()
	e.Base = "t.locked = FALSE"
	d := mustDescriptor(e)

	spec, err := Validate(d, RawSpec{}, DefaultLimits())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	scope := And(ColumnEquals("t.validated", true), ColumnIn("t.id", "SELECT e.tutor_id FROM enrollments e WHERE e.student_id = ?", 42))
	plan, err := Build(d, spec, scope)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	wantWhere := " WHERE ((t.validated = ?) AND (t.id IN (SELECT e.tutor_id FROM enrollments e WHERE e.student_id = ?))) AND (t.locked = FALSE) ORDER BY"
	if !strings.Contains(plan.Query, wantWhere) {
		t.Fatalf("Query = %s", plan.Query)
	}
	if want := []any{true, 42}; !reflect.DeepEqual(plan.CountArgs, want) {
		t.Fatalf("CountArgs = %#v", plan.CountArgs)
	}
}

func TestBuild_RejectsZeroScope(t *testing.T) {
	d := mustDescriptor(tutorEntity())
	spec, _ := Validate(d, RawSpec{}, DefaultLimits())
	if _, err := Build(d, spec, ScopePredicate{}); err != ErrMissingScope {
		t.Fatalf("Build() error = %v, want ErrMissingScope", err)
	}
	if !And(Unrestricted(), ScopePredicate{}).IsZero() {
		t.Fatal("combining with a zero scope must stay invalid")
	}
}

func TestBuild_ScopeInviolableProperty(t *testing.T) {
	d := mustDescriptor(tutorEntity())
	scope := ColumnIn("t.id", "SELECT e.tutor_id FROM enrollments e WHERE e.tutor_id = ?", 7)
	scopePrefix := tutorSelect + " WHERE (t.id IN (SELECT e.tutor_id FROM enrollments e WHERE e.tutor_id = ?))"

	properties := gopter.NewProperties(nil)

	properties.Property("the scope leads the WHERE clause and values never reach the SQL text", prop.ForAll(
		func(branch, name string, ids []int64) bool {
			filters := map[string]any{"branch": branch}
			if name != "" {
				filters["name"] = name
			}
			if len(ids) > 0 {
				set := make([]any, len(ids))
				for i, id := range ids {
					set[i] = float64(id)
				}
				filters["id"] = set
			}

			spec, err := Validate(d, RawSpec{Filters: filters}, DefaultLimits())
			if err != nil {
				return false
			}
			plan, err := Build(d, spec, scope)
			if err != nil {
				return false
			}

			// Same shape with neutral values must give identical SQL text.
			neutral := map[string]any{"branch": "x"}
			if name != "" {
				neutral["name"] = "x"
			}
			if len(ids) > 0 {
				set := make([]any, len(ids))
				for i := range set {
					set[i] = 1.0
				}
				neutral["id"] = set
			}
			nspec, _ := Validate(d, RawSpec{Filters: neutral}, DefaultLimits())
			nplan, _ := Build(d, nspec, scope)

			return strings.HasPrefix(plan.Query, scopePrefix+" AND ") &&
				plan.Query == nplan.Query &&
				plan.CountArgs[0] == 7
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.SliceOfN(5, gen.Int64Range(1, 1000)),
	))

	properties.TestingRun(t)
}

func TestBuild_PaginationDeterminismProperty(t *testing.T) {
	d := mustDescriptor(tutorEntity())

	properties := gopter.NewProperties(nil)

	properties.Property("pages cover an ordered result exactly once and overrun pages are empty", prop.ForAll(
		func(total, limit int) bool {
			ids := make([]int, total)
			for i := range ids {
				ids[i] = i + 1
			}

			var seen []int
			lastPage := (total + limit - 1) / limit
			for page := 1; page <= lastPage+1; page++ {
				spec, err := Validate(d, RawSpec{Page: itoa(page), Limit: itoa(limit)}, DefaultLimits())
				if err != nil {
					return false
				}
				plan, err := Build(d, spec, Unrestricted())
				if err != nil || !strings.HasSuffix(plan.Query, "t.id ASC LIMIT ? OFFSET ?") {
					return false
				}
				if page > lastPage && plan.Offset < total {
					return false
				}
				from := min(plan.Offset, total)
				to := min(plan.Offset+plan.Limit, total)
				seen = append(seen, ids[from:to]...)
			}
			return reflect.DeepEqual(seen, ids) || (total == 0 && len(seen) == 0)
		},
		gen.IntRange(0, 250),
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}

func TestBuild_LargePagesNeverWrapProperty(t *testing.T) {
	d := mustDescriptor(tutorEntity())

	properties := gopter.NewProperties(nil)

	properties.Property("huge pages build a non-negative offset and are past the end", prop.ForAll(
		func(page int64, limit int, total int64) bool {
			spec, err := Validate(d, RawSpec{Page: strconv.FormatInt(page, 10), Limit: itoa(limit)}, DefaultLimits())
			if err != nil {
				return false
			}
			plan, err := Build(d, spec, Unrestricted())
			if err != nil || plan.Offset < 0 {
				return false
			}
			if plan.Args[len(plan.Args)-1] != plan.Offset {
				return false
			}
			return PastEnd(plan.Page, plan.Limit, total)
		},
		gen.Int64Range(math.MaxInt64/200, math.MaxInt64),
		gen.IntRange(1, 100),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
