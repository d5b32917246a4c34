package search

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestValidate_Rejections(t *testing.T) {
	d := mustDescriptor(tutorEntity())

	tests := []struct {
		name    string
		raw     RawSpec
		wantErr error
	}{
		{"unknown filter field", RawSpec{Filters: map[string]any{"password": "x"}}, ErrInvalidFilterField},
		{"field names are case sensitive", RawSpec{Filters: map[string]any{"Branch": "Math"}}, ErrInvalidFilterField},
		{"text field given a number", RawSpec{Filters: map[string]any{"branch": 7.0}}, ErrInvalidFilterValue},
		{"integer field given a fraction", RawSpec{Filters: map[string]any{"id": 1.5}}, ErrInvalidFilterValue},
		{"integer field given text", RawSpec{Filters: map[string]any{"id": "one"}}, ErrInvalidFilterValue},
		{"decimal field given text", RawSpec{Filters: map[string]any{"hourly_rate": "cheap"}}, ErrInvalidFilterValue},
		{"boolean field given text", RawSpec{Filters: map[string]any{"validated": "maybe"}}, ErrInvalidFilterValue},
		{"malformed date", RawSpec{Filters: map[string]any{"created_at": map[string]any{"min": "yesterday"}}}, ErrInvalidFilterValue},
		{"unknown enum label", RawSpec{Filters: map[string]any{"status": "banned"}}, ErrInvalidFilterValue},
		{"null value", RawSpec{Filters: map[string]any{"branch": nil}}, ErrInvalidFilterValue},
		{"set on field without set", RawSpec{Filters: map[string]any{"hourly_rate": []any{1.0, 2.0}}}, ErrInvalidFilterValue},
		{"empty set", RawSpec{Filters: map[string]any{"id": []any{}}}, ErrInvalidFilterValue},
		{"range on field without range", RawSpec{Filters: map[string]any{"branch": map[string]any{"min": "A"}}}, ErrInvalidFilterValue},
		{"empty range", RawSpec{Filters: map[string]any{"id": map[string]any{}}}, ErrInvalidFilterValue},
		{"unknown range bound", RawSpec{Filters: map[string]any{"id": map[string]any{"from": 1.0}}}, ErrInvalidFilterValue},
		{"scalar on range-only field", RawSpec{Filters: map[string]any{"created_at": "2024-01-01"}}, ErrInvalidFilterValue},
		{"empty substring", RawSpec{Filters: map[string]any{"name": ""}}, ErrInvalidFilterValue},
		{"unknown sort field", RawSpec{Sort: []SortDirective{{Field: "salary"}}}, ErrInvalidFilterField},
		{"unsortable field", RawSpec{Sort: []SortDirective{{Field: "validated"}}}, ErrInvalidFilterField},
		{"unknown sort direction", RawSpec{Sort: []SortDirective{{Field: "id", Direction: "sideways"}}}, ErrInvalidFilterValue},
		{"duplicate sort field", RawSpec{Sort: []SortDirective{{Field: "id"}, {Field: "id", Direction: "desc"}}}, ErrInvalidFilterField},
		{"ungroupable field", RawSpec{GroupBy: []string{"name"}}, ErrInvalidFilterField},
		{"duplicate group field", RawSpec{GroupBy: []string{"branch", "branch"}}, ErrInvalidFilterField},
		{"grouped sort outside group", RawSpec{GroupBy: []string{"branch"}, Sort: []SortDirective{{Field: "id"}}}, ErrInvalidFilterField},
		{"count sort without grouping", RawSpec{Sort: []SortDirective{{Field: "count"}}}, ErrInvalidFilterField},
		{"page zero", RawSpec{Page: "0"}, ErrInvalidPagination},
		{"negative page", RawSpec{Page: "-3"}, ErrInvalidPagination},
		{"page not a number", RawSpec{Page: "two"}, ErrInvalidPagination},
		{"limit zero", RawSpec{Limit: "0"}, ErrInvalidPagination},
		{"limit above ceiling", RawSpec{Limit: "101"}, ErrInvalidPagination},
		{"limit not a number", RawSpec{Limit: "10abc"}, ErrInvalidPagination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Validate(d, tt.raw, DefaultLimits())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var se *SpecError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SpecError, got %T", err)
			}
			if spec.Page != 0 || spec.Conditions != nil {
				t.Fatalf("rejected document produced a partial spec: %+v", spec)
			}
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	d := mustDescriptor(tutorEntity())

	raw := RawSpec{
		Filters: map[string]any{
			"branch":      "Math",
			"id":          []any{1.0, json.Number("2"), "3"},
			"hourly_rate": map[string]any{"min": 10.0, "max": "25.50"},
			"validated":   true,
			"status":      "open",
			"created_at":  map[string]any{"min": "2024-01-01"},
			"name":        "An",
		},
		Sort:  []SortDirective{{Field: "hourly_rate", Direction: "DESC"}},
		Page:  "2",
		Limit: "25",
	}

	spec, err := Validate(d, raw, DefaultLimits())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if spec.Page != 2 || spec.Limit != 25 || spec.Offset() != 25 {
		t.Fatalf("pagination = page %d limit %d offset %d", spec.Page, spec.Limit, spec.Offset())
	}
	if len(spec.Conditions) != 7 {
		t.Fatalf("conditions = %d, want 7", len(spec.Conditions))
	}

	byName := map[string]Condition{}
	for _, c := range spec.Conditions {
		byName[c.Field.Name] = c
	}
	if c := byName["id"]; c.Op != OpSet || len(c.Values) != 3 || c.Values[1] != int64(2) || c.Values[2] != int64(3) {
		t.Errorf("id condition = %+v", c)
	}
	if c := byName["hourly_rate"]; c.Op != OpRange || !c.Min.(decimal.Decimal).Equal(decimal.NewFromInt(10)) || c.Max.(decimal.Decimal).String() != "25.5" {
		t.Errorf("hourly_rate condition = %+v", c)
	}
	if c := byName["name"]; c.Op != OpSubstring {
		t.Errorf("name should compile to substring, got %s", c.Op)
	}
	if c := byName["status"]; c.Values[0] != false {
		t.Errorf("status label not mapped: %+v", c.Values)
	}
	if c := byName["created_at"]; !c.Min.(time.Time).Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || c.Max != nil {
		t.Errorf("created_at condition = %+v", c)
	}
	if len(spec.Sort) != 1 || spec.Sort[0].Direction != Desc {
		t.Errorf("sort = %+v", spec.Sort)
	}
}

func TestValidate_Defaults(t *testing.T) {
	d := mustDescriptor(tutorEntity())

	spec, err := Validate(d, RawSpec{}, Limits{DefaultPageSize: 20, MaxPageSize: 50})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if spec.Page != 1 || spec.Limit != 20 {
		t.Fatalf("defaults = page %d limit %d, want 1 and 20", spec.Page, spec.Limit)
	}

	spec, err = Validate(d, RawSpec{}, Limits{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if spec.Limit != DefaultPageSize {
		t.Fatalf("zero limits should fall back to %d, got %d", DefaultPageSize, spec.Limit)
	}
}

func TestValidate_GroupedCountSort(t *testing.T) {
	d := mustDescriptor(tutorEntity())
	spec, err := Validate(d, RawSpec{
		GroupBy: []string{"branch", "validated"},
		Sort:    []SortDirective{{Field: "count", Direction: "desc"}, {Field: "branch"}},
	}, DefaultLimits())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !spec.Aggregate() || len(spec.GroupBy) != 2 {
		t.Fatalf("expected aggregate spec, got %+v", spec)
	}
	if spec.Sort[0].Field != nil || spec.Sort[0].Direction != Desc {
		t.Fatalf("first sort key should be count desc, got %+v", spec.Sort[0])
	}
}

func TestValidate_PaginationBoundsProperty(t *testing.T) {
	d := mustDescriptor(tutorEntity())
	limits := DefaultLimits()

	properties := gopter.NewProperties(nil)

	properties.Property("page and limit are accepted exactly inside their bounds", prop.ForAll(
		func(page, limit int) bool {
			spec, err := Validate(d, RawSpec{Page: itoa(page), Limit: itoa(limit)}, limits)
			valid := page >= 1 && limit >= 1 && limit <= limits.MaxPageSize
			if !valid {
				return errors.Is(err, ErrInvalidPagination)
			}
			return err == nil && spec.Page == page && spec.Limit == limit && spec.Offset() == (page-1)*limit
		},
		gen.IntRange(-5, 1000),
		gen.IntRange(-5, 150),
	))

	properties.TestingRun(t)
}

func TestQuerySpec_OffsetSaturates(t *testing.T) {
	tests := []struct {
		page, limit int
		want        int
	}{
		{1, 10, 0},
		{3, 10, 20},
		{4611686018427387905, 4, math.MaxInt},
		{math.MaxInt, 100, math.MaxInt},
		{math.MaxInt/10 + 1, 10, math.MaxInt / 10 * 10},
	}
	for _, tt := range tests {
		if got := (QuerySpec{Page: tt.page, Limit: tt.limit}).Offset(); got != tt.want {
			t.Errorf("Offset(page=%d, limit=%d) = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}

func TestPastEnd(t *testing.T) {
	tests := []struct {
		page, limit int
		total       int64
		want        bool
	}{
		{1, 10, 0, true},
		{1, 10, 15, false},
		{2, 10, 15, false},
		{3, 10, 15, true},
		{2, 5, 10, false},
		{3, 5, 10, true},
		{math.MaxInt, 1, math.MaxInt64, false},
		{4611686018427387905, 4, 15, true},
	}
	for _, tt := range tests {
		if got := PastEnd(tt.page, tt.limit, tt.total); got != tt.want {
			t.Errorf("PastEnd(%d, %d, %d) = %v, want %v", tt.page, tt.limit, tt.total, got, tt.want)
		}
	}
}

func TestToInt64_Bounds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"json number above float precision", json.Number("9007199254740993"), 9007199254740993, true},
		{"json number max int64", json.Number(strconv.FormatInt(math.MaxInt64, 10)), math.MaxInt64, true},
		{"json number beyond int64", json.Number("9223372036854775808"), 0, false},
		{"float at 2^63", float64(1 << 63), 0, false},
		{"float fraction", 1.5, 0, false},
		{"float integral", 42.0, 42, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toInt64(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Fatalf("toInt64(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestValidate_LargeIntegerFilterKeepsPrecision(t *testing.T) {
	d := mustDescriptor(tutorEntity())
	spec, err := Validate(d, RawSpec{Filters: map[string]any{"id": json.Number("9007199254740993")}}, DefaultLimits())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := spec.Conditions[0].Values[0]; got != int64(9007199254740993) {
		t.Fatalf("id value = %v", got)
	}
}

func TestNewDescriptor_RejectsBrokenEntities(t *testing.T) {
	base := tutorEntity()

	noKey := base
	noKey.Key = ""

	badAlias := base
	badAlias.Columns = []Column{{Expr: "t.id", Alias: "id; DROP TABLE tutors"}}

	dupField := base
	dupField.Fields = append(append([]FilterField(nil), base.Fields...), base.Fields[0])

	reserved := base
	reserved.Fields = []FilterField{{Name: "count", Column: "t.id", Type: TypeInteger, Operators: []Operator{OpEquals}}}

	badSort := base
	badSort.DefaultSort = []SortDirective{{Field: "validated"}}

	substringInt := base
	substringInt.Fields = []FilterField{{Name: "id", Column: "t.id", Type: TypeInteger, Operators: []Operator{OpSubstring}}}

	for name, e := range map[string]Entity{
		"no key":             noKey,
		"bad alias":          badAlias,
		"duplicate field":    dupField,
		"reserved name":      reserved,
		"unsortable default": badSort,
		"substring integer":  substringInt,
	} {
		if _, err := NewDescriptor(e); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
