package search

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPageSize is used when a request carries no limit.
	DefaultPageSize = 10
	// MaxPageSize is the default ceiling for limit.
	MaxPageSize = 100

	maxSetSize = 100
	countAlias = "count"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortDirective is one raw sort entry.
type SortDirective struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// RawSpec is a search document as received from a caller.
type RawSpec struct {
	Filters map[string]any  `json:"filters"`
	Sort    []SortDirective `json:"sort"`
	GroupBy []string        `json:"groupBy"`
	Page    string          `json:"-"`
	Limit   string          `json:"-"`
}

// Limits bounds pagination.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the stock page size bounds.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

// Condition is one validated filter.
type Condition struct {
	Field *FilterField
	Op    Operator
	// Values holds one value for equals and substring, every member for set.
	Values []any
	// Min and Max are nil when that bound is open.
	Min any
	Max any
}

// SortKey is a validated ordering entry. Field is nil for the aggregate count.
type SortKey struct {
	Field     *FilterField
	Direction Direction
}

// QuerySpec is a fully validated search request.
type QuerySpec struct {
	Conditions []Condition
	Sort       []SortKey
	GroupBy    []*FilterField
	Page       int
	Limit      int
}

// Aggregate reports whether the spec groups rows.
func (q QuerySpec) Aggregate() bool {
	return len(q.GroupBy) > 0
}

// Offset is the number of rows skipped before the requested page. It saturates
// at math.MaxInt instead of wrapping for very large pages.
func (q QuerySpec) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// PastEnd reports whether page lies beyond the last page of total rows.
// It divides instead of multiplying so no page value can overflow.
func PastEnd(page, limit int, total int64) bool {
	if limit < 1 || total <= 0 {
		return true
	}
	lastPage := (total-1)/int64(limit) + 1
	return int64(page-1) >= lastPage
}

// Validate turns raw into a QuerySpec for d. The first violation aborts validation.
func Validate(d *Descriptor, raw RawSpec, limits Limits) (QuerySpec, error) {
	if limits.MaxPageSize <= 0 {
		limits.MaxPageSize = MaxPageSize
	}
	if limits.DefaultPageSize <= 0 || limits.DefaultPageSize > limits.MaxPageSize {
		limits.DefaultPageSize = min(DefaultPageSize, limits.MaxPageSize)
	}

	var spec QuerySpec
	var err error

	if spec.Page, err = parsePage(raw.Page); err != nil {
		return QuerySpec{}, err
	}
	if spec.Limit, err = parseLimit(raw.Limit, limits); err != nil {
		return QuerySpec{}, err
	}

	names := make([]string, 0, len(raw.Filters))
	for name := range raw.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, ok := d.Field(name)
		if !ok {
			return QuerySpec{}, fieldError(name, "not a filterable field")
		}
		cond, err := compileCondition(f, raw.Filters[name])
		if err != nil {
			return QuerySpec{}, err
		}
		spec.Conditions = append(spec.Conditions, cond)
	}

	grouped := make(map[string]bool, len(raw.GroupBy))
	for _, name := range raw.GroupBy {
		f, ok := d.Field(name)
		if !ok || !f.Groupable {
			return QuerySpec{}, fieldError(name, "not a groupable field")
		}
		if grouped[name] {
			return QuerySpec{}, fieldError(name, "grouped more than once")
		}
		grouped[name] = true
		spec.GroupBy = append(spec.GroupBy, f)
	}

	sorted := make(map[string]bool, len(raw.Sort))
	for _, s := range raw.Sort {
		if sorted[s.Field] {
			return QuerySpec{}, fieldError(s.Field, "sorted more than once")
		}
		sorted[s.Field] = true

		dir, err := parseDirection(s.Field, s.Direction)
		if err != nil {
			return QuerySpec{}, err
		}
		if spec.Aggregate() && s.Field == countAlias {
			spec.Sort = append(spec.Sort, SortKey{Direction: dir})
			continue
		}
		f, ok := d.Field(s.Field)
		if !ok || !f.Sortable {
			return QuerySpec{}, fieldError(s.Field, "not a sortable field")
		}
		if spec.Aggregate() && !grouped[s.Field] {
			return QuerySpec{}, fieldError(s.Field, "grouped results can only be sorted by group fields or count")
		}
		spec.Sort = append(spec.Sort, SortKey{Field: f, Direction: dir})
	}

	return spec, nil
}

func parsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, paginationError("page", "must be an integer")
	}
	if page < 1 {
		return 0, paginationError("page", "must be at least 1")
	}
	return page, nil
}

func parseLimit(raw string, limits Limits) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return limits.DefaultPageSize, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, paginationError("limit", "must be an integer")
	}
	if limit < 1 || limit > limits.MaxPageSize {
		return 0, paginationError("limit", fmt.Sprintf("must be between 1 and %d", limits.MaxPageSize))
	}
	return limit, nil
}

func parseDirection(field, raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", valueError(field, fmt.Sprintf("unknown sort direction %q", raw))
	}
}

func compileCondition(f *FilterField, raw any) (Condition, error) {
	switch v := raw.(type) {
	case nil:
		return Condition{}, valueError(f.Name, "value is required")

	case []any:
		if !f.allows(OpSet) {
			return Condition{}, valueError(f.Name, "field does not accept a list of values")
		}
		if len(v) == 0 || len(v) > maxSetSize {
			return Condition{}, valueError(f.Name, fmt.Sprintf("list must hold between 1 and %d values", maxSetSize))
		}
		values := make([]any, len(v))
		for i, item := range v {
			c, err := coerce(f, item)
			if err != nil {
				return Condition{}, err
			}
			values[i] = c
		}
		return Condition{Field: f, Op: OpSet, Values: values}, nil

	case map[string]any:
		if !f.allows(OpRange) {
			return Condition{}, valueError(f.Name, "field does not accept a range")
		}
		cond := Condition{Field: f, Op: OpRange}
		for key, bound := range v {
			if key != "min" && key != "max" {
				return Condition{}, valueError(f.Name, fmt.Sprintf("unknown range bound %q", key))
			}
			c, err := coerce(f, bound)
			if err != nil {
				return Condition{}, err
			}
			if key == "min" {
				cond.Min = c
			} else {
				cond.Max = c
			}
		}
		if cond.Min == nil && cond.Max == nil {
			return Condition{}, valueError(f.Name, "range needs min or max")
		}
		return cond, nil

	default:
		op := OpEquals
		if !f.allows(OpEquals) {
			if !f.allows(OpSubstring) {
				return Condition{}, valueError(f.Name, "field does not accept a single value")
			}
			op = OpSubstring
		}
		c, err := coerce(f, v)
		if err != nil {
			return Condition{}, err
		}
		if op == OpSubstring && c.(string) == "" {
			return Condition{}, valueError(f.Name, "search text must not be empty")
		}
		return Condition{Field: f, Op: op, Values: []any{c}}, nil
	}
}

// coerce converts a decoded JSON value to the Go value bound for f.
func coerce(f *FilterField, v any) (any, error) {
	switch f.Type {
	case TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, valueError(f.Name, "expected text")
		}
		return s, nil

	case TypeInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, valueError(f.Name, "expected an integer")
		}
		return n, nil

	case TypeDecimal:
		d, ok := toDecimal(v)
		if !ok {
			return nil, valueError(f.Name, "expected a number")
		}
		return d, nil

	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		}
		return nil, valueError(f.Name, "expected true or false")

	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, valueError(f.Name, "expected a date")
		}
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, valueError(f.Name, "expected a date in YYYY-MM-DD or RFC 3339 form")

	case TypeEnum:
		label, ok := v.(string)
		if !ok {
			return nil, valueError(f.Name, "expected one of the allowed labels")
		}
		stored, ok := f.Enum[label]
		if !ok {
			return nil, valueError(f.Name, fmt.Sprintf("unknown value %q", label))
		}
		return stored, nil
	}
	return nil, valueError(f.Name, "unsupported field type")
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
