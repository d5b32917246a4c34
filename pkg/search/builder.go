package search

import (
	"fmt"
	"strings"
)

// Plan is a compiled search: a page query and the count query sharing its filters.
// Both use ? placeholders; the executor rebinds them for the target dialect.
type Plan struct {
	Entity     string
	Query      string
	Args       []any
	CountQuery string
	CountArgs  []any
	Page       int
	Limit      int
	Offset     int
	Aggregate  bool
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Build compiles spec for d under scope. The scope is always the first condition
// of the WHERE clause and is parenthesised on its own.
func Build(d *Descriptor, spec QuerySpec, scope ScopePredicate) (Plan, error) {
	if scope.IsZero() {
		return Plan{}, ErrMissingScope
	}
	if spec.Page < 1 || spec.Limit < 1 {
		return Plan{}, paginationError("", "page and limit must be positive")
	}

	e := d.entity
	var where []string
	var args []any

	if scope.clause != "" {
		where = append(where, "("+scope.clause+")")
		args = append(args, scope.args...)
	}
	if e.Base != "" {
		where = append(where, "("+e.Base+")")
	}
	for _, c := range spec.Conditions {
		clause, cargs := renderCondition(c)
		where = append(where, clause)
		args = append(args, cargs...)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	plan := Plan{
		Entity:    e.Name,
		Page:      spec.Page,
		Limit:     spec.Limit,
		Offset:    spec.Offset(),
		Aggregate: spec.Aggregate(),
		CountArgs: append([]any(nil), args...),
	}

	var b strings.Builder
	if plan.Aggregate {
		groupCols := make([]string, len(spec.GroupBy))
		selects := make([]string, 0, len(spec.GroupBy)+1)
		for i, f := range spec.GroupBy {
			groupCols[i] = f.Column
			selects = append(selects, fmt.Sprintf("%s AS %s", f.Column, f.Name))
		}
		selects = append(selects, "COUNT(*) AS "+countAlias)
		groupSQL := " GROUP BY " + strings.Join(groupCols, ", ")

		fmt.Fprintf(&b, "SELECT %s FROM %s%s%s", strings.Join(selects, ", "), e.From, whereSQL, groupSQL)
		plan.CountQuery = fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 AS one FROM %s%s%s) AS grouped", e.From, whereSQL, groupSQL)
	} else {
		selects := make([]string, len(e.Columns))
		for i, c := range e.Columns {
			selects[i] = fmt.Sprintf("%s AS %s", c.Expr, c.Alias)
		}
		fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(selects, ", "), e.From, whereSQL)
		plan.CountQuery = fmt.Sprintf("SELECT COUNT(*) FROM %s%s", e.From, whereSQL)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(orderBy(d, spec), ", "))
	b.WriteString(" LIMIT ? OFFSET ?")

	plan.Query = b.String()
	plan.Args = append(args, plan.Limit, plan.Offset)
	return plan, nil
}

// orderBy resolves the ordering so that it is total: every row of the result has
// a distinct position, which keeps offset pagination free of gaps and repeats.
func orderBy(d *Descriptor, spec QuerySpec) []string {
	keys := spec.Sort
	if len(keys) == 0 && !spec.Aggregate() {
		for _, s := range d.entity.DefaultSort {
			f := d.fields[s.Field]
			dir, _ := parseDirection(s.Field, s.Direction)
			keys = append(keys, SortKey{Field: f, Direction: dir})
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(expr string, dir Direction) {
		if seen[expr] {
			return
		}
		seen[expr] = true
		out = append(out, expr+" "+strings.ToUpper(string(dir)))
	}

	for _, k := range keys {
		if k.Field == nil {
			add(countAlias, k.Direction)
			continue
		}
		add(k.Field.sortExpr(), k.Direction)
	}

	if spec.Aggregate() {
		for _, f := range spec.GroupBy {
			add(f.Column, Asc)
		}
		return out
	}
	add(d.entity.Key, Asc)
	return out
}

func renderCondition(c Condition) (string, []any) {
	col := c.Field.Column
	text := c.Field.Type == TypeText

	switch c.Op {
	case OpEquals:
		if text {
			return fmt.Sprintf("LOWER(%s) = LOWER(?)", col), c.Values
		}
		return col + " = ?", c.Values

	case OpSet:
		marks := make([]string, len(c.Values))
		for i := range marks {
			marks[i] = "?"
			if text {
				marks[i] = "LOWER(?)"
			}
		}
		if text {
			col = "LOWER(" + col + ")"
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")), c.Values

	case OpSubstring:
		pattern := likeEscaper.Replace(c.Values[0].(string)) + "%"
		if c.Field.Match == MatchContains {
			pattern = "%" + pattern
		}
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", col), []any{pattern}

	case OpRange:
		if text {
			col = "LOWER(" + col + ")"
		}
		var parts []string
		var args []any
		if c.Min != nil {
			parts = append(parts, col+" >= "+bindMark(text))
			args = append(args, c.Min)
		}
		if c.Max != nil {
			parts = append(parts, col+" <= "+bindMark(text))
			args = append(args, c.Max)
		}
		return "(" + strings.Join(parts, " AND ") + ")", args
	}
	return "1 = 0", nil
}

func bindMark(lower bool) string {
	if lower {
		return "LOWER(?)"
	}
	return "?"
}
