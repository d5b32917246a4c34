package search

import "strings"

// ScopePredicate is a visibility restriction imposed by the caller's role.
// It can only be built with the constructors in this package, from SQL written
// in Go code; request data reaches it only as bind arguments. The zero value is
// not a valid scope: a caller that forgets to pick one gets ErrMissingScope.
type ScopePredicate struct {
	clause string
	args   []any
	valid  bool
}

// Unrestricted returns a scope that admits every row.
func Unrestricted() ScopePredicate {
	return ScopePredicate{valid: true}
}

// ColumnEquals restricts rows to column = value.
func ColumnEquals(column string, value any) ScopePredicate {
	return ScopePredicate{clause: column + " = ?", args: []any{value}, valid: true}
}

// ColumnIn restricts rows to column IN (subquery). Placeholders in subquery bind args in order.
func ColumnIn(column, subquery string, args ...any) ScopePredicate {
	return ScopePredicate{clause: column + " IN (" + subquery + ")", args: args, valid: true}
}

// Where restricts rows to an arbitrary trusted condition.
func Where(clause string, args ...any) ScopePredicate {
	return ScopePredicate{clause: clause, args: args, valid: true}
}

// And combines scopes. The result is invalid if any part is.
func And(scopes ...ScopePredicate) ScopePredicate {
	out := ScopePredicate{valid: true}
	var parts []string
	for _, s := range scopes {
		if !s.valid {
			return ScopePredicate{}
		}
		if s.clause == "" {
			continue
		}
		parts = append(parts, "("+s.clause+")")
		out.args = append(out.args, s.args...)
	}
	out.clause = strings.Join(parts, " AND ")
	return out
}

// IsZero reports whether p was never constructed.
func (p ScopePredicate) IsZero() bool {
	return !p.valid
}

// Unrestricted reports whether p admits every row.
func (p ScopePredicate) Unrestricted() bool {
	return p.valid && p.clause == ""
}

// String renders the clause for logs; arguments are not included.
func (p ScopePredicate) String() string {
	switch {
	case !p.valid:
		return "<missing>"
	case p.clause == "":
		return "<unrestricted>"
	default:
		return p.clause
	}
}
