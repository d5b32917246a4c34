package search

import (
	"fmt"
	"regexp"
)

// FieldType is the declared value type of a filterable field.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeEnum    FieldType = "enum"
)

// Operator is a comparison a field may be filtered with.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpRange     Operator = "range"
	OpSubstring Operator = "substring"
	OpSet       Operator = "set"
)

// MatchMode selects how a substring filter is anchored.
type MatchMode int

const (
	// MatchContains matches the value anywhere in the column.
	MatchContains MatchMode = iota
	// MatchPrefix matches the value at the start of the column.
	MatchPrefix
)

// FilterField is one allow-listed field of an entity.
type FilterField struct {
	// Name is the field name used in request documents and as the output alias in aggregate mode.
	Name string
	// Column is the SQL expression the field compiles to. It is trusted text.
	Column string
	// SortColumn replaces Column in ORDER BY when set, for example to place
	// NULLs at the same end on every dialect.
	SortColumn string
	Type       FieldType
	Operators  []Operator
	Match      MatchMode
	// Enum maps wire labels to stored values for TypeEnum fields.
	Enum      map[string]any
	Sortable  bool
	Groupable bool
}

func (f *FilterField) sortExpr() string {
	if f.SortColumn != "" {
		return f.SortColumn
	}
	return f.Column
}

func (f *FilterField) allows(op Operator) bool {
	for _, o := range f.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Column is one entry of an entity's select list.
type Column struct {
	Expr  string
	Alias string
}

// Entity describes a searchable relation. All strings are SQL written by the
// application, never by callers.
type Entity struct {
	Name    string
	From    string
	Columns []Column
	Fields  []FilterField
	// Key is a unique column expression appended to every ordering as tie-breaker.
	Key string
	// Base is an optional condition every query of the entity must satisfy.
	Base        string
	DefaultSort []SortDirective
}

// Descriptor is a checked Entity with its fields indexed by name.
type Descriptor struct {
	entity Entity
	fields map[string]*FilterField
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// NewDescriptor checks e and indexes its fields.
func NewDescriptor(e Entity) (*Descriptor, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("entity name is required")
	}
	if e.From == "" || e.Key == "" {
		return nil, fmt.Errorf("entity %s: from clause and key are required", e.Name)
	}
	if len(e.Columns) == 0 {
		return nil, fmt.Errorf("entity %s: at least one column is required", e.Name)
	}
	for _, c := range e.Columns {
		if c.Expr == "" || !identifier.MatchString(c.Alias) {
			return nil, fmt.Errorf("entity %s: invalid column %q AS %q", e.Name, c.Expr, c.Alias)
		}
	}

	d := &Descriptor{entity: e, fields: make(map[string]*FilterField, len(e.Fields))}
	for i := range e.Fields {
		f := &d.entity.Fields[i]
		if !identifier.MatchString(f.Name) || f.Name == countAlias {
			return nil, fmt.Errorf("entity %s: invalid field name %q", e.Name, f.Name)
		}
		if f.Column == "" {
			return nil, fmt.Errorf("entity %s: field %s has no column", e.Name, f.Name)
		}
		if _, dup := d.fields[f.Name]; dup {
			return nil, fmt.Errorf("entity %s: duplicate field %s", e.Name, f.Name)
		}
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return nil, fmt.Errorf("entity %s: enum field %s has no values", e.Name, f.Name)
		}
		if f.allows(OpSubstring) && f.Type != TypeText {
			return nil, fmt.Errorf("entity %s: substring operator on non-text field %s", e.Name, f.Name)
		}
		d.fields[f.Name] = f
	}
	for _, s := range e.DefaultSort {
		f, ok := d.fields[s.Field]
		if !ok || !f.Sortable {
			return nil, fmt.Errorf("entity %s: default sort field %s is not sortable", e.Name, s.Field)
		}
		if _, err := parseDirection(s.Field, s.Direction); err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
	}
	return d, nil
}

// Name returns the entity name.
func (d *Descriptor) Name() string {
	return d.entity.Name
}

// Field looks up an allow-listed field. Names are case-sensitive.
func (d *Descriptor) Field(name string) (*FilterField, bool) {
	f, ok := d.fields[name]
	return f, ok
}
