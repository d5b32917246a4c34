package search

import "strconv"

const tutorsFrom = "tutors t JOIN users u ON u.id = t.user_id JOIN branches b ON b.id = t.branch_id"

func tutorEntity() Entity {
	return Entity{
		Name: "tutors",
		From: tutorsFrom,
		Columns: []Column{
			{Expr: "t.id", Alias: "id"},
			{Expr: "u.name", Alias: "name"},
			{Expr: "b.name", Alias: "branch"},
			{Expr: "t.hourly_rate", Alias: "hourly_rate"},
		},
		Fields: []FilterField{
			{Name: "id", Column: "t.id", Type: TypeInteger, Operators: []Operator{OpEquals, OpSet, OpRange}, Sortable: true},
			{Name: "name", Column: "u.name", Type: TypeText, Operators: []Operator{OpSubstring}, Match: MatchPrefix, Sortable: true},
			{Name: "city", Column: "u.city", Type: TypeText, Operators: []Operator{OpSubstring}, Match: MatchContains},
			{Name: "branch", Column: "b.name", Type: TypeText, Operators: []Operator{OpEquals, OpSet}, Sortable: true, Groupable: true},
			{Name: "hourly_rate", Column: "t.hourly_rate", Type: TypeDecimal, Operators: []Operator{OpEquals, OpRange}, Sortable: true},
			{Name: "validated", Column: "t.validated", Type: TypeBoolean, Operators: []Operator{OpEquals}, Groupable: true},
			{Name: "created_at", Column: "u.created_at", Type: TypeDate, Operators: []Operator{OpRange}, Sortable: true},
			{Name: "status", Column: "t.locked", Type: TypeEnum, Operators: []Operator{OpEquals, OpSet}, Enum: map[string]any{"open": false, "locked": true}},
		},
		Key:         "t.id",
		DefaultSort: []SortDirective{{Field: "id", Direction: "asc"}},
	}
}

func mustDescriptor(e Entity) *Descriptor {
	d, err := NewDescriptor(e)
	if err != nil {
		panic(err)
	}
	return d
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
