package search

// ResultPage is the wire shape shared by every paginated response.
type ResultPage struct {
	Rows  []Row `json:"rows"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Format builds a ResultPage. Rows is never nil so it encodes as [].
func Format(rows []Row, total int64, page, limit int) ResultPage {
	if rows == nil {
		rows = []Row{}
	}
	return ResultPage{Rows: rows, Total: total, Page: page, Limit: limit}
}
