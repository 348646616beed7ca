package query

import "net/http"

// Sort is a validated ordering: a column from the resource's whitelist
// plus a direction. The id tie-break keeps the order total, so page
// boundaries are stable within a snapshot even when the sort key repeats.
type Sort struct {
	Column     string
	TieBreak   string
	Descending bool
}

// ParseSort resolves sortBy/sortType against a whitelist mapping API field
// names to columns. Unknown or absent sortBy falls back to defaultColumn;
// any sortType other than "asc" sorts descending.
func ParseSort(r *http.Request, fields map[string]string, defaultColumn, tieBreak string) Sort {
	column, ok := fields[r.URL.Query().Get("sortBy")]
	if !ok {
		column = defaultColumn
	}
	return Sort{
		Column:     column,
		TieBreak:   tieBreak,
		Descending: r.URL.Query().Get("sortType") != "asc",
	}
}

func (s Sort) Clause() string {
	dir := " DESC"
	if !s.Descending {
		dir = " ASC"
	}
	clause := "ORDER BY " + s.Column + dir
	if s.TieBreak != "" && s.TieBreak != s.Column {
		clause += ", " + s.TieBreak + dir
	}
	return clause
}
