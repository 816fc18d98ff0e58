package repository

// SortOrder selects how assets are ordered by size.
type SortOrder int

const (
	// SortNone leaves rows in the store's natural order.
	SortNone SortOrder = iota
	SortAsc
	SortDesc
)

// Page is a zero-based page request.
type Page struct {
	Index int
	Size  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return p.Index * p.Size
}

func (o SortOrder) clause() string {
	switch o {
	case SortAsc:
		return "size_bytes ASC"
	case SortDesc:
		return "size_bytes DESC"
	default:
		return ""
	}
}
