package notes

import "strings"

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 200
	DefaultSort  = "-updatedAt"

	// maxPage keeps (page-1)*limit well inside int64.
	maxPage = 1 << 31
)

// SortField is a sortable note attribute.
type SortField string

const (
	SortTitle     SortField = "title"
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortBody      SortField = "body"
	SortID        SortField = "id"
)

// Sort is an ordering over one field. Ties are broken by id in the same direction.
type Sort struct {
	Field SortField
	Desc  bool
}

func (s Sort) String() string {
	if s.Desc {
		return "-" + string(s.Field)
	}
	return string(s.Field)
}

// ParseSort parses "field" or "-field". "_id" is accepted for id. An empty
// or unrecognized value selects DefaultSort.
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	s := Sort{Desc: strings.HasPrefix(raw, "-")}
	field := SortField(strings.TrimPrefix(raw, "-"))
	switch field {
	case SortTitle, SortCreatedAt, SortUpdatedAt, SortBody, SortID:
		s.Field = field
		return s
	case "_id":
		s.Field = SortID
		return s
	default:
		return defaultSort
	}
}

var defaultSort = Sort{Field: SortUpdatedAt, Desc: true}

// ListParams selects one page of notes.
type ListParams struct {
	Page  int
	Limit int
	Sort  Sort
}

// NewListParams normalizes paging input: page below 1 becomes 1, limit
// below 1 becomes DefaultLimit and limit above MaxLimit is clamped.
func NewListParams(page, limit int, sort string) ListParams {
	switch {
	case page < 1:
		page = DefaultPage
	case page > maxPage:
		page = maxPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return ListParams{Page: page, Limit: limit, Sort: ParseSort(sort)}
}

// Offset returns the number of notes skipped before this page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageCount returns ceil(total/limit), and 1 when there are no notes.
func PageCount(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
