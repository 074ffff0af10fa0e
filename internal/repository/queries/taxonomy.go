package queries

import (
	"strings"

	"inkwell/internal/pagination"
)

// TaxonomyQuery lists categories or tags by name.
type TaxonomyQuery struct {
	Page      int
	PageSize  int
	Search    string
	Direction Direction
}

// TaxonomyPageSize is the default page size of category and tag listings.
const TaxonomyPageSize = 50

// Offset is (page-1)*pageSize.
func (q TaxonomyQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// NormalizeTaxonomy defaults to name ascending, TaxonomyPageSize rows per page.
func NormalizeTaxonomy(req pagination.Request, direction string) (TaxonomyQuery, error) {
	dir, err := ParseDirection(direction, Asc)
	if err != nil {
		return TaxonomyQuery{}, err
	}
	q := TaxonomyQuery{
		Page:      req.NormalizedPage(),
		PageSize:  req.PageSize,
		Search:    strings.TrimSpace(req.Search),
		Direction: dir,
	}
	if q.PageSize <= 0 {
		q.PageSize = TaxonomyPageSize
	}
	if q.PageSize > pagination.MaxPageSize {
		q.PageSize = pagination.MaxPageSize
	}
	return q, nil
}
