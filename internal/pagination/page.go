package pagination

// Page holds the data for a single page along with all pagination metadata.
//
// NextPage and PreviousPage are pointers so they are omitted from JSON when
// there isn't a next or previous page.
type Page[T any] struct {
	Data         []T    `json:"data"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	Total        int64  `json:"total"`
	TotalPages   int    `json:"total_pages"`
	NextPage     *int   `json:"next_page,omitempty"`
	PreviousPage *int   `json:"previous_page,omitempty"`
	Search       string `json:"search"`
	Window       []int  `json:"window"`
	Links        Links  `json:"links"`
}

// Meta is what the caller knows about the query that produced a page.
type Meta struct {
	Page     int
	PageSize int
	Total    int64
	Search   string
	BasePath string
}

// MakePage wraps data with derived pagination fields. A page past the end is
// kept as requested (with no data) and its previous page points at the last page.
func MakePage[T any](data []T, m Meta) *Page[T] {
	if data == nil {
		data = []T{}
	}
	if m.Page < MinPage {
		m.Page = MinPage
	}

	totalPages := TotalPages(m.Total, m.PageSize)
	contract := Contract{
		CurrentPage: m.Page,
		TotalPages:  totalPages,
		SearchTerm:  m.Search,
		BasePath:    m.BasePath,
	}

	p := &Page[T]{
		Data:       data,
		Page:       m.Page,
		PageSize:   m.PageSize,
		Total:      m.Total,
		TotalPages: totalPages,
		Search:     m.Search,
		Window:     contract.Window(),
		Links:      contract.Links(),
	}

	if m.Page < totalPages {
		next := m.Page + 1
		p.NextPage = &next
	}
	if m.Page > MinPage && totalPages > 0 {
		prev := min(m.Page-1, totalPages)
		p.PreviousPage = &prev
	}
	return p
}

// MapPage transforms the items of a page while preserving its metadata.
func MapPage[S any, D any](source *Page[S], mapper func(S) D) *Page[D] {
	mapped := make([]D, len(source.Data))
	for i, item := range source.Data {
		mapped[i] = mapper(item)
	}

	return &Page[D]{
		Data:         mapped,
		Page:         source.Page,
		PageSize:     source.PageSize,
		Total:        source.Total,
		TotalPages:   source.TotalPages,
		NextPage:     source.NextPage,
		PreviousPage: source.PreviousPage,
		Search:       source.Search,
		Window:       source.Window,
		Links:        source.Links,
	}
}
