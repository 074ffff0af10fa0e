// Package pagination derives page counts, the visible page window and stable
// listing links shared by the home, category and tag feeds.
package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	MinPage     = 1
	MaxPageSize = 100
	WindowSize  = 5
)

// TotalPages returns ceil(total / pageSize), or 0 for an empty set.
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// Contract renders navigation for one listing.
type Contract struct {
	CurrentPage int
	TotalPages  int
	SearchTerm  string
	BasePath    string
}

// HasMultiplePages reports whether navigation should be shown at all.
func (c Contract) HasMultiplePages() bool {
	return c.TotalPages > 1
}

// Current returns CurrentPage clamped to [1, TotalPages].
func (c Contract) Current() int {
	cur := c.CurrentPage
	if cur > c.TotalPages {
		cur = c.TotalPages
	}
	if cur < MinPage {
		cur = MinPage
	}
	return cur
}

// Window returns exactly min(WindowSize, TotalPages) consecutive page numbers,
// centered on the current page and shifted at the edges.
func (c Contract) Window() []int {
	total := c.TotalPages
	if total <= 0 {
		return []int{}
	}

	cur := c.Current()
	half := WindowSize / 2

	var start, end int
	switch {
	case total <= WindowSize:
		start, end = 1, total
	case cur <= half+1:
		start, end = 1, WindowSize
	case cur >= total-half:
		start, end = total-WindowSize+1, total
	default:
		start, end = cur-half, cur+half
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Link serializes {search, page} onto BasePath. search is omitted when empty and
// page when it is 1, so the first page link equals the bare listing link.
func (c Contract) Link(page int) string {
	var params []string
	if term := strings.TrimSpace(c.SearchTerm); term != "" {
		params = append(params, "search="+url.QueryEscape(term))
	}
	if page > MinPage {
		params = append(params, "page="+strconv.Itoa(page))
	}
	if len(params) == 0 {
		return c.BasePath
	}
	return c.BasePath + "?" + strings.Join(params, "&")
}

// PageLink is one entry of the rendered window.
type PageLink struct {
	Number  int    `json:"number"`
	URL     string `json:"url"`
	Current bool   `json:"current"`
}

// Links holds the rendered navigation for a listing.
type Links struct {
	First string     `json:"first"`
	Prev  *string    `json:"prev,omitempty"`
	Next  *string    `json:"next,omitempty"`
	Pages []PageLink `json:"pages"`
}

// Links renders first/prev/next and the window. Next only exists when the
// clamped current page is before the last page.
func (c Contract) Links() Links {
	out := Links{First: c.Link(MinPage), Pages: []PageLink{}}
	if c.TotalPages <= 0 {
		return out
	}

	cur := c.Current()
	for _, p := range c.Window() {
		out.Pages = append(out.Pages, PageLink{Number: p, URL: c.Link(p), Current: p == cur && c.CurrentPage <= c.TotalPages})
	}
	switch {
	case c.CurrentPage > c.TotalPages:
		prev := c.Link(c.TotalPages)
		out.Prev = &prev
	case cur > MinPage:
		prev := c.Link(cur - 1)
		out.Prev = &prev
	}
	if c.CurrentPage < c.TotalPages {
		next := c.Link(cur + 1)
		out.Next = &next
	}
	return out
}
