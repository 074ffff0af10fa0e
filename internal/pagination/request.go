package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

// Request is the raw listing input accepted on every listing route.
type Request struct {
	Page     int
	PageSize int
	Search   string
}

// FromQuery reads page, pageSize and search through a query getter such as
// fiber's Ctx.Query. Unparsable or non-positive numbers are left as zero so
// the normalizer applies its defaults.
func FromQuery(get func(key string, defaultValue ...string) string) Request {
	return Request{
		Page:     positiveInt(get("page")),
		PageSize: positiveInt(get("pageSize")),
		Search:   strings.TrimSpace(get("search")),
	}
}

// FromValues is FromQuery over parsed url.Values.
func FromValues(v url.Values) Request {
	return FromQuery(func(key string, _ ...string) string { return v.Get(key) })
}

// NormalizedPage returns the page number a listing will serve for this request.
func (r Request) NormalizedPage() int {
	if r.Page < MinPage {
		return MinPage
	}
	return r.Page
}

func positiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
