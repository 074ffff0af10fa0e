// Package queries turns loosely typed listing input into closed, validated
// query descriptions consumed by the repositories.
package queries

import (
	"fmt"
	"math"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"

	"github.com/google/uuid"
)

// StatusFilter restricts posts by lifecycle status. StatusAll disables the filter.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusDraft     StatusFilter = StatusFilter(models.PostStatusDraft)
	StatusPublished StatusFilter = StatusFilter(models.PostStatusPublished)
)

// OrderColumn is a sortable posts column.
type OrderColumn string

const (
	OrderCreatedAt   OrderColumn = "created_at"
	OrderUpdatedAt   OrderColumn = "updated_at"
	OrderPublishedAt OrderColumn = "published_at"
	OrderTitle       OrderColumn = "title"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PostListParams is the raw filter input from a handler. Strings are kept as
// received; Normalize validates them.
type PostListParams struct {
	Page           int
	PageSize       int
	Status         string
	AuthorID       *uuid.UUID
	CategoryID     *uuid.UUID
	TagID          *uuid.UUID
	SearchTerm     string
	OrderBy        string
	OrderDirection string
	IsTop          *bool
}

// Defaults are the per-feed fallbacks applied when a parameter is absent.
type Defaults struct {
	PageSize       int
	Status         StatusFilter
	OrderBy        OrderColumn
	OrderDirection Direction
}

// AdminDefaults is used by the admin post listing.
var AdminDefaults = Defaults{PageSize: 10, Status: StatusAll, OrderBy: OrderCreatedAt, OrderDirection: Desc}

// FeedDefaults is used by public feeds; pageSize is the caller's choice.
func FeedDefaults(pageSize int) Defaults {
	return Defaults{PageSize: pageSize, Status: StatusPublished, OrderBy: OrderPublishedAt, OrderDirection: Desc}
}

// PostQuery is a fully validated post listing query.
type PostQuery struct {
	Page       int
	PageSize   int
	Status     StatusFilter
	AuthorID   *uuid.UUID
	CategoryID *uuid.UUID
	TagID      *uuid.UUID
	Search     string
	OrderBy    OrderColumn
	Direction  Direction
	IsTop      *bool
}

// Offset is (page-1)*pageSize.
func (q PostQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Fingerprint identifies the query for cache keys.
func (q PostQuery) Fingerprint() string {
	id := func(v *uuid.UUID) string {
		if v == nil {
			return "-"
		}
		return v.String()
	}
	top := "-"
	if q.IsTop != nil {
		top = fmt.Sprintf("%t", *q.IsTop)
	}
	return strings.Join([]string{
		fmt.Sprint(q.Page), fmt.Sprint(q.PageSize), string(q.Status),
		id(q.AuthorID), id(q.CategoryID), id(q.TagID),
		strings.ToLower(q.Search), string(q.OrderBy), string(q.Direction), top,
	}, "|")
}

// Normalize applies defaults and rejects values that would otherwise reach SQL
// identifiers. Non-positive page and pageSize are treated as absent, and page is
// capped so Offset cannot overflow.
func Normalize(p PostListParams, d Defaults) (PostQuery, error) {
	if d.PageSize <= 0 {
		d.PageSize = 10
	}
	if d.Status == "" {
		d.Status = StatusAll
	}
	if d.OrderBy == "" {
		d.OrderBy = OrderCreatedAt
	}
	if d.OrderDirection == "" {
		d.OrderDirection = Desc
	}

	q := PostQuery{
		Page:       p.Page,
		PageSize:   p.PageSize,
		AuthorID:   nonNil(p.AuthorID),
		CategoryID: nonNil(p.CategoryID),
		TagID:      nonNil(p.TagID),
		Search:     strings.TrimSpace(p.SearchTerm),
		IsTop:      p.IsTop,
	}

	if q.Page < pagination.MinPage {
		q.Page = pagination.MinPage
	}
	if q.PageSize <= 0 {
		q.PageSize = d.PageSize
	}
	if q.PageSize > pagination.MaxPageSize {
		q.PageSize = pagination.MaxPageSize
	}
	if maxPage := math.MaxInt / q.PageSize; q.Page > maxPage {
		q.Page = maxPage
	}

	status, err := parseStatus(p.Status, d.Status)
	if err != nil {
		return PostQuery{}, err
	}
	q.Status = status

	orderBy, err := parseOrderColumn(p.OrderBy, d.OrderBy)
	if err != nil {
		return PostQuery{}, err
	}
	q.OrderBy = orderBy

	dir, err := ParseDirection(p.OrderDirection, d.OrderDirection)
	if err != nil {
		return PostQuery{}, err
	}
	q.Direction = dir

	return q, nil
}

func parseStatus(raw string, fallback StatusFilter) (StatusFilter, error) {
	switch s := StatusFilter(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return fallback, nil
	case StatusAll, StatusDraft, StatusPublished:
		return s, nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown status %q", raw))
	}
}

func parseOrderColumn(raw string, fallback OrderColumn) (OrderColumn, error) {
	switch c := OrderColumn(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return fallback, nil
	case OrderCreatedAt, OrderUpdatedAt, OrderPublishedAt, OrderTitle:
		return c, nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown orderBy %q", raw))
	}
}

// ParseDirection validates an order direction, returning fallback when raw is empty.
func ParseDirection(raw string, fallback Direction) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return fallback, nil
	case Asc, Desc:
		return d, nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown orderDirection %q", raw))
	}
}

func nonNil(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// LikePattern wraps term for a case-insensitive substring LIKE, escaping wildcards.
// Callers pair it with ESCAPE '\'.
func LikePattern(term string) string {
	return "%" + EscapeLike(strings.ToLower(term)) + "%"
}

// EscapeLike escapes LIKE wildcards so term matches literally with ESCAPE '\'.
func EscapeLike(term string) string {
	return likeEscaper.Replace(term)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
