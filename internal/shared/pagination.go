package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// PageParams holds clamped limit/offset listing parameters.
type PageParams struct {
	Limit  int
	Offset int
}

// ParsePageParams reads limit/offset from a query string, applying the
// defaults and bounds shared by every listing endpoint (limit 1..100,
// default 50, offset >= 0).
func ParsePageParams(q url.Values) PageParams {
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return PageParams{Limit: limit, Offset: offset}
}

// HasMore reports whether another page exists after this one.
func (p PageParams) HasMore(total int) bool {
	return p.Offset+p.Limit < total
}
