package domain

import (
	"fmt"
	"strings"
	"time"
)

const DefaultPostLimit = 10

type SortKey string

const (
	SortByPublishedAt SortKey = "published_at"
	SortByCreatedAt   SortKey = "created_at"
	SortByTitle       SortKey = "title"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PostQueryOptions is the caller-facing set of browse options. Zero values mean defaults.
type PostQueryOptions struct {
	Limit           int
	Offset          int
	SortBy          SortKey
	SortOrder       SortOrder
	FeedName        string
	TitleSearch     string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
}

// PostFilter is one conjunctive predicate of a PostQuery.
type PostFilter interface {
	postFilter()
}

// FeedNameContains matches posts whose feed name contains the value, ignoring case.
type FeedNameContains string

// TitleContains matches posts whose title contains the value, ignoring case.
type TitleContains string

// PublishedOnOrAfter matches posts published at or after the instant.
type PublishedOnOrAfter time.Time

// PublishedOnOrBefore matches posts published at or before the instant.
type PublishedOnOrBefore time.Time

func (FeedNameContains) postFilter()    {}
func (TitleContains) postFilter()       {}
func (PublishedOnOrAfter) postFilter()  {}
func (PublishedOnOrBefore) postFilter() {}

type PostSort struct {
	Key   SortKey
	Order SortOrder
}

// Tiebreak reports whether created_at DESC is appended after the primary key.
func (s PostSort) Tiebreak() bool {
	return s.Key != SortByCreatedAt
}

type Window struct {
	Limit  int
	Offset int
}

// PostQuery is a fully resolved post query.
type PostQuery struct {
	FeedIDs []string
	Filters []PostFilter
	Sort    PostSort
	Window  Window
}

type PostPage struct {
	Posts      []PostView
	TotalCount int
	HasMore    bool
}

// Compile validates the options, applies defaults and compiles them into a PostQuery.
func (o PostQueryOptions) Compile(feedIDs []string) (PostQuery, error) {
	q := PostQuery{
		FeedIDs: feedIDs,
		Sort:    PostSort{Key: SortByPublishedAt, Order: SortDesc},
		Window:  Window{Limit: DefaultPostLimit},
	}

	if o.Limit < 0 {
		return PostQuery{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidQuery)
	}
	if o.Offset < 0 {
		return PostQuery{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}
	if o.Limit > 0 {
		q.Window.Limit = o.Limit
	}
	q.Window.Offset = o.Offset

	switch o.SortBy {
	case "":
	case SortByPublishedAt, SortByCreatedAt, SortByTitle:
		q.Sort.Key = o.SortBy
	default:
		return PostQuery{}, fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, o.SortBy)
	}
	switch o.SortOrder {
	case "":
	case SortAsc, SortDesc:
		q.Sort.Order = o.SortOrder
	default:
		return PostQuery{}, fmt.Errorf("%w: unknown sort order %q", ErrInvalidQuery, o.SortOrder)
	}

	if s := strings.TrimSpace(o.FeedName); s != "" {
		q.Filters = append(q.Filters, FeedNameContains(s))
	}
	if s := strings.TrimSpace(o.TitleSearch); s != "" {
		q.Filters = append(q.Filters, TitleContains(s))
	}
	if o.PublishedAfter != nil {
		q.Filters = append(q.Filters, PublishedOnOrAfter(*o.PublishedAfter))
	}
	if o.PublishedBefore != nil {
		q.Filters = append(q.Filters, PublishedOnOrBefore(*o.PublishedBefore))
	}
	return q, nil
}

// HasMore applies the pagination rule offset+limit < total.
func (w Window) HasMore(total int) bool {
	return w.Offset+w.Limit < total
}
