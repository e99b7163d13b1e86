package types

import (
	"net/url"
	"strconv"
)

// Sort selects the ordering of crate listings.
type Sort string

const (
	// SortRelevance sorts by relevance (meaningless without a search term).
	SortRelevance Sort = ""

	// SortAlphabetical sorts alphabetically.
	SortAlphabetical Sort = "alpha"

	// SortDownloads sorts by all-time downloads.
	SortDownloads Sort = "downloads"

	// SortRecentDownloads sorts by recent downloads.
	SortRecentDownloads Sort = "recent-downloads"

	// SortRecentUpdates sorts by recent updates.
	SortRecentUpdates Sort = "recent-updates"

	// SortNewlyAdded sorts by publication date, newest first.
	SortNewlyAdded Sort = "new"
)

// DefaultPerPage is the listing page size used when none is configured.
const DefaultPerPage = 30

// CratesQuery constrains a crate listing: pagination, sorting, and filters.
// The zero value lists everything by relevance with the default page size.
type CratesQuery struct {
	Sort    Sort
	PerPage int
	Page    int

	// UserID filters to crates owned by the user; zero means no filter.
	UserID uint64

	// Category filters by category slug (lower-case, dash-separated, not
	// the pretty titles shown on the site).
	Category string

	// Search is the free-text search term.
	Search string
}

// Values encodes the query for the crate listing endpoint. Page and PerPage
// are clamped to their minimums; values are percent-encoded by the caller's
// URL encoder.
func (q CratesQuery) Values() url.Values {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("sort", string(q.Sort))
	if q.UserID != 0 {
		v.Set("user_id", strconv.FormatUint(q.UserID, 10))
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}
