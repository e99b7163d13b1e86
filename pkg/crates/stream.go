package crates

import (
	"context"
	"iter"

	"github.com/pkgwatch/crates-io-client/pkg/types"
)

// StreamOption adjusts the behavior of a CrateStream.
type StreamOption func(*CrateStream)

// WithPageHeuristic makes the stream decide whether more pages exist from
// the size of the last page instead of the meta.total count: a full page
// means "probably more". Use this against registries whose listing endpoint
// reports no total. The heuristic costs one extra request when the result
// count is an exact multiple of the page size.
func WithPageHeuristic() StreamOption {
	return func(s *CrateStream) {
		s.useTotal = false
	}
}

// CrateStream iterates the crates matching a query across page boundaries,
// fetching lazily: a page is requested only when the buffered one is
// exhausted and the consumer asks for more. Abandoning the stream costs
// nothing beyond the pages already fetched.
//
// The usage pattern follows bufio.Scanner:
//
//	stream := client.CratesStream(types.CratesQuery{Search: "api"})
//	for stream.Next(ctx) {
//		crate := stream.Crate()
//		...
//	}
//	if err := stream.Err(); err != nil {
//		...
//	}
//
// A CrateStream is not safe for concurrent use.
type CrateStream struct {
	client   *Client
	query    types.CratesQuery
	useTotal bool

	items []types.Crate
	pos   int
	cur   types.Crate

	seen    uint64
	total   uint64
	fetched bool
	hasMore bool

	done bool
	err  error
}

// CratesStream returns a stream over all crates matching the query. The
// query's Page field marks where iteration starts; PerPage defaults to 30.
func (c *Client) CratesStream(query types.CratesQuery, opts ...StreamOption) *CrateStream {
	if query.PerPage < 1 {
		query.PerPage = types.DefaultPerPage
	}
	if query.Page < 1 {
		query.Page = 1
	}

	s := &CrateStream{
		client:   c,
		query:    query,
		useTotal: true,
		// Starting mid-listing skips (Page-1) full pages; count them as
		// seen so the total comparison still recognizes the last page.
		seen: uint64(query.Page-1) * uint64(query.PerPage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances the stream to the next crate, fetching the next page when
// the buffered one is exhausted. It returns false when the stream is
// exhausted or a fetch failed; Err distinguishes the two. After returning
// false, Next keeps returning false.
func (s *CrateStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}

	for s.pos >= len(s.items) {
		if s.fetched && !s.hasMore {
			s.done = true
			return false
		}
		if !s.fetch(ctx) {
			return false
		}
	}

	s.cur = s.items[s.pos]
	s.pos++
	return true
}

// fetch requests the next page and refills the buffer. It reports whether
// iteration can continue.
func (s *CrateStream) fetch(ctx context.Context) bool {
	page, err := s.client.Crates(ctx, s.query)
	if err != nil {
		s.err = err
		s.done = true
		return false
	}

	s.items = page.Crates
	s.pos = 0
	s.seen += uint64(len(page.Crates))
	s.total = page.Meta.Total
	s.fetched = true
	s.query.Page++

	if s.useTotal {
		s.hasMore = s.seen < s.total
	} else {
		s.hasMore = len(page.Crates) >= s.query.PerPage
	}

	if len(page.Crates) == 0 {
		s.done = true
		return false
	}
	return true
}

// Crate returns the crate the stream currently points at. It is only valid
// after a Next call that returned true.
func (s *CrateStream) Crate() types.Crate {
	return s.cur
}

// Err returns the first error encountered by the stream. A stream that ran
// to exhaustion returns nil.
func (s *CrateStream) Err() error {
	return s.err
}

// Total returns the result count reported by the registry. It is zero until
// the first page has been fetched.
func (s *CrateStream) Total() uint64 {
	return s.total
}

// All adapts the stream to a range-over-func iterator. A fetch error is
// yielded once, paired with a zero crate, and ends the sequence:
//
//	for crate, err := range client.CratesStream(query).All(ctx) {
//		if err != nil {
//			return err
//		}
//		...
//	}
func (s *CrateStream) All(ctx context.Context) iter.Seq2[types.Crate, error] {
	return func(yield func(types.Crate, error) bool) {
		for s.Next(ctx) {
			if !yield(s.Crate(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(types.Crate{}, err)
		}
	}
}
