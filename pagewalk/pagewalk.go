// Package pagewalk is the cursor-following pagination aggregator shared by
// every listing and search tool. Given a page-fetch function over a paginated
// upstream, it assembles a bounded result set by walking next-cursor links
// until a termination condition is met.
package pagewalk

import "context"

// DefaultMaxPages is the hard ceiling on upstream page fetches per
// aggregation. It bounds worst-case upstream calls regardless of the result
// budget; a safety valve, not a tuning knob.
const DefaultMaxPages = 20

// DefaultLimit is the page size used when the caller does not set one.
const DefaultLimit = 25

// Request identifies one page to fetch. Cursor takes precedence over Start;
// Start is only meaningful on the first page of a walk.
type Request struct {
	Cursor string
	Start  int
	Limit  int
}

// Page is one upstream page: its items plus the raw link metadata the
// aggregator extracts continuation cursors from.
type Page[T any] struct {
	Items     []T
	NextLink  string
	PrevLink  string
	TotalSize int
}

// FetchFunc retrieves one page from the upstream collaborator. A non-nil
// error aborts the walk immediately.
type FetchFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

// Options control one aggregation.
type Options struct {
	// Limit is the upstream page size. Defaults to DefaultLimit.
	Limit int
	// Start is an offset applied to the first page only; it is ignored once
	// a cursor is in play.
	Start int
	// Cursor resumes a previous walk from an opaque continuation token.
	Cursor string
	// Budget caps the number of accumulated items. 0 means unbounded (the
	// page ceiling still applies).
	Budget int
	// AutoContinue enables following next cursors at all. When false the
	// walk stops after the first page.
	AutoContinue bool
	// MaxPages overrides the page-fetch ceiling. Defaults to DefaultMaxPages.
	MaxPages int
}

// ResultSet is the product of one aggregation. It is produced fresh per call
// and never persisted. When Aggregate returns a non-nil error the set holds
// the items collected before the failure; callers must not present those as a
// complete result.
type ResultSet[T any] struct {
	Items        []T
	NextCursor   string
	PrevCursor   string
	PagesFetched int
	Start        int
	Limit        int
	Size         int
	TotalSize    int
}

// Aggregate walks the paginated upstream, appending each page's items until
// one of the termination conditions holds: the upstream returns no next
// cursor, AutoContinue is off, the budget is reached, or the page ceiling is
// hit. The accumulator is truncated to the budget after the loop. On a fetch
// failure the walk aborts and the partial set is returned alongside the
// error so the caller can distinguish "zero results" from "failed after N".
func Aggregate[T any](ctx context.Context, fetch FetchFunc[T], opts Options) (*ResultSet[T], error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	rs := &ResultSet[T]{Start: opts.Start, Limit: limit}
	cursor := opts.Cursor
	start := opts.Start

	for {
		if opts.Budget > 0 && len(rs.Items) >= opts.Budget {
			break
		}
		if rs.PagesFetched >= maxPages {
			break
		}

		page, err := fetch(ctx, Request{Cursor: cursor, Start: start, Limit: limit})
		if err != nil {
			rs.Size = len(rs.Items)
			return rs, err
		}
		rs.PagesFetched++
		rs.Items = append(rs.Items, page.Items...)
		if page.TotalSize > 0 {
			rs.TotalSize = page.TotalSize
		}
		if rs.PagesFetched == 1 {
			rs.PrevCursor = ExtractCursor(page.PrevLink)
		}

		next := ExtractCursor(page.NextLink)
		rs.NextCursor = next
		if next == "" {
			break
		}
		if !opts.AutoContinue {
			break
		}

		// Offsets only apply to the first page; cursors own the walk now.
		cursor = next
		start = 0
	}

	if opts.Budget > 0 && len(rs.Items) > opts.Budget {
		rs.Items = rs.Items[:opts.Budget]
	}
	rs.Size = len(rs.Items)
	return rs, nil
}
