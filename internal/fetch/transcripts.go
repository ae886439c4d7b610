package fetch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/voiceflow"
)

// ErrPaginationExceeded is returned when the listing still has pages after
// the page cap was reached.
var ErrPaginationExceeded = errors.New("fetch: pagination exceeded page cap")

const (
	DefaultPageSize = 25
	DefaultMaxPages = 1000
)

// TranscriptQuery selects the transcripts to drain.
type TranscriptQuery struct {
	ProjectID     string
	Start         *time.Time
	End           *time.Time
	PageSize      int
	MaxPages      int
	Order         string // ASC or DESC; defaults to DESC
	SessionID     string
	EnvironmentID string
	Filters       []voiceflow.Filter
}

func (q TranscriptQuery) take() int {
	if q.PageSize <= 0 {
		return DefaultPageSize
	}
	return min(q.PageSize, voiceflow.MaxPageSize)
}

func (q TranscriptQuery) order() string {
	if strings.EqualFold(q.Order, "ASC") {
		return "ASC"
	}
	return "DESC"
}

func (q TranscriptQuery) maxPages() int {
	if q.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return q.MaxPages
}

func (q TranscriptQuery) dateRange() models.DateRange {
	return models.DateRange{Start: q.Start, End: q.End}
}

// TranscriptSet is the result of draining the listing.
type TranscriptSet struct {
	// Transcripts are unique by ID and sorted by CreatedAt, then ID.
	Transcripts []models.Transcript
	Pages       int
	// Partial is set when the drain stopped early because of cancellation
	// or the page cap.
	Partial bool
}

// TranscriptFetcher drains the paginated transcript listing.
type TranscriptFetcher struct {
	API    API
	Logger *slog.Logger
}

func (f *TranscriptFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Fetch walks pages until the listing is exhausted or the requested date
// range has been passed. Duplicate IDs across pages keep the last-seen
// record. Transcripts outside the inclusive range, or without a timestamp
// when a range is set, are dropped.
//
// When ctx ends mid-drain the transcripts gathered so far are returned with
// Partial set, together with the context error. An empty result is not an
// error.
func (f *TranscriptFetcher) Fetch(ctx context.Context, q TranscriptQuery) (*TranscriptSet, error) {
	take := q.take()
	req := voiceflow.PageRequest{
		ProjectID:     q.ProjectID,
		Take:          take,
		Order:         q.order(),
		Start:         q.Start,
		End:           q.End,
		SessionID:     q.SessionID,
		EnvironmentID: q.EnvironmentID,
		Filters:       q.Filters,
	}

	var (
		seen  = make(map[string]int)
		all   []models.Transcript
		pages int
	)

	finish := func(partial bool) *TranscriptSet {
		return &TranscriptSet{
			Transcripts: filterAndSort(all, q.dateRange()),
			Pages:       pages,
			Partial:     partial,
		}
	}

	for {
		if pages >= q.maxPages() {
			return finish(true), fmt.Errorf("%w: %d pages of %d", ErrPaginationExceeded, pages, take)
		}
		if err := ctx.Err(); err != nil {
			return finish(true), fmt.Errorf("fetch transcripts: %w", err)
		}

		page, err := f.API.TranscriptPage(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(true), fmt.Errorf("fetch transcripts page %d: %w", pages+1, errors.Join(ctxErr, err))
			}
			return nil, fmt.Errorf("fetch transcripts page %d: %w", pages+1, err)
		}
		pages++

		for _, t := range page.Transcripts {
			if i, ok := seen[t.ID]; ok {
				all[i] = t
				continue
			}
			seen[t.ID] = len(all)
			all = append(all, t)
		}

		f.logger().DebugContext(ctx, "fetched transcript page",
			"page", pages, "count", len(page.Transcripts), "total", len(all))

		if !hasNextPage(page, take) || pastRange(page.Transcripts, req.Order, q.dateRange()) {
			break
		}

		if page.NextCursor != "" {
			req.Cursor = page.NextCursor
		} else {
			req.Skip += take
		}
	}

	return finish(false), nil
}

// hasNextPage decides whether the listing continues after page. An explicit
// hasMore wins; a cursor means more; otherwise a full page means more.
func hasNextPage(page *voiceflow.Page, take int) bool {
	if len(page.Transcripts) == 0 {
		return false
	}
	if page.HasMore != nil {
		return *page.HasMore
	}
	if page.NextCursor != "" {
		return true
	}
	return len(page.Transcripts) >= take
}

// pastRange reports whether every transcript on the page lies beyond the
// range in the direction of travel, meaning later pages cannot match.
func pastRange(ts []models.Transcript, order string, r models.DateRange) bool {
	if len(ts) == 0 {
		return false
	}
	for i := range ts {
		t := &ts[i]
		if !t.HasTimestamp() {
			return false
		}
		switch {
		case order == "DESC" && r.Start != nil && t.CreatedAt.Before(*r.Start):
		case order == "ASC" && r.End != nil && t.CreatedAt.After(*r.End):
		default:
			return false
		}
	}
	return true
}

func filterAndSort(ts []models.Transcript, r models.DateRange) []models.Transcript {
	out := make([]models.Transcript, 0, len(ts))
	for _, t := range ts {
		if r.IsSet() {
			if !t.HasTimestamp() || !r.Contains(t.CreatedAt) {
				continue
			}
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Transcript) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
