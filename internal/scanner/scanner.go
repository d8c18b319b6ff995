package scanner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/rodrigo/nfse-collector/internal/types"
)

const tableSelector = "table tbody tr"

// Options configures a Scanner.
type Options struct {
	Timeout time.Duration // bounded wait for table render and navigation
	Logf    types.LogFunc
}

// RowHandler is invoked for every valid row matching the target period.
// Handler errors are logged and the scan continues with the next row.
type RowHandler func(ctx context.Context, row Row) error

// Result summarizes a finished scan.
type Result struct {
	Pages   int
	Rows    int
	Matched int
	Skipped int
}

// scanState tracks where the per-direction scan is in its page loop.
type scanState int

const (
	stateAwaitingTable scanState = iota
	stateMatchingRows
	stateNextPage
	stateDone
)

// pageSource feeds rendered listing pages to the scan loop. The browser
// implementation drives the live tab; tests supply pages directly.
type pageSource interface {
	AwaitTable(ctx context.Context) error
	ReadPage(ctx context.Context, dir types.Direction) (*Page, error)
	NextPage(ctx context.Context) error
}

// Scanner walks the pages of a report listing. The listing is assumed sorted
// by period descending, which is what the pagination stop rules rely on.
type Scanner struct {
	pages   pageSource
	timeout time.Duration
	logf    types.LogFunc
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Scanner{
		pages:   &browserPages{timeout: timeout},
		timeout: timeout,
		logf:    logf,
	}
}

// OpenListing navigates from the dashboard to the report listing for the
// given direction and sorts it by accounting period.
func (s *Scanner) OpenListing(ctx context.Context, dir types.Direction) error {
	// Link href first, sidebar position as fallback; the sidebar markup has
	// moved between portal revisions while the route has not.
	var strategies []string
	if dir == types.DirectionReceived {
		strategies = []string{`a[href*="/Notas/Recebidas"]`, "li:nth-of-type(4) img"}
	} else {
		strategies = []string{`a[href*="/Notas/Emitidas"]`, "li:nth-of-type(3) img"}
	}

	var lastErr error
	opened := false
	for _, sel := range strategies {
		clickCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := chromedp.Run(clickCtx,
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
			chromedp.WaitVisible(tableSelector, chromedp.ByQuery),
		)
		cancel()
		if err == nil {
			opened = true
			break
		}
		lastErr = err
	}
	if !opened {
		return &NavigationError{Direction: dir, Cause: lastErr}
	}

	// Sorting puts the target period into a contiguous window; best effort.
	sortCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(sortCtx,
		chromedp.Click("th.td-competencia", chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Sleep(time.Second),
	); err != nil {
		s.logf("could not sort %s listing by period, scanning as-is: %v", dir, err)
	}

	s.logf("opened %s listing", dir)
	return nil
}

// Scan walks the listing pages, invoking onRow for every valid row whose
// period equals target. It stops when a page has no matching row, when the
// last row's period has passed the target window, or when pagination ends.
func (s *Scanner) Scan(ctx context.Context, dir types.Direction, target string, onRow RowHandler) (Result, error) {
	var result Result
	state := stateAwaitingTable

	for state != stateDone {
		switch state {
		case stateAwaitingTable:
			if err := s.pages.AwaitTable(ctx); err != nil {
				return result, &TableTimeoutError{Direction: dir, Cause: err}
			}
			state = stateMatchingRows

		case stateMatchingRows:
			page, err := s.pages.ReadPage(ctx, dir)
			if err != nil {
				return result, err
			}
			if len(page.Rows) == 0 {
				s.logf("no rows on page, %s scan done", dir)
				state = stateDone
				continue
			}

			result.Pages++
			result.Rows += len(page.Rows)
			s.logf("processing %d rows on page %d (%s)", len(page.Rows), result.Pages, dir)

			anyMatch := false
			for _, row := range page.Rows {
				if row.Period != target {
					continue
				}
				anyMatch = true
				result.Matched++
				if !row.Valid {
					result.Skipped++
					s.logf("skipping cancelled document at row %d (%s)", row.Index+1, dir)
					continue
				}
				if err := onRow(ctx, row); err != nil {
					// Per-row failure is never fatal to the scan.
					s.logf("row processing failed: %v", &RowError{Index: row.Index, Cause: err})
				}
			}

			next, reason := afterPage(page, target, anyMatch)
			if next == stateDone {
				s.logf("%s, %s scan done", reason, dir)
			}
			state = next

		case stateNextPage:
			if err := s.pages.NextPage(ctx); err != nil {
				s.logf("failed to advance to next page, stopping %s scan: %v", dir, err)
				state = stateDone
				continue
			}
			state = stateAwaitingTable
		}
	}

	s.logf("%s scan finished: %d pages, %d rows, %d matched, %d skipped",
		dir, result.Pages, result.Rows, result.Matched, result.Skipped)
	return result, nil
}

// afterPage applies the stop rules once a page's rows have been processed.
// The listing is sorted by period, so a page whose last row falls outside the
// target period means the window has been fully covered.
func afterPage(page *Page, target string, anyMatch bool) (scanState, string) {
	switch {
	case !anyMatch:
		return stateDone, fmt.Sprintf("no rows matched period %s on this page", target)
	case page.Rows[len(page.Rows)-1].Period != target:
		return stateDone, fmt.Sprintf("passed the %s window", target)
	case !page.NextExists || page.NextDisabled:
		return stateDone, "no further pages"
	default:
		return stateNextPage, ""
	}
}

// browserPages reads listing pages from the live browser tab.
type browserPages struct {
	timeout time.Duration
}

func (b *browserPages) AwaitTable(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(tableSelector, chromedp.ByQuery))
}

func (b *browserPages) ReadPage(ctx context.Context, dir types.Direction) (*Page, error) {
	readCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(readCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, &TableTimeoutError{Direction: dir, Cause: err}
	}
	return ParsePage(html, dir)
}

// NextPage clicks the pager arrow and waits for the table body to actually
// change. The pager swaps the tbody in place, so the old rows stay attached
// and visible after the click; waiting on row visibility alone would return
// immediately and the loop would re-read the stale page.
func (b *browserPages) NextPage(ctx context.Context) error {
	var before string
	snapCtx, cancel := context.WithTimeout(ctx, b.timeout)
	err := chromedp.Run(snapCtx, chromedp.OuterHTML("table tbody", &before, chromedp.ByQuery))
	cancel()
	if err != nil {
		return err
	}

	clickCtx, cancel := context.WithTimeout(ctx, b.timeout)
	err = chromedp.Run(clickCtx, chromedp.Click("li:nth-of-type(8) i", chromedp.ByQuery, chromedp.NodeVisible))
	cancel()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(b.timeout)
	for time.Now().Before(deadline) {
		var after string
		pollCtx, cancelPoll := context.WithTimeout(ctx, 2*time.Second)
		pollErr := chromedp.Run(pollCtx,
			chromedp.Sleep(250*time.Millisecond),
			chromedp.OuterHTML("table tbody", &after, chromedp.ByQuery),
		)
		cancelPoll()
		if pollErr != nil {
			// The tbody can be detached mid-swap; keep polling.
			continue
		}
		if after != before {
			return nil
		}
	}
	return fmt.Errorf("table content did not change after pagination click")
}
