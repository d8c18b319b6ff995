package scanner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// Row is one discovered table row. Rows are ephemeral: they exist only while
// the page they came from is being processed and are never persisted.
type Row struct {
	Index       int    // 0-based position within the current page
	Period      string // formatted accounting period, e.g. "11/2025"
	Counterpart string // issuer or recipient company name
	IssueRef    string // issue date/reference cell, used for fallback naming
	Valid       bool   // §validity heuristic result
	ActionCol   int    // 0-based td index holding the action menu trigger
}

// Page is the parsed view of one rendered listing page.
type Page struct {
	Rows         []Row
	NextExists   bool
	NextDisabled bool
}

// columns maps listing columns to td indexes. Headers are matched by name
// when present; the fallbacks mirror the portal's current layout.
type columns struct {
	period      int
	counterpart int
	issueRef    int
	status      int
	action      int
}

func columnsFor(doc *goquery.Document, dir types.Direction) columns {
	cols := columns{
		period:   headerIndex(doc, "Competência", 2),
		issueRef: headerIndex(doc, "Emissão", 1),
		status:   5, // status icon lives in a fixed column
	}
	if dir == types.DirectionReceived {
		cols.counterpart = headerIndex(doc, "Emitida por", 3)
		cols.action = 5
	} else {
		cols.counterpart = headerIndex(doc, "Emitida para", 3)
		cols.action = 6
	}
	return cols
}

// headerIndex finds the th whose text contains name, or returns the fallback
// index when the header row is missing or renamed.
func headerIndex(doc *goquery.Document, name string, fallback int) int {
	index := fallback
	doc.Find("table thead th").EachWithBreak(func(i int, th *goquery.Selection) bool {
		if strings.Contains(strings.TrimSpace(th.Text()), name) {
			index = i
			return false
		}
		return true
	})
	return index
}

// ParsePage extracts the listing rows and pagination state from a rendered
// page's HTML.
func ParsePage(html string, dir types.Direction) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	cols := columnsFor(doc, dir)
	page := &Page{}

	doc.Find("table tbody tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		row := Row{
			Index:       i,
			Period:      cellText(cells, cols.period),
			Counterpart: cellText(cells, cols.counterpart),
			IssueRef:    cellText(cells, cols.issueRef),
			ActionCol:   cols.action,
		}
		row.Valid = rowValid(cells, cols.status)
		page.Rows = append(page.Rows, row)
	})

	page.NextExists, page.NextDisabled = nextPageState(doc)
	return page, nil
}

func cellText(cells *goquery.Selection, index int) string {
	if index < 0 || index >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(index).Text())
}

// nextPageState inspects the pagination control. The next-page arrow is the
// eighth item of the pager list.
func nextPageState(doc *goquery.Document) (exists, disabled bool) {
	li := doc.Find("li:nth-of-type(8)").First()
	icon := li.Find("i").First()
	if icon.Length() == 0 {
		return false, false
	}
	if _, has := li.Attr("disabled"); has {
		return true, true
	}
	link := icon.Parent()
	if _, has := link.Attr("disabled"); has {
		return true, true
	}
	if link.HasClass("disabled") || li.HasClass("disabled") {
		return true, true
	}
	return true, false
}
