package scanner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// invalidityKeywords mark a document as cancelled or invalid when they appear
// in the status icon's attributes. Portuguese and English variants, since the
// portal has shipped both.
var invalidityKeywords = []string{"cancelada", "cancel", "inválida", "invalid"}

// rowValid applies the status-icon heuristic: read the image in the status
// column and treat cancellation keywords in alt, src or class as invalid.
// Absence of the image, or absence of negative keywords, defaults to valid.
// This is deliberately approximate; tightening it risks skipping documents
// the portal still considers current.
func rowValid(cells *goquery.Selection, statusCol int) bool {
	if statusCol < 0 || statusCol >= cells.Length() {
		return true
	}
	img := cells.Eq(statusCol).Find("img").First()
	if img.Length() == 0 {
		return true
	}
	for _, attr := range []string{"alt", "src", "class"} {
		value, ok := img.Attr(attr)
		if !ok {
			continue
		}
		lower := strings.ToLower(value)
		for _, keyword := range invalidityKeywords {
			if strings.Contains(lower, keyword) {
				return false
			}
		}
	}
	return true
}
