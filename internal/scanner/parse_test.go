package scanner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// listingHTML builds a rendered issued-listing page with the portal's column
// layout: key, issue ref, period, counterpart, value, status, actions.
func listingHTML(rows []string, pager string) string {
	return fmt.Sprintf(`<html><body><table>
		<thead><tr>
			<th>Chave</th><th>Emissão</th><th>Competência</th>
			<th>Emitida para</th><th>Valor</th><th>Situação</th><th>Ações</th>
		</tr></thead>
		<tbody>%s</tbody>
	</table><ul>%s</ul></body></html>`, strings.Join(rows, "\n"), pager)
}

func issuedRow(key, issued, period, counterpart, statusImg string) string {
	return fmt.Sprintf(`<tr>
		<td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>1.234,00</td>
		<td>%s</td><td><div><a href="#"><i class="menu"></i></a></div></td>
	</tr>`, key, issued, period, counterpart, statusImg)
}

// pagerWithNext produces eight pager items; the eighth carries the next arrow.
func pagerWithNext(disabled bool) string {
	attr := ""
	if disabled {
		attr = ` class="disabled"`
	}
	items := strings.Repeat("<li><a>1</a></li>", 7)
	return items + fmt.Sprintf(`<li%s><a%s><i class="seta"></i></a></li>`, attr, attr)
}

func TestParsePage_ReadsRowsByHeader(t *testing.T) {
	html := listingHTML([]string{
		issuedRow("k1", "05/11/2025", "11/2025", "Empresa Alpha", `<img alt="Emitida">`),
		issuedRow("k2", "28/10/2025", "10/2025", "Empresa Beta", `<img alt="Emitida">`),
	}, pagerWithNext(false))

	page, err := ParsePage(html, types.DirectionIssued)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)

	assert.Equal(t, 0, page.Rows[0].Index)
	assert.Equal(t, "11/2025", page.Rows[0].Period)
	assert.Equal(t, "Empresa Alpha", page.Rows[0].Counterpart)
	assert.Equal(t, "05/11/2025", page.Rows[0].IssueRef)
	assert.Equal(t, 6, page.Rows[0].ActionCol)
	assert.Equal(t, "10/2025", page.Rows[1].Period)

	assert.True(t, page.NextExists)
	assert.False(t, page.NextDisabled)
}

func TestParsePage_ReceivedUsesFifthActionColumn(t *testing.T) {
	html := `<html><body><table>
		<thead><tr>
			<th>Chave</th><th>Emissão</th><th>Competência</th>
			<th>Emitida por</th><th>Situação</th><th>Ações</th>
		</tr></thead>
		<tbody><tr>
			<td>k1</td><td>02/11/2025</td><td>11/2025</td>
			<td>Fornecedor Gama</td><td><img alt="Emitida"></td>
			<td><a href="#"><i></i></a></td>
		</tr></tbody>
	</table></body></html>`

	page, err := ParsePage(html, types.DirectionReceived)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)

	assert.Equal(t, "Fornecedor Gama", page.Rows[0].Counterpart)
	assert.Equal(t, 5, page.Rows[0].ActionCol)
}

func TestParsePage_EmptyTable(t *testing.T) {
	page, err := ParsePage(listingHTML(nil, ""), types.DirectionIssued)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.False(t, page.NextExists)
}

func TestRowValidity_CancelledAlt(t *testing.T) {
	html := listingHTML([]string{
		issuedRow("k1", "05/11/2025", "11/2025", "Empresa Alpha", `<img alt="Cancelada">`),
		issuedRow("k2", "05/11/2025", "11/2025", "Empresa Beta", `<img alt="Emitida">`),
		issuedRow("k3", "05/11/2025", "11/2025", "Empresa Gama", ``),
		issuedRow("k4", "05/11/2025", "11/2025", "Empresa Delta", `<img src="/img/nota-cancelada.png">`),
	}, "")

	page, err := ParsePage(html, types.DirectionIssued)
	require.NoError(t, err)
	require.Len(t, page.Rows, 4)

	assert.False(t, page.Rows[0].Valid, "alt keyword marks the row invalid")
	assert.True(t, page.Rows[1].Valid, "positive status stays valid")
	assert.True(t, page.Rows[2].Valid, "missing status image defaults to valid")
	assert.False(t, page.Rows[3].Valid, "src keyword marks the row invalid")
}

func TestNextPageState_Disabled(t *testing.T) {
	page, err := ParsePage(listingHTML(nil, pagerWithNext(true)), types.DirectionIssued)
	require.NoError(t, err)
	assert.True(t, page.NextExists)
	assert.True(t, page.NextDisabled)
}

func TestAfterPage_StopRules(t *testing.T) {
	rows := []Row{{Period: "11/2025"}, {Period: "11/2025"}}
	page := &Page{Rows: rows, NextExists: true}

	state, _ := afterPage(page, "11/2025", true)
	assert.Equal(t, stateNextPage, state, "uniform matching page with next arrow continues")

	state, _ = afterPage(page, "11/2025", false)
	assert.Equal(t, stateDone, state, "page without a match terminates")

	mixed := &Page{Rows: []Row{{Period: "11/2025"}, {Period: "10/2025"}}, NextExists: true}
	state, _ = afterPage(mixed, "11/2025", true)
	assert.Equal(t, stateDone, state, "mixed page means the window ended")

	last := &Page{Rows: rows, NextExists: false}
	state, _ = afterPage(last, "11/2025", true)
	assert.Equal(t, stateDone, state, "missing next arrow terminates")

	disabled := &Page{Rows: rows, NextExists: true, NextDisabled: true}
	state, _ = afterPage(disabled, "11/2025", true)
	assert.Equal(t, stateDone, state, "disabled next arrow terminates")
}
