package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// fakePages feeds a fixed page stream to the scan loop.
type fakePages struct {
	pages     []*Page
	current   int
	nextCalls int
}

func (f *fakePages) AwaitTable(context.Context) error { return nil }

func (f *fakePages) ReadPage(context.Context, types.Direction) (*Page, error) {
	if f.current >= len(f.pages) {
		return &Page{}, nil
	}
	return f.pages[f.current], nil
}

func (f *fakePages) NextPage(context.Context) error {
	f.nextCalls++
	f.current++
	if f.current >= len(f.pages) {
		return errors.New("no page behind the pager")
	}
	return nil
}

func fixturePage(next, disabled bool, rows ...Row) *Page {
	return &Page{Rows: rows, NextExists: next, NextDisabled: disabled}
}

func fixtureRow(index int, period string, valid bool) Row {
	return Row{Index: index, Period: period, Valid: valid, ActionCol: 6}
}

func newFakeScanner(pages ...*Page) (*Scanner, *fakePages) {
	fake := &fakePages{pages: pages}
	return &Scanner{pages: fake, logf: func(string, ...any) {}}, fake
}

func TestScan_InvokesHandlerOncePerMatchingRow(t *testing.T) {
	const target = "11/2025"

	tests := []struct {
		name      string
		pages     []*Page
		wantCalls int
		wantPages int
		wantNext  int
	}{
		{
			name: "matches spanning two pages stop when the window passes",
			pages: []*Page{
				fixturePage(true, false,
					fixtureRow(0, target, true),
					fixtureRow(1, target, true),
					fixtureRow(2, target, true)),
				fixturePage(true, false,
					fixtureRow(0, target, true),
					fixtureRow(1, target, true),
					fixtureRow(2, "10/2025", true)),
				fixturePage(true, false,
					fixtureRow(0, "10/2025", true)),
			},
			wantCalls: 5,
			wantPages: 2,
			wantNext:  1,
		},
		{
			name: "single page ends with the pager disabled",
			pages: []*Page{
				fixturePage(true, true,
					fixtureRow(0, target, true),
					fixtureRow(1, target, true)),
			},
			wantCalls: 2,
			wantPages: 1,
			wantNext:  0,
		},
		{
			name: "page without matches stops before paginating",
			pages: []*Page{
				fixturePage(true, false,
					fixtureRow(0, "12/2025", true),
					fixtureRow(1, "12/2025", true)),
				fixturePage(true, false,
					fixtureRow(0, target, true)),
			},
			wantCalls: 0,
			wantPages: 1,
			wantNext:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fake := newFakeScanner(tt.pages...)

			calls := 0
			result, err := s.Scan(context.Background(), types.DirectionIssued, target,
				func(context.Context, Row) error {
					calls++
					return nil
				})
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, calls, "handler invocations")
			assert.Equal(t, tt.wantCalls, result.Matched-result.Skipped)
			assert.Equal(t, tt.wantPages, result.Pages)
			assert.Equal(t, tt.wantNext, fake.nextCalls, "pagination clicks")
		})
	}
}

func TestScan_CancelledRowsCountedButNotCaptured(t *testing.T) {
	const target = "11/2025"
	s, _ := newFakeScanner(fixturePage(false, false,
		fixtureRow(0, target, true),
		fixtureRow(1, target, false),
		fixtureRow(2, target, true)))

	var captured []int
	result, err := s.Scan(context.Background(), types.DirectionReceived, target,
		func(_ context.Context, row Row) error {
			captured = append(captured, row.Index)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, captured)
	assert.Equal(t, 3, result.Matched)
	assert.Equal(t, 1, result.Skipped)
}

func TestScan_HandlerErrorDoesNotStopTheScan(t *testing.T) {
	const target = "11/2025"
	s, _ := newFakeScanner(fixturePage(false, false,
		fixtureRow(0, target, true),
		fixtureRow(1, target, true)))

	calls := 0
	result, err := s.Scan(context.Background(), types.DirectionIssued, target,
		func(context.Context, Row) error {
			calls++
			return errors.New("download failed")
		})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, result.Matched)
}

func TestScan_EmptyFirstPage(t *testing.T) {
	s, fake := newFakeScanner(fixturePage(true, false))

	result, err := s.Scan(context.Background(), types.DirectionIssued, "11/2025",
		func(context.Context, Row) error {
			t.Fatal("handler must not run on an empty page")
			return nil
		})
	require.NoError(t, err)

	assert.Zero(t, result.Pages)
	assert.Zero(t, fake.nextCalls)
}
