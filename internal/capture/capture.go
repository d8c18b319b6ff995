package capture

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/rodrigo/nfse-collector/internal/scanner"
	"github.com/rodrigo/nfse-collector/internal/types"
)

const (
	menuSelector = ".menu-suspenso-tabela"

	// Each artifact gets a short retry loop: the dropdown occasionally
	// swallows the first click.
	attemptsPerArtifact = 2
)

// Options configures a Capturer.
type Options struct {
	// Client is the authenticated HTTP client sharing the browser's cookies.
	Client *http.Client
	// BasePath is the root downloads directory.
	BasePath string
	Timeout  time.Duration
	Logf     types.LogFunc
}

// Result reports what was captured for a single row. Absent paths mean the
// corresponding artifact could not be obtained.
type Result struct {
	XMLPath   string
	PDFPath   string
	Artifacts []types.Artifact
}

// Capturer downloads the XML and PDF artifacts of matched rows through the
// row's action menu.
type Capturer struct {
	client   *http.Client
	basePath string
	timeout  time.Duration
	logf     types.LogFunc
}

// New creates a Capturer with the given options.
func New(opts Options) *Capturer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Capturer{
		client:   client,
		basePath: opts.BasePath,
		timeout:  timeout,
		logf:     logf,
	}
}

// CaptureRow obtains the XML and PDF documents for one matched row. It never
// returns an error: every failure is logged and reflected only as a missing
// artifact in the result.
func (c *Capturer) CaptureRow(ctx context.Context, row scanner.Row, period, company string, dir types.Direction) Result {
	var result Result
	outDir := OutputDir(c.basePath, period, company, dir)

	for _, kind := range []types.ArtifactKind{types.ArtifactXML, types.ArtifactPDF} {
		path, err := c.captureArtifact(ctx, row, kind, dir, outDir)
		if err != nil {
			c.logf("row %d: %s capture failed: %v", row.Index+1, kind, err)
			continue
		}
		info, statErr := os.Stat(path)
		size := int64(0)
		if statErr == nil {
			size = info.Size()
		}
		result.Artifacts = append(result.Artifacts, types.Artifact{
			Kind:      kind,
			Direction: dir,
			Path:      path,
			Size:      size,
		})
		switch kind {
		case types.ArtifactXML:
			result.XMLPath = path
		case types.ArtifactPDF:
			result.PDFPath = path
		}
	}

	return result
}

func (c *Capturer) captureArtifact(ctx context.Context, row scanner.Row, kind types.ArtifactKind, dir types.Direction, outDir string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= attemptsPerArtifact; attempt++ {
		path, err := c.tryCapture(ctx, row, kind, outDir)
		if err == nil {
			return path, nil
		}
		lastErr = err
		c.logf("row %d: %s attempt %d/%d failed: %v",
			row.Index+1, kind, attempt, attemptsPerArtifact, err)
		c.closeMenu(ctx, row)
	}
	return "", lastErr
}

func (c *Capturer) tryCapture(ctx context.Context, row scanner.Row, kind types.ArtifactKind, outDir string) (string, error) {
	menuHTML, err := c.openMenu(ctx, row)
	if err != nil {
		return "", err
	}
	defer c.closeMenu(ctx, row)

	href, err := ResolveLink(menuHTML, kind)
	if err != nil {
		return "", err
	}

	absolute, err := c.absoluteURL(ctx, href)
	if err != nil {
		return "", err
	}

	data, contentType, suggested, err := c.fetch(ctx, absolute)
	if err != nil {
		return "", err
	}

	sniffed := c.classify(row, contentType, data)
	name := DeriveFileName(suggested, href, sniffed)
	return c.write(outDir, name, data)
}

// classify wraps Classify and logs when the payload falls through to the
// generic binary kind; the file is kept, the unexpected content is recoverable.
func (c *Capturer) classify(row scanner.Row, contentType string, data []byte) types.ArtifactKind {
	kind := Classify(contentType, data)
	if kind == types.ArtifactBinary {
		c.logf("row %d: unrecognized content (type %q, %d bytes), saving as binary",
			row.Index+1, contentType, len(data))
	}
	return kind
}

// openMenu clicks the row's action trigger and returns the rendered menu
// markup once it becomes visible.
func (c *Capturer) openMenu(ctx context.Context, row scanner.Row) (string, error) {
	rowSel := fmt.Sprintf("table tbody tr:nth-child(%d)", row.Index+1)
	cellSel := fmt.Sprintf("%s td:nth-child(%d)", rowSel, row.ActionCol+1)
	triggers := []string{cellSel + " div a i", cellSel + " a i"}

	var lastErr error
	for _, trigger := range triggers {
		openCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var menuHTML string
		err := chromedp.Run(openCtx,
			chromedp.Click(trigger, chromedp.ByQuery, chromedp.NodeVisible),
			chromedp.WaitVisible(menuSelector, chromedp.ByQuery),
			chromedp.OuterHTML(menuSelector, &menuHTML, chromedp.ByQuery),
		)
		cancel()
		if err == nil {
			return menuHTML, nil
		}
		lastErr = err
	}
	return "", &MenuError{Message: "could not open row action menu", Cause: lastErr}
}

// closeMenu dismisses the action menu so the next row's trigger is clickable.
// Tries re-clicking the trigger, then Escape, then a click outside the table.
func (c *Capturer) closeMenu(ctx context.Context, row scanner.Row) {
	rowSel := fmt.Sprintf("table tbody tr:nth-child(%d)", row.Index+1)
	trigger := fmt.Sprintf("%s td:nth-child(%d) a i", rowSel, row.ActionCol+1)

	strategies := []chromedp.Action{
		chromedp.Click(trigger, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.KeyEvent(kb.Escape),
		chromedp.MouseClickXY(5, 5),
	}
	for _, act := range strategies {
		closeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := chromedp.Run(closeCtx, act,
			chromedp.WaitNotVisible(menuSelector, chromedp.ByQuery))
		cancel()
		if err == nil {
			return
		}
	}
	c.logf("row %d: action menu did not close cleanly", row.Index+1)
}

// ResolveLink finds the download href for the given artifact kind within the
// action menu's markup. Resolution order: route substring, link label, then
// positional fallback (XML first, PDF second).
func ResolveLink(menuHTML string, kind types.ArtifactKind) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(menuHTML))
	if err != nil {
		return "", &LinkResolutionError{Kind: kind, Message: err.Error()}
	}

	var route string
	var labels []string
	position := 0
	switch kind {
	case types.ArtifactXML:
		route = "/Notas/Download/NFSe/"
		labels = []string{"xml"}
		position = 0
	case types.ArtifactPDF:
		route = "/Notas/Download/DANFSe/"
		labels = []string{"danfs-e", "danfe"}
		position = 1
	default:
		return "", &LinkResolutionError{Kind: kind, Message: "unsupported artifact kind"}
	}

	var byRoute, byLabel string
	var all []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		all = append(all, href)
		if byRoute == "" && strings.Contains(href, route) {
			byRoute = href
		}
		if byLabel == "" {
			text := strings.ToLower(strings.TrimSpace(a.Text()))
			for _, label := range labels {
				if strings.Contains(text, label) {
					byLabel = href
					break
				}
			}
		}
	})

	switch {
	case byRoute != "":
		return byRoute, nil
	case byLabel != "":
		return byLabel, nil
	case position < len(all):
		return all[position], nil
	}
	return "", &LinkResolutionError{Kind: kind, Message: "no candidate link in menu"}
}

// absoluteURL resolves a possibly relative href against the page's current
// location.
func (c *Capturer) absoluteURL(ctx context.Context, href string) (string, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid download href %q: %w", href, err)
	}
	if parsed.IsAbs() {
		return href, nil
	}

	locCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var location string
	if err := chromedp.Run(locCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("could not read page location: %w", err)
	}
	base, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid page location %q: %w", location, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

// fetch downloads the artifact through the authenticated HTTP client.
func (c *Capturer) fetch(ctx context.Context, downloadURL string) (data []byte, contentType, suggested string, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", &DownloadHTTPError{URL: downloadURL, Status: resp.StatusCode}
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", err
	}

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, parseErr := mime.ParseMediaType(cd); parseErr == nil {
			suggested = params["filename"]
		}
	}
	return data, resp.Header.Get("Content-Type"), suggested, nil
}

func (c *Capturer) write(outDir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &FileWriteError{Path: outDir, Cause: err}
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &FileWriteError{Path: path, Cause: err}
	}

	if info, err := os.Stat(path); err != nil || info.Size() != int64(len(data)) {
		// Size mismatch is suspicious but the bytes are on disk; warn only.
		c.logf("written file %s did not verify cleanly", path)
	}
	c.logf("saved %s (%d bytes)", path, len(data))
	return path, nil
}
