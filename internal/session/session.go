package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rodrigo/nfse-collector/internal/capture"
	"github.com/rodrigo/nfse-collector/internal/certstore"
	"github.com/rodrigo/nfse-collector/internal/scanner"
	"github.com/rodrigo/nfse-collector/internal/types"
)

// userAgent is a fixed realistic desktop user agent; the portal serves a
// degraded page to obvious automation agents.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Builder constructs authenticated browser sessions. One OS browser process
// is launched per Build call.
type Builder struct {
	Certs           *certstore.Store
	PortalURL       string
	DownloadsPath   string
	Timeout         time.Duration
	IgnoreTLSErrors bool
}

// Session is a live authenticated browser bound to one account's client
// certificate. It is owned by exactly one run at a time and must be closed
// (or intentionally kept open in interactive mode) during finalization.
type Session struct {
	taxID    string
	headless bool

	ctx          context.Context
	cancelCtx    context.CancelFunc
	cancelAlloc  context.CancelFunc
	client       *http.Client
	base         *url.URL
	timeout      time.Duration
	downloadsDir string
}

// Build loads the account's credential, launches a browser with the
// certificate bound to the portal origin, and drives the login flow until
// the authenticated dashboard is reached.
func (b *Builder) Build(ctx context.Context, taxID string, headless bool) (*Session, error) {
	pfx, passphrase, err := b.Certs.Load(taxID)
	if err != nil {
		// Credential errors surface unchanged so callers can
		// distinguish not-found from undecryptable material.
		return nil, err
	}

	cert, err := clientCertificate(pfx, passphrase)
	if err != nil {
		return nil, &certstore.InvalidCertificateError{Message: "certificate rejected", Cause: err}
	}

	base, err := url.Parse(b.PortalURL)
	if err != nil {
		return nil, &CreationError{Message: fmt.Sprintf("invalid portal URL %q", b.PortalURL), Cause: err}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &CreationError{Message: "cookie jar", Cause: err}
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates:       []tls.Certificate{cert},
				InsecureSkipVerify: b.IgnoreTLSErrors, //nolint:gosec // the portal chain fails strict verification
			},
		},
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", b.IgnoreTLSErrors),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	s := &Session{
		taxID:        taxID,
		headless:     headless,
		ctx:          browserCtx,
		cancelCtx:    cancelCtx,
		cancelAlloc:  cancelAlloc,
		client:       client,
		base:         base,
		timeout:      b.Timeout,
		downloadsDir: b.DownloadsPath,
	}

	// Start the browser process before installing listeners.
	if err := chromedp.Run(browserCtx); err != nil {
		s.teardown()
		return nil, &CreationError{Message: "failed to launch browser", Cause: err}
	}
	if err := enableInterception(browserCtx, origin(base), client); err != nil {
		s.teardown()
		return nil, &CreationError{Message: "failed to enable request interception", Cause: err}
	}

	if err := s.login(); err != nil {
		s.teardown()
		return nil, err
	}
	return s, nil
}

// origin returns the scheme://host portion of a URL; the certificate is
// scoped to exactly this origin, never wildcarded.
func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// loginStrategy is one way of locating the certificate-login control.
// Strategies are probed in order until one succeeds; a failing strategy is a
// typed miss, not an exception.
type loginStrategy struct {
	name  string
	click chromedp.Action
}

func (s *Session) login() error {
	navCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(s.base.String()),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return &AuthenticationError{Message: "portal did not load", Cause: err}
	}

	if s.authenticated() {
		log.Printf("[SESSION] %s: already authenticated, dashboard detected", s.taxID)
		return nil
	}

	strategies := []loginStrategy{
		{"button id", chromedp.Click("#btnCertificado", chromedp.ByQuery, chromedp.NodeVisible)},
		{"button class", chromedp.Click(".btn-certificado", chromedp.ByQuery, chromedp.NodeVisible)},
		{"certificate link", chromedp.Click(`a[href*="Certificado"]`, chromedp.ByQuery, chromedp.NodeVisible)},
		{"input value", chromedp.Click(`input[type="button"][value*="ertificado"]`, chromedp.ByQuery, chromedp.NodeVisible)},
		{"link text", chromedp.Click(`//a[contains(., "Certificado")] | //button[contains(., "Certificado")]`, chromedp.BySearch)},
	}

	clicked := false
	for _, strat := range strategies {
		clickCtx, cancelClick := context.WithTimeout(s.ctx, 5*time.Second)
		err := chromedp.Run(clickCtx, strat.click)
		cancelClick()
		if err == nil {
			log.Printf("[SESSION] %s: clicked certificate login via %s", s.taxID, strat.name)
			clicked = true
			break
		}
	}
	if !clicked {
		// The portal may have authenticated on first navigation when the
		// TLS handshake already presented the certificate.
		if s.authenticated() {
			return nil
		}
		return &AuthenticationError{Message: "no certificate login control found"}
	}

	deadline := time.Now().Add(s.timeout)
	for time.Now().Before(deadline) {
		if s.authenticated() {
			log.Printf("[SESSION] %s: authenticated", s.taxID)
			return nil
		}
		waitCtx, cancelWait := context.WithTimeout(s.ctx, time.Second)
		_ = chromedp.Run(waitCtx, chromedp.Sleep(500*time.Millisecond))
		cancelWait()
	}
	return &AuthenticationError{Message: "dashboard not reached before timeout"}
}

// authenticated reports whether the page looks like the logged-in dashboard.
// Heuristic: URL contains Dashboard, or we are past the login page.
func (s *Session) authenticated() bool {
	checkCtx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()

	var location string
	if err := chromedp.Run(checkCtx, chromedp.Location(&location)); err != nil {
		return false
	}
	if strings.Contains(location, "Dashboard") {
		return true
	}
	if strings.Contains(location, "Login") {
		return false
	}

	var hasMarker bool
	err := chromedp.Run(checkCtx, chromedp.Evaluate(
		`document.querySelector('[href*="Dashboard"], .dashboard, #dashboard') !== null`, &hasMarker))
	return err == nil && hasMarker
}

// Collect scans one report listing for the target period and downloads both
// artifacts of every valid matching row.
func (s *Session) Collect(dir types.Direction, period, company string, logf types.LogFunc) (types.ScanOutcome, error) {
	if logf == nil {
		logf = log.Printf
	}

	sc := scanner.New(scanner.Options{Timeout: s.timeout, Logf: logf})
	if err := sc.OpenListing(s.ctx, dir); err != nil {
		return types.ScanOutcome{}, err
	}

	if err := s.syncCookies(); err != nil {
		logf("cookie sync failed, direct downloads may miss session state: %v", err)
	}

	capt := capture.New(capture.Options{
		Client:   s.client,
		BasePath: s.downloadsDir,
		Timeout:  s.timeout,
		Logf:     logf,
	})

	var artifacts []types.Artifact
	result, err := sc.Scan(s.ctx, dir, period, func(ctx context.Context, row scanner.Row) error {
		res := capt.CaptureRow(ctx, row, period, company, dir)
		artifacts = append(artifacts, res.Artifacts...)
		return nil
	})

	outcome := types.ScanOutcome{
		Pages:     result.Pages,
		Rows:      result.Rows,
		Matched:   result.Matched,
		Skipped:   result.Skipped,
		Artifacts: artifacts,
	}
	return outcome, err
}

// syncCookies copies the browser's portal cookies into the HTTP client's jar
// so direct downloads reuse the authenticated session.
func (s *Session) syncCookies() error {
	syncCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(syncCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{s.base.String()}).Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	converted := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		converted = append(converted, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
		})
	}
	s.client.Jar.SetCookies(s.base, converted)
	return nil
}

// Close releases the browser resources. In interactive (non-headless) mode
// the browser window is intentionally left open for inspection; the process
// is only reaped when the collector itself exits.
func (s *Session) Close() {
	if !s.headless {
		log.Printf("[SESSION] %s: leaving browser window open (interactive mode)", s.taxID)
		return
	}
	s.teardown()
}

func (s *Session) teardown() {
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// Err helpers used by the orchestrator's failure classification.

// IsCredentialError reports whether err is a missing or invalid credential.
func IsCredentialError(err error) bool {
	var invalid *certstore.InvalidCertificateError
	var decrypt *certstore.DecryptionError
	return errors.Is(err, certstore.ErrNotFound) || errors.As(err, &invalid) || errors.As(err, &decrypt)
}
