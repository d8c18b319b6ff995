package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// enableInterception routes every browser request to the portal origin
// through the session's mTLS HTTP client. Chromium has no flag to present a
// PKCS#12 client certificate without a selection prompt, so requests are
// paused with the Fetch domain and fulfilled with the response obtained by
// the Go client, which holds the decoded key pair. Requests to other origins
// are not paused and proceed normally.
func enableInterception(ctx context.Context, origin string, client *http.Client) error {
	pattern := strings.TrimSuffix(origin, "/") + "/*"
	if err := chromedp.Run(ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: pattern},
	})); err != nil {
		return err
	}

	target := chromedp.FromContext(ctx).Target
	chromedp.ListenTarget(ctx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// The executor context must not be the event callback's; CDP
		// commands issued from inside the handler would deadlock.
		go fulfillRequest(cdp.WithExecutor(ctx, target), client, paused)
	})
	return nil
}

// fulfillRequest replays a paused browser request through the mTLS client and
// hands the response back to the renderer.
func fulfillRequest(ctx context.Context, client *http.Client, ev *fetch.EventRequestPaused) {
	var body io.Reader
	if ev.Request.HasPostData {
		var buf bytes.Buffer
		for _, entry := range ev.Request.PostDataEntries {
			decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
			if err != nil {
				continue
			}
			buf.Write(decoded)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, ev.Request.Method, ev.Request.URL, body)
	if err != nil {
		failRequest(ctx, ev.RequestID)
		return
	}
	for name, value := range ev.Request.Headers {
		if s, ok := value.(string); ok {
			req.Header.Set(name, s)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[SESSION] interception request failed: %s %s: %v", ev.Request.Method, ev.Request.URL, err)
		failRequest(ctx, ev.RequestID)
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		failRequest(ctx, ev.RequestID)
		return
	}

	headers := make([]*fetch.HeaderEntry, 0, len(resp.Header))
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, &fetch.HeaderEntry{Name: name, Value: v})
		}
	}

	err = fetch.FulfillRequest(ev.RequestID, int64(resp.StatusCode)).
		WithResponseHeaders(headers).
		WithBody(base64.StdEncoding.EncodeToString(payload)).
		Do(ctx)
	if err != nil {
		log.Printf("[SESSION] failed to fulfill %s: %v", ev.Request.URL, err)
	}
}

func failRequest(ctx context.Context, id fetch.RequestID) {
	if err := fetch.FailRequest(id, network.ErrorReasonConnectionFailed).Do(ctx); err != nil {
		log.Printf("[SESSION] failed to abort paused request: %v", err)
	}
}
