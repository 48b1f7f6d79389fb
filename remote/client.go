// Package remote wraps the authenticated HTTP contract to the remote media
// store: multipart upload returning a resource descriptor, delete, and a
// host-restricted download passthrough. Transient failures are retried here
// with jittered exponential backoff; only terminal outcomes surface.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"

	"gallery/errs"
)

// Descriptor is what the remote store tells us about an uploaded object.
type Descriptor struct {
	RemoteID     uint64
	Title        string
	URLFull      string
	URLThumbnail string
	URLMedium    string
}

// Client is a process-wide service object constructed at startup and shut
// down at exit. All calls share one pooled keep-alive transport - bulk
// operations issue dozens of calls in quick succession.
type Client struct {
	http *http.Client

	mu       sync.RWMutex
	apiURL   string
	username string
	password string
	host     string

	// Retry policy, overridable in tests
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func New(apiURL, username, password string) (*Client, error) {
	c := &Client{
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Attempts:   3,
		BackoffMin: time.Second,
		BackoffMax: 8 * time.Second,
	}
	if err := c.SetEndpoint(apiURL, username, password); err != nil {
		return nil, err
	}
	return c, nil
}

// SetEndpoint re-points the client, e.g. after an admin settings change.
func (c *Client) SetEndpoint(apiURL, username, password string) error {
	host := ""
	if apiURL != "" {
		parsed, err := url.Parse(apiURL)
		if err != nil || parsed.Hostname() == "" {
			return errs.Validation("remote API URL %q is not valid", apiURL)
		}
		host = strings.ToLower(parsed.Hostname())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiURL = strings.TrimRight(apiURL, "/")
	c.username = username
	c.password = password
	c.host = host
	return nil
}

func (c *Client) endpoint() (apiURL, username, password, host string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiURL, c.username, c.password, c.host
}

// Host returns the hostname proxy fetches are restricted to.
func (c *Client) Host() string {
	_, _, _, host := c.endpoint()
	return host
}

func (c *Client) Configured() bool {
	apiURL, _, _, _ := c.endpoint()
	return apiURL != ""
}

// Close releases pooled connections. Part of graceful shutdown.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Upload sends the prepared binary as a multipart body and returns the
// remote store's descriptor for it.
func (c *Client) Upload(ctx context.Context, data []byte, filename, mimeType string) (*Descriptor, error) {
	apiURL, username, password, _ := c.endpoint()
	if apiURL == "" {
		return nil, errs.RemoteRejected("remote media store is not configured")
	}
	body, err := c.do(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err = part.Write(data); err != nil {
			return nil, err
		}
		if err = w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &buf)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(username, password)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Content-Disposition", `attachment; filename=`+strconv.Quote(filename))
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseDescriptor(body, filename)
}

// Delete removes a remote object. An object that is already gone counts as
// success - retrying a delete must not turn into a hard failure.
func (c *Client) Delete(ctx context.Context, remoteID uint64) error {
	apiURL, username, password, _ := c.endpoint()
	if apiURL == "" {
		return errs.RemoteRejected("remote media store is not configured")
	}
	body, err := c.do(ctx, func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%d?force=true", apiURL, remoteID)
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(username, password)
		return req, nil
	})
	if err != nil {
		if isAlreadyGone(err) {
			log.Debug().Uint64("remote_id", remoteID).Msg("Remote object already gone")
			return nil
		}
		return err
	}
	body.Close()
	return nil
}

// Fetch re-reads the descriptor for an existing remote object. Repair path
// for stale cached delivery URLs; not a hot path.
func (c *Client) Fetch(ctx context.Context, remoteID uint64) (*Descriptor, error) {
	apiURL, username, password, _ := c.endpoint()
	if apiURL == "" {
		return nil, errs.RemoteRejected("remote media store is not configured")
	}
	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%d", apiURL, remoteID), nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(username, password)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseDescriptor(body, "")
}

// do runs one remote call with the retry policy: transient statuses and
// connection errors back off and retry up to Attempts; everything else
// propagates immediately as RemoteRejected.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (io.ReadCloser, error) {
	boff := &backoff.Backoff{
		Min:    c.BackoffMin,
		Max:    c.BackoffMax,
		Factor: 2,
		Jitter: true,
	}
	var lastErr error
	for attempt := 0; attempt < c.Attempts; attempt++ {
		if attempt > 0 {
			delay := boff.Duration()
			if retryAfter := retryAfterHint(lastErr); retryAfter > delay {
				delay = retryAfter
			}
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(errs.KindRemoteUnavailable, ctx.Err(), "remote call canceled")
			case <-time.After(delay):
			}
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.Wrap(errs.KindRemoteUnavailable, ctx.Err(), "remote call canceled")
			}
			// Connection resets and timeouts are transient
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("Remote call failed, will retry")
			continue
		}
		if resp.StatusCode < 300 {
			return resp.Body, nil
		}
		snippet := readSnippet(resp.Body)
		resp.Body.Close()
		if !isTransientStatus(resp.StatusCode) {
			return nil, &statusError{
				kind:   errs.KindRemoteRejected,
				status: resp.StatusCode,
				msg:    fmt.Sprintf("remote store rejected the request (%d): %s", resp.StatusCode, snippet),
			}
		}
		lastErr = &statusError{
			kind:       errs.KindRemoteUnavailable,
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			msg:        fmt.Sprintf("remote store returned %d", resp.StatusCode),
		}
		log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Remote store busy, will retry")
	}
	return nil, errs.Wrap(errs.KindRemoteUnavailable, lastErr, "remote store unavailable after retries")
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

type statusError struct {
	kind       errs.Kind
	status     int
	retryAfter time.Duration
	msg        string
}

func (e *statusError) Error() string {
	return e.msg
}

func (e *statusError) Is(target error) bool {
	t, ok := target.(*errs.Error)
	return ok && t.Kind == e.kind
}

// As lets errors.As extract the taxonomy error from a statusError.
func (e *statusError) As(target interface{}) bool {
	if t, ok := target.(**errs.Error); ok {
		*t = errs.New(e.kind, "%s", e.msg)
		return true
	}
	return false
}

func isAlreadyGone(err error) bool {
	var se *statusError
	if ok := asStatusError(err, &se); !ok {
		return false
	}
	return se.status == http.StatusNotFound || se.status == http.StatusGone
}

func asStatusError(err error, target **statusError) bool {
	for err != nil {
		if se, ok := err.(*statusError); ok {
			*target = se
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func retryAfterHint(err error) time.Duration {
	var se *statusError
	if asStatusError(err, &se) {
		return se.retryAfter
	}
	return 0
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return string(bytes.TrimSpace(b))
}

// mediaResponse mirrors the remote store's JSON shape. Anything beyond the
// id and URLs is ignored.
type mediaResponse struct {
	ID    uint64 `json:"id"`
	Title struct {
		Raw      string `json:"raw"`
		Rendered string `json:"rendered"`
	} `json:"title"`
	SourceURL    string `json:"source_url"`
	MediaDetails struct {
		Sizes map[string]struct {
			SourceURL string `json:"source_url"`
		} `json:"sizes"`
	} `json:"media_details"`
}

func parseDescriptor(body io.Reader, fallbackTitle string) (*Descriptor, error) {
	var mr mediaResponse
	if err := json.NewDecoder(body).Decode(&mr); err != nil {
		return nil, errs.Wrap(errs.KindRemoteRejected, err, "remote store returned a malformed response")
	}
	if mr.ID == 0 || mr.SourceURL == "" {
		return nil, errs.RemoteRejected("remote store response is missing id or source_url")
	}
	d := &Descriptor{
		RemoteID:     mr.ID,
		Title:        mr.Title.Raw,
		URLFull:      mr.SourceURL,
		URLThumbnail: mr.SourceURL,
		URLMedium:    mr.SourceURL,
	}
	if d.Title == "" {
		d.Title = mr.Title.Rendered
	}
	if d.Title == "" {
		d.Title = fallbackTitle
	}
	if s, ok := mr.MediaDetails.Sizes["thumbnail"]; ok && s.SourceURL != "" {
		d.URLThumbnail = s.SourceURL
	}
	if s, ok := mr.MediaDetails.Sizes["medium"]; ok && s.SourceURL != "" {
		d.URLMedium = s.SourceURL
	}
	return d, nil
}

// Private/reserved hosts that must never be proxied.
var blockedHosts = map[string]bool{
	"localhost":                true,
	"127.0.0.1":                true,
	"0.0.0.0":                  true,
	"::1":                      true,
	"metadata.google.internal": true,
}

// FetchForProxy streams a delivery URL through us (CORS workaround for the
// web client). Only URLs on the configured remote store's host are allowed,
// so this cannot be used as an open proxy.
func (c *Client) FetchForProxy(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	if rawURL == "" || len(rawURL) > 2048 {
		return nil, "", errs.Validation("url missing or too long")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", errs.Validation("url is not a valid http(s) url")
	}
	host := strings.ToLower(parsed.Hostname())
	_, _, _, allowed := c.endpoint()
	if allowed == "" || host == "" || blockedHosts[host] || isPrivateHost(host) {
		return nil, "", errs.Forbidden("url not allowed for proxy")
	}
	if host != allowed && !strings.HasSuffix(host, "."+allowed) {
		return nil, "", errs.Forbidden("url not allowed for proxy")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindRemoteUnavailable, err, "proxy fetch failed")
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", errs.RemoteRejected("proxy fetch returned %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}

func isPrivateHost(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
