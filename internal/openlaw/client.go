package openlaw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the DRF open API root. HTTPS is mandatory.
const DefaultBaseURL = "https://www.law.go.kr/DRF"

const (
	TargetPrecedent = "prec"
	TargetLaw       = "law"
)

// DefaultUserAgent identifies the client to the upstream service.
const DefaultUserAgent = "SafeOn-RAG/1.0 (+https://safeon.example)"

const maxErrorBody = 800

// Item is one decoded record from a list or detail response. Values are
// strings, json.Number, nested maps or slices.
type Item = map[string]any

// Config holds the transport configuration. OC is the API access key and is
// injected here rather than read from the environment.
type Config struct {
	OC         string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Retries    int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	HTTPClient *http.Client
	// Metrics, when set, counts every attempt.
	Metrics    *Metrics
}

// Client calls the lawSearch.do and lawService.do endpoints.
type Client struct {
	oc         string
	baseURL    string
	userAgent  string
	retries    int
	minBackoff time.Duration
	maxBackoff time.Duration
	http       *http.Client
	metrics    *Metrics
}

// New creates a client. It fails only when the OC key is missing.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.OC) == "" {
		return nil, ErrMissingOC
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		oc:         cfg.OC,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		retries:    cfg.Retries,
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		http:       hc,
		metrics:    cfg.Metrics,
	}, nil
}

// NewLimiter returns a limiter that spaces calls at least delay apart. A
// non-positive delay disables throttling. The limiter is safe to share
// between goroutines.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// SearchRequest describes one lawSearch.do page.
type SearchRequest struct {
	Target  string
	Query   string
	Page    int
	Display int
	// BodySearch searches the full text instead of the case name (search=2).
	BodySearch bool
	// Sort is passed through as-is, e.g. "ddes" for newest decisions first.
	Sort string
}

// Search returns the items of one result page. An empty slice means the
// result set is exhausted.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Item, error) {
	if req.Target == "" {
		req.Target = TargetPrecedent
	}
	params := url.Values{}
	params.Set("target", req.Target)
	params.Set("query", req.Query)
	if req.Display > 0 {
		params.Set("display", strconv.Itoa(req.Display))
	}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.BodySearch {
		params.Set("search", "2")
	}
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}

	body, err := c.get(ctx, "lawSearch.do", req.Target, params, "JSON")
	if err != nil {
		return nil, err
	}
	if data, err := decodeJSON(body); err == nil {
		return listItems(data, req.Target), nil
	}

	body, err = c.get(ctx, "lawSearch.do", req.Target, params, "XML")
	if err != nil {
		return nil, err
	}
	items, err := xmlRows(body, req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s %q page %d: %v", ErrDecode, req.Target, req.Query, req.Page, err)
	}
	return items, nil
}

// Detail fetches one record from lawService.do. For precedents the service
// envelope is unwrapped.
func (c *Client) Detail(ctx context.Context, target, id string) (Item, error) {
	if target == "" {
		target = TargetPrecedent
	}
	params := url.Values{}
	params.Set("target", target)
	params.Set("ID", id)

	body, err := c.get(ctx, "lawService.do", target, params, "JSON")
	if err != nil {
		return nil, err
	}
	if data, err := decodeJSON(body); err == nil {
		if root := detailRoot(data); root != nil {
			return root, nil
		}
	}

	body, err = c.get(ctx, "lawService.do", target, params, "XML")
	if err != nil {
		return nil, err
	}
	root, err := xmlRecord(body)
	if err != nil {
		return nil, fmt.Errorf("%w: detail %s %s: %v", ErrDecode, target, id, err)
	}
	return root, nil
}

func (c *Client) get(ctx context.Context, endpoint, target string, params url.Values, format string) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("OC", c.oc)
	q.Set("type", format)
	u := c.baseURL + "/" + endpoint + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.retry(endpoint, target)
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}
		body, err := c.do(ctx, endpoint, u, target, format)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint, u, target, format string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if format == "JSON" {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/xml, application/xml, */*")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, target, format, 0, time.Since(start))
		return nil, fmt.Errorf("openlaw request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.observe(endpoint, target, format, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			URL:         redactOC(u),
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        bodySnippet(body),
			Target:      target,
		}
	}
	return body, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.minBackoff << (attempt - 1)
	if d > c.maxBackoff || d <= 0 {
		d = c.maxBackoff
	}
	return d
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func redactOC(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("OC") {
		q.Set("OC", "***")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// containerKeys lists the envelope keys seen for each target, in the order
// they are tried.
var containerKeys = map[string][]string{
	TargetPrecedent: {"PrecSearch", "prec", "Search"},
	TargetLaw:       {"LawSearch", "law", "laws", "법령목록", "Search"},
}

func listItems(data any, target string) []Item {
	container := data
	if m, ok := data.(map[string]any); ok {
		container = nil
		for _, k := range containerKeys[target] {
			if v, ok := m[k]; ok {
				container = v
				break
			}
		}
	}

	var arr any
	switch c := container.(type) {
	case map[string]any:
		for _, k := range []string{target, "목록", "list"} {
			if v, ok := c[k]; ok && v != nil {
				arr = v
				break
			}
		}
	case []any:
		arr = c
	}

	switch a := arr.(type) {
	case map[string]any:
		// A single hit is returned as an object instead of a one-element list.
		return []Item{a}
	case []any:
		items := make([]Item, 0, len(a))
		for _, v := range a {
			if m, ok := v.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	}
	return nil
}

func detailRoot(data any) Item {
	root := data
	if m, ok := data.(map[string]any); ok {
		for _, k := range []string{"PrecService", "Prec"} {
			if v, ok := m[k]; ok && v != nil {
				root = v
				break
			}
		}
	}
	if list, ok := root.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		root = list[0]
	}
	m, _ := root.(map[string]any)
	return m
}
