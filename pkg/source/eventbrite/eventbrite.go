// Package eventbrite implements a source over the Eventbrite events-search API.
package eventbrite

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/locale/pkg/source"
)

// DefaultBaseURL is the public v3 API root.
const DefaultBaseURL = "https://www.eventbriteapi.com/v3"

// Register this provider under name "eventbrite".
func init() { _ = source.Register("eventbrite", Factory) }

// Config controls the Eventbrite client.
//
// Timeout bounds each HTTP request; zero leaves requests unbounded apart from ctx.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Policy  source.FailurePolicy
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// Client fetches events from the events-search endpoint.
type Client struct {
	base   *url.URL
	token  string
	policy source.FailurePolicy
	http   *http.Client
}

// Factory constructs an Eventbrite source. Config keys:
// - token (string, required)
// - base_url (string)
// - timeout (time.Duration)
// - failure_policy (source.FailurePolicy)
// - http_client (*http.Client)
func Factory(ctx context.Context, cfg map[string]any) (source.Source, error) {
	var c Config
	if v, ok := cfg["token"].(string); ok {
		c.Token = v
	}
	if v, ok := cfg["base_url"].(string); ok {
		c.BaseURL = v
	}
	if v, ok := cfg["timeout"].(time.Duration); ok {
		c.Timeout = v
	}
	if v, ok := cfg["failure_policy"].(source.FailurePolicy); ok {
		c.Policy = v
	}
	if v, ok := cfg["http_client"].(*http.Client); ok {
		c.HTTPClient = v
	}
	return New(c)
}

// New returns a Client for cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("eventbrite: token is empty")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("eventbrite: invalid base_url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{base: u, token: cfg.Token, policy: cfg.Policy, http: hc}, nil
}

// System implements source.Source.
func (c *Client) System() source.SystemID { return source.Eventbrite }

// Fetch implements source.Source.
func (c *Client) Fetch(ctx context.Context, since int64, opts ...source.StreamOption) *source.Stream {
	opts = append([]source.StreamOption{source.WithFailurePolicy(c.policy)}, opts...)
	return source.NewStream(ctx, source.Eventbrite.String(), since, c.FetchPage, opts...)
}

// FetchPage requests a single page of events with identifiers greater than since.
func (c *Client) FetchPage(ctx context.Context, since int64, page int) (source.Page, error) {
	u := c.base.ResolveReference(&url.URL{Path: "events/search/"})
	q := u.Query()
	q.Set("token", c.token)
	q.Set("since_id", strconv.FormatInt(since, 10))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return source.Page{}, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return source.Page{}, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return source.Page{}, &source.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return source.Page{}, err
	}
	return decodePage(raw)
}

type searchResponse struct {
	Pagination struct {
		PageCount int `json:"page_count"`
	} `json:"pagination"`
	Events []apiEvent `json:"events"`
}

type apiEvent struct {
	ID   flexID `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	URL string `json:"url"`
}

// flexID accepts identifiers encoded as JSON strings or numbers.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("event id %s: %w", b, err)
	}
	*f = flexID(n)
	return nil
}

func decodePage(raw []byte) (source.Page, error) {
	if err := validate(raw); err != nil {
		return source.Page{}, &source.PayloadError{Err: err}
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return source.Page{}, &source.PayloadError{Err: err}
	}
	out := source.Page{PageCount: resp.Pagination.PageCount, Events: make([]source.Event, 0, len(resp.Events))}
	for _, e := range resp.Events {
		start, err := parseUTC(e.Start.UTC)
		if err != nil {
			return source.Page{}, &source.PayloadError{Err: fmt.Errorf("event %d start: %w", e.ID, err)}
		}
		end, err := parseUTC(e.End.UTC)
		if err != nil {
			return source.Page{}, &source.PayloadError{Err: fmt.Errorf("event %d end: %w", e.ID, err)}
		}
		out.Events = append(out.Events, source.Event{
			ID:    int64(e.ID),
			Name:  e.Name.Text,
			Start: start,
			End:   end,
			URL:   e.URL,
		})
	}
	return out, nil
}

func parseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
