// Package provider implements the client for the upstream K-line data
// service, including its pseudo-JSON payload codec and the year-chunked
// daily fetch protocol.
package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kfilter/internal/domain"
)

const (
	// DefaultBaseURL is the upstream K-line endpoint.
	DefaultBaseURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

	// DefaultTimeout bounds a single chunk request.
	DefaultTimeout = 20 * time.Second

	// DefaultRateLimit is the request budget per second against the upstream.
	DefaultRateLimit = 5

	// chunkRowLimit is the per-request row cap. A calendar year has at most
	// ~250 trading days, so one year-chunk always fits.
	chunkRowLimit = 640
)

// TransportError wraps an HTTP-level failure reaching the upstream provider.
type TransportError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider request failed: %v", e.Err)
	}
	return fmt.Sprintf("provider returned status %d for %s", e.StatusCode, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client fetches K-line data from the upstream provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the upstream endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a provider client with default endpoint, timeout, and
// rate limit.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		log:        slog.Default().With("component", "provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchChunk issues one request for a symbol/period window and decodes the
// response. start and end are "YYYY-MM-DD".
func (c *Client) fetchChunk(ctx context.Context, symbol string, period domain.Period, start, end string, adjust domain.Adjust) ([]domain.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	varName := fmt.Sprintf("kline_%s%s", period, adjust)
	param := strings.Join([]string{
		symbol,
		string(period),
		start,
		end,
		fmt.Sprintf("%d", chunkRowLimit),
		string(adjust),
	}, ",")

	q := url.Values{}
	q.Set("_var", varName)
	q.Set("param", param)
	q.Set("r", fmt.Sprintf("0.%08d", rand.Intn(100000000))) // cache buster

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.log.Debug("provider request", "symbol", symbol, "period", period, "start", start, "end", end)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	return parsePayload(body, symbol, period, adjust)
}

// FetchDaily fetches daily bars for a symbol over [start, end]. The upstream
// caps response sizes, so the range is requested in calendar-year chunks,
// each spanning Y-01-01 through (Y+1)-12-31. The overlap into the following
// year is intentional: it tolerates the provider's inclusive/exclusive range
// ambiguity at year boundaries, and the dedupe pass resolves it.
//
// A failing chunk is logged and skipped; the fetch fails outright only when
// every chunk fails or the context is cancelled. No usable data yields an
// empty slice and a nil error.
func (c *Client) FetchDaily(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error) {
	startT, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", start, err)
	}
	endT, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, fmt.Errorf("parsing end date %q: %w", end, err)
	}

	lastYear := endT.Year()
	if nowYear := time.Now().Year(); lastYear > nowYear {
		lastYear = nowYear
	}

	var (
		all      []domain.Bar
		chunks   int
		failures int
		lastErr  error
	)
	for year := startT.Year(); year <= lastYear; year++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		chunks++

		chunkStart := fmt.Sprintf("%d-01-01", year)
		chunkEnd := fmt.Sprintf("%d-12-31", year+1)

		bars, err := c.fetchChunk(ctx, symbol, domain.PeriodDay, chunkStart, chunkEnd, adjust)
		if err != nil {
			failures++
			lastErr = err
			c.log.Warn("year chunk failed", "symbol", symbol, "year", year, "err", err)
			continue
		}
		all = append(all, bars...)
	}

	if chunks > 0 && failures == chunks {
		return nil, fmt.Errorf("all %d year chunks failed for %s: %w", chunks, symbol, lastErr)
	}

	merged := DedupeFilter(all, start, end)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
	return merged, nil
}

// FetchWeekly fetches weekly bars for [start, end] in a single request.
func (c *Client) FetchWeekly(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error) {
	return c.fetchRange(ctx, symbol, domain.PeriodWeek, start, end, adjust)
}

// FetchMonthly fetches monthly bars for [start, end] in a single request.
func (c *Client) FetchMonthly(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error) {
	return c.fetchRange(ctx, symbol, domain.PeriodMonth, start, end, adjust)
}

func (c *Client) fetchRange(ctx context.Context, symbol string, period domain.Period, start, end string, adjust domain.Adjust) ([]domain.Bar, error) {
	bars, err := c.fetchChunk(ctx, symbol, period, start, end, adjust)
	if err != nil {
		return nil, err
	}
	merged := DedupeFilter(bars, start, end)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
	return merged, nil
}
