package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	logx "schedulebot/pkg/logx"
)

const (
	DefaultBaseURL   = "https://schedule.nspu.ru"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	timetablePath = "/group_shedule_1s.php"
	groupsPath    = "/group_index.php"
	weeksPath     = "/group_shedule_weeks.php"
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	// RatePerSec limits outgoing requests. Zero disables the limit.
	RatePerSec float64
	HTTPClient *http.Client
	Log        logx.Logger
}

// Client fetches and parses upstream pages.
type Client struct {
	base    string
	ua      string
	timeout time.Duration
	retries int
	delay   time.Duration
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(opts Options) *Client {
	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		ua:      opts.UserAgent,
		timeout: opts.Timeout,
		retries: opts.Retries,
		delay:   opts.RetryDelay,
		http:    opts.HTTPClient,
		log:     opts.Log,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.retries <= 0 {
		c.retries = 3
	}
	if c.delay <= 0 {
		c.delay = time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.log = c.log.Component("source")
	return c
}

// BaseURL returns the site root without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) url(path string, q url.Values) string {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// document GETs rawURL with retries and parses the body, decoding legacy
// charsets declared by the page.
func (c *Client) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(
		func() error {
			d, err := c.fetchOnce(ctx, rawURL)
			if err != nil {
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retries)),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Temporary()
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("retrying upstream request", logx.String("url", rawURL), logx.Int("attempt", int(n)+1), logx.Err(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", rawURL, err)
	}
	c.log.Debug("upstream page loaded", logx.String("url", rawURL), logx.Duration("took", time.Since(start)))
	return doc, nil
}
