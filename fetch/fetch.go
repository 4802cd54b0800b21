// Package fetch loads wiki pages through one long-lived HTTP session and waits
// for the page content to be present before handing the document on.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Config contains fetcher configuration
type Config struct {
	Timeout       time.Duration // Per-request timeout
	UserAgent     string
	ReadySelector string        // Selector that marks the page content as present
	GracePeriod   time.Duration // Maximum time to wait for ReadySelector
	PollInterval  time.Duration // Delay between re-polls while waiting
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ReadySelector: ".mw-parser-output",
		GracePeriod:   2 * time.Second,
		PollInterval:  500 * time.Millisecond,
	}
}

// Document is a loaded page
type Document struct {
	URL        *url.URL
	StatusCode int
	Doc        *goquery.Document
	Ready      bool // ReadySelector was present when the page was returned
}

// Resolve resolves href against the document URL
func (d *Document) Resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	resolved := d.URL.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

// Session is a single browsing session. It keeps cookies and connections
// between loads and tracks the current page, so it must be used by one
// goroutine at a time.
type Session struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
	current    *Document
}

// NewSession opens a browsing session
func NewSession(config Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}

	return &Session{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// Current returns the page loaded last, or nil
func (s *Session) Current() *Document {
	return s.current
}

// Close releases idle connections held by the session
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	s.current = nil
	return nil
}

// Load navigates to targetURL and waits until the content selector is present
// or the grace period elapses. Retrying failed loads is the caller's job.
func (s *Session) Load(ctx context.Context, targetURL string) (*Document, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)}
	}

	doc, err := s.get(ctx, parsedURL)
	if err != nil {
		return nil, err
	}

	if s.config.ReadySelector != "" && !doc.Ready {
		doc, err = s.waitReady(ctx, parsedURL, doc)
		if err != nil {
			return nil, err
		}
	}

	s.current = doc
	return doc, nil
}

// waitReady re-polls the page until the ready selector shows up or the
// grace period is over, returning the last document seen
func (s *Session) waitReady(ctx context.Context, pageURL *url.URL, doc *Document) (*Document, error) {
	deadline := time.Now().Add(s.config.GracePeriod)
	for time.Now().Before(deadline) {
		timer := time.NewTimer(s.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &FetchError{URL: pageURL.String(), Err: ctx.Err()}
		case <-timer.C:
		}

		next, err := s.get(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		doc = next
		if doc.Ready {
			return doc, nil
		}
	}

	s.logger.Warn("content selector not found within grace period",
		zap.String("url", pageURL.String()),
		zap.String("selector", s.config.ReadySelector),
		zap.Duration("grace_period", s.config.GracePeriod),
	)
	return doc, nil
}

func (s *Session) get(ctx context.Context, pageURL *url.URL) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL.String(), Err: fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: pageURL.String(), StatusCode: resp.StatusCode}
	}

	parsed, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	// Redirects move the page; links must resolve against where we landed
	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	ready := s.config.ReadySelector == "" || parsed.Find(s.config.ReadySelector).Length() > 0
	return &Document{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Doc:        parsed,
		Ready:      ready,
	}, nil
}
