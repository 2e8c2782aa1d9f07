package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/resource"
)

// HTTPOptions configures an HTTPProber.
type HTTPOptions struct {
	// Client defaults to an http.Client with Timeout.
	Client  *http.Client
	Timeout time.Duration
	// Retries is the number of extra attempts for transient failures
	// (transport errors, 408, 429 and 5xx answers).
	Retries    int
	RetryDelay time.Duration
	UserAgent  string
	Logger     logging.Logger
}

// HTTPProber checks candidates with HEAD requests against the portal.
//
// A 2xx answer means the candidate exists, 404 and 410 mean it does not and
// the next candidate is tried, other 4xx answers are treated as absent too.
// A server that refuses HEAD (405, 501) is asked again with GET. Transient
// failures are retried up to Retries times, RetryDelay apart, after which
// the probe fails. Concurrent probes of the same URL share one request.
type HTTPProber struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
	userAgent  string
	logger     logging.Logger
	inflight   singleflight.Group
}

// NewHTTPProber creates an HTTP prober.
func NewHTTPProber(opts HTTPOptions) *HTTPProber {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "plonepack"
	}
	return &HTTPProber{
		client:     client,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		userAgent:  ua,
		logger:     logger.WithComponent("http-prober"),
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, target string, extensions []string, debug bool) (*resource.Location, error) {
	for _, candidate := range Candidates(target, extensions) {
		if debug {
			p.logger.Info(ctx, "Probing candidate", "url", candidate)
		}
		exists, err := p.exists(ctx, candidate)
		if err != nil {
			return nil, perrors.NewProbeFailure(candidate, err)
		}
		if exists {
			u, q := resource.Split(candidate)
			return &resource.Location{URL: u, Query: q}, nil
		}
	}
	return nil, perrors.NotFound(target)
}

func (p *HTTPProber) exists(ctx context.Context, candidate string) (bool, error) {
	u, _ := resource.Split(candidate)
	v, err, _ := p.inflight.Do(u, func() (interface{}, error) {
		return p.check(ctx, u)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (p *HTTPProber) check(ctx context.Context, u string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.logger.Debug(ctx, "Retrying probe", "url", u, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, p.retryDelay); err != nil {
				return false, err
			}
		}

		status, err := p.do(ctx, http.MethodHead, u)
		if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
			status, err = p.do(ctx, http.MethodGet, u)
		}
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return true, nil
		case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
			lastErr = &transientError{status: status}
		default:
			return false, nil
		}
	}
	return false, lastErr
}

func (p *HTTPProber) do(ctx context.Context, method, u string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
