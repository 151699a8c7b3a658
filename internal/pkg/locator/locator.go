// Package locator resolves a logical service name to an ordered list of base
// URLs and sends requests through them until one answers.
//
// The first candidate is normally a registry-resolved symbolic host, the
// second a statically configured host:port. Any HTTP response, including a
// non-2xx one, counts as an answer. Only transport failures (refused
// connection, DNS failure, timeout) move on to the next candidate.
//
//	loc := locator.New(locator.NewHTTPClient(10*time.Second, 30*time.Second),
//		locator.Service{Name: "catalog", Candidates: []string{"http://catalog", "http://10.0.0.4:3002"}},
//	)
//	resp, err := loc.Do(ctx, "catalog", func(ctx context.Context, base string) (*http.Request, error) {
//		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/item/42", nil)
//	})
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnavailable is returned when every candidate failed at the transport level.
var ErrUnavailable = errors.New("locator: service unreachable")

// ErrUnknownService is returned for names that were never configured.
var ErrUnknownService = errors.New("locator: unknown service")

// UnavailableError names the logical service that could not be reached.
type UnavailableError struct {
	Service string
	Tried   []string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("locator: %s unreachable via %s: %v", e.Service, strings.Join(e.Tried, ", "), e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// Service is one logical name and its candidate base URLs, in priority order.
type Service struct {
	Name       string
	Candidates []string
}

// RequestFunc builds a request against a candidate base URL. It is called once
// per attempt because a request body can only be consumed once.
type RequestFunc func(ctx context.Context, baseURL string) (*http.Request, error)

type Locator struct {
	client   *http.Client
	services map[string][]string
}

func New(client *http.Client, services ...Service) *Locator {
	l := &Locator{
		client:   client,
		services: make(map[string][]string, len(services)),
	}
	for _, s := range services {
		var cands []string
		for _, c := range s.Candidates {
			c = strings.TrimRight(strings.TrimSpace(c), "/")
			if c != "" {
				cands = append(cands, c)
			}
		}
		l.services[s.Name] = cands
	}
	return l
}

// Resolve returns the candidates for name. The slice is a copy; it is read on
// every call instead of being cached by callers.
func (l *Locator) Resolve(name string) ([]string, error) {
	cands, ok := l.services[name]
	if !ok || len(cands) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	out := make([]string, len(cands))
	copy(out, cands)
	return out, nil
}

// Do sends the request built by build to each candidate in order and returns
// the first response. The caller owns resp.Body.
func (l *Locator) Do(ctx context.Context, name string, build RequestFunc) (*http.Response, error) {
	cands, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, base := range cands {
		req, err := build(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("locator: build request for %s: %w", name, err)
		}

		resp, err := l.client.Do(req)
		if err == nil {
			return resp, nil
		}
		// The caller gave up; trying the next candidate would not help.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		slog.WarnContext(ctx, "service candidate failed, trying next",
			"service", name,
			"candidate", base,
			"error", err,
		)
	}

	return nil, &UnavailableError{Service: name, Tried: cands, Err: lastErr}
}

// NewHTTPClient returns a client whose dial is bounded by connectTimeout and
// whose wait for response headers is bounded by responseTimeout. Requests are
// traced through otelhttp.
func NewHTTPClient(connectTimeout, responseTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: responseTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Transport: otelhttp.NewTransport(transport)}
}
