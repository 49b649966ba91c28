package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// MaxRedirects bounds how many redirects HTTPSource follows.
const MaxRedirects = 20

// Source opens a byte stream for a URL. total is -1 when unknown.
type Source interface {
	Open(ctx context.Context, url string) (body io.ReadCloser, total int64, err error)
}

// HTTPSource fetches URLs over HTTP(S).
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPSource builds a source whose dial, TLS, and response-header phases
// are bounded by connectTimeout. The body itself is unbounded.
func NewHTTPSource(userAgent string, connectTimeout time.Duration) *HTTPSource {
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: connectTimeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPSource{
		Client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", MaxRedirects)
				}
				return nil
			},
		},
		UserAgent: userAgent,
	}
}

// Open issues a GET and returns the body of a 2xx response.
func (s *HTTPSource) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if s == nil || s.Client == nil {
		return nil, -1, errors.New("http source not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(url), nil)
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, -1, fmt.Errorf("server returned %s", resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}
