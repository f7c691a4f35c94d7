// Package fetch is the network tier of the asset resolver.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme 只支持 http(s)
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Fetcher 按地址拉取资源字节
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// StatusError 非 200 响应
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Router 按 host 选择拉取实现，未匹配时走 fallback
type Router struct {
	routes   map[string]Fetcher
	fallback Fetcher
}

func NewRouter(fallback Fetcher) *Router {
	return &Router{routes: make(map[string]Fetcher), fallback: fallback}
}

// Handle 将某个 host（可带端口）的请求交给 f
func (r *Router) Handle(host string, f Fetcher) {
	r.routes[strings.ToLower(host)] = f
}

func (r *Router) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if f, ok := r.routes[strings.ToLower(u.Host)]; ok {
		return f.Fetch(ctx, rawURL)
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no fetcher for host %s", u.Host)
	}
	return r.fallback.Fetch(ctx, rawURL)
}
