package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/httpx"
)

type upstream struct {
	prefix string
	proxy  *httputil.ReverseProxy
}

// Proxy forwards requests to the upstream whose path prefix is the longest match.
type Proxy struct {
	upstreams []upstream
	logger    *zap.Logger
}

// NewProxy builds a Proxy for routes. transport may be nil to use an otelhttp-instrumented
// default transport.
func NewProxy(routes []config.Route, transport http.RoundTripper, logger *zap.Logger) (*Proxy, error) {
	if len(routes) == 0 {
		return nil, errors.New("gateway: no upstream routes configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	p := &Proxy{logger: logger}
	for _, rt := range routes {
		target, err := url.Parse(rt.Target)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("gateway: invalid upstream %q for %q", rt.Target, rt.Prefix)
		}
		prefix := "/" + strings.Trim(rt.Prefix, "/")
		rp := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			Transport: transport,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				logger.Error("upstream request failed", zap.String("upstream", target.Host), zap.String("path", r.URL.Path), zap.Error(err))
				httpx.Fail(w, http.StatusBadGateway, "Upstream service unavailable")
			},
		}
		p.upstreams = append(p.upstreams, upstream{prefix: prefix, proxy: rp})
	}
	sort.SliceStable(p.upstreams, func(i, j int) bool {
		return len(p.upstreams[i].prefix) > len(p.upstreams[j].prefix)
	})
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, u := range p.upstreams {
		if matchesPrefix(r.URL.Path, u.prefix) {
			u.proxy.ServeHTTP(w, r)
			return
		}
	}
	httpx.Fail(w, http.StatusNotFound, "No route for "+r.URL.Path)
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
