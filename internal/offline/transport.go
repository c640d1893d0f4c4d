// Package offline is an http.RoundTripper that keeps the soundboard usable
// without a network: media is served cache-first, job status network-first,
// and anything unreachable falls back to a fixed offline response.
package offline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/soundboard/internal/logging"
)

type Policy int

const (
	NetworkOnly Policy = iota
	CacheFirst
	NetworkFirst
)

// HeaderCache marks responses served from the cache ("HIT") or the offline
// fallback ("OFFLINE").
const HeaderCache = "X-Soundboard-Cache"

var DefaultStaticAssets = []string{"/", "/index.html", "/manifest.json", "/offline.html"}

const defaultFallback = "<!doctype html><title>Offline</title><p>You are offline.</p>"

type Transport struct {
	base     http.RoundTripper
	cache    Cache
	static   []string
	fallback []byte
	log      logging.Logger
	onChange func(online bool)

	mu     sync.Mutex
	online bool
}

type Option func(*Transport)

func WithBase(rt http.RoundTripper) Option { return func(t *Transport) { t.base = rt } }

func WithStaticAssets(paths ...string) Option { return func(t *Transport) { t.static = paths } }

func WithFallback(body []byte) Option { return func(t *Transport) { t.fallback = body } }

func WithLogger(l logging.Logger) Option { return func(t *Transport) { t.log = l } }

// OnStatusChange registers fn for online/offline transitions. The transport
// starts out assuming it is online.
func OnStatusChange(fn func(online bool)) Option { return func(t *Transport) { t.onChange = fn } }

func NewTransport(cache Cache, opts ...Option) *Transport {
	t := &Transport{
		base:     http.DefaultTransport,
		cache:    cache,
		static:   DefaultStaticAssets,
		fallback: []byte(defaultFallback),
		log:      logging.Discard(),
		online:   true,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Online is the last observed network state.
func (t *Transport) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Classify picks the policy for a request path.
func (t *Transport) Classify(path string) Policy {
	switch {
	case strings.HasPrefix(path, "/download/"),
		strings.HasPrefix(path, "/thumbnail/"),
		strings.HasPrefix(path, "/screenshot/"),
		slices.Contains(t.static, path):
		return CacheFirst
	case strings.HasPrefix(path, "/status/"), path == "/extract":
		return NetworkFirst
	}
	return NetworkOnly
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.network(req)
	}

	ctx := req.Context()
	key := req.URL.String()

	switch t.Classify(req.URL.Path) {
	case CacheFirst:
		if resp := t.lookup(ctx, req, key); resp != nil {
			return resp, nil
		}
		resp, err := t.network(req)
		if err != nil {
			return t.unreachable(req, err)
		}
		return t.store(ctx, key, resp)

	case NetworkFirst:
		resp, err := t.network(req)
		if err == nil {
			return t.store(ctx, key, resp)
		}
		if ctx.Err() == nil {
			if cached := t.lookup(ctx, req, key); cached != nil {
				return cached, nil
			}
		}
		return t.unreachable(req, err)

	default:
		resp, err := t.network(req)
		if err != nil {
			return t.unreachable(req, err)
		}
		return resp, nil
	}
}

func (t *Transport) network(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil && req.Context().Err() == nil {
		t.setOnline(false)
		t.log.Debug(req.Context(), "network request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}
	if err == nil {
		t.setOnline(true)
	}
	return resp, err
}

func (t *Transport) setOnline(v bool) {
	t.mu.Lock()
	changed := t.online != v
	t.online = v
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(v)
	}
}

func (t *Transport) lookup(ctx context.Context, req *http.Request, key string) *http.Response {
	e, err := t.cache.Get(ctx, key)
	if err != nil {
		t.log.Warn(ctx, "offline cache read failed", "key", key, "error", err)
		return nil
	}
	if e == nil {
		return nil
	}
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(HeaderCache, "HIT")
	return newResponse(req, e.Status, h, e.Body)
}

// store caches 200 responses. The body is buffered and replaced.
func (t *Transport) store(ctx context.Context, key string, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if err := t.cache.Set(ctx, key, &Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}); err != nil {
		t.log.Warn(ctx, "offline cache write failed", "key", key, "error", err)
	}
	return resp, nil
}

// unreachable serves the offline fallback unless the caller gave up.
func (t *Transport) unreachable(req *http.Request, err error) (*http.Response, error) {
	if req.Context().Err() != nil {
		return nil, err
	}
	return t.offline(req), nil
}

func (t *Transport) offline(req *http.Request) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set(HeaderCache, "OFFLINE")
	return newResponse(req, http.StatusServiceUnavailable, h, t.fallback)
}

func newResponse(req *http.Request, status int, h http.Header, body []byte) *http.Response {
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
