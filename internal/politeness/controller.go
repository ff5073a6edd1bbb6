// Package politeness enforces per-host crawl etiquette: robots.txt, rate
// limits, and conditional request reuse.
package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/farolnews/farol-ingest/internal/metrics"
)

// Config controls Controller behavior.
type Config struct {
	UserAgent       string
	DefaultRPS      float64
	Burst           int
	RobotsTTL       time.Duration
	RespectRobots   bool
	PerHostParallel int
}

// Controller owns per-host pacing state. Its token state is the only resource
// shared across concurrent fetch tasks for the same host; the critical
// sections are registry lookups only and are never held across a network call.
type Controller struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	hosts map[string]*hostState

	robotsMu sync.Mutex
	robots   map[string]*robotsEntry

	validMu    sync.RWMutex
	validators map[string]validator
}

type hostState struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

type robotsEntry struct {
	data    *robotstxt.RobotsData
	fetched time.Time
}

type validator struct {
	etag         string
	lastModified string
}

// New builds a Controller.
func New(cfg Config, logger *zap.Logger) *Controller {
	if cfg.DefaultRPS <= 0 {
		cfg.DefaultRPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RobotsTTL <= 0 {
		cfg.RobotsTTL = time.Hour
	}
	if cfg.PerHostParallel <= 0 {
		cfg.PerHostParallel = 2
	}
	return &Controller{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:     logger,
		hosts:      make(map[string]*hostState),
		robots:     make(map[string]*robotsEntry),
		validators: make(map[string]validator),
	}
}

// Permits reports whether robots.txt allows fetching the URL. A fetch failure
// of robots.txt itself allows access, matching common crawler behavior.
func (c *Controller) Permits(ctx context.Context, rawURL string) bool {
	if !c.cfg.RespectRobots {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data, err := c.loadRobots(ctx, parsed)
	if err != nil {
		c.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(c.cfg.UserAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

// Acquire blocks until the per-host concurrency slot and rate budget allow
// one more request. The returned release function frees the slot and must be
// called exactly once.
func (c *Controller) Acquire(ctx context.Context, rawURL string) (func(), error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())
	state := c.hostFor(host)

	select {
	case state.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("host slot wait canceled: %w", ctx.Err())
	}

	start := time.Now()
	if err := state.limiter.Wait(ctx); err != nil {
		<-state.slots
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-state.slots
	}, nil
}

func (c *Controller) hostFor(host string) *hostState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.hosts[host]
	if !ok {
		state = &hostState{
			limiter: rate.NewLimiter(rate.Limit(c.cfg.DefaultRPS), c.cfg.Burst),
			slots:   make(chan struct{}, c.cfg.PerHostParallel),
		}
		c.hosts[host] = state
	}
	return state
}

// ConditionalHeaders returns stored ETag/Last-Modified validators for reuse
// on the next request to the same URL.
func (c *Controller) ConditionalHeaders(sourceID, rawURL string) http.Header {
	c.validMu.RLock()
	v, ok := c.validators[validatorKey(sourceID, rawURL)]
	c.validMu.RUnlock()
	header := http.Header{}
	if !ok {
		return header
	}
	if v.etag != "" {
		header.Set("If-None-Match", v.etag)
	}
	if v.lastModified != "" {
		header.Set("If-Modified-Since", v.lastModified)
	}
	return header
}

// RecordResponse stores fresh validators from a response.
func (c *Controller) RecordResponse(sourceID, rawURL string, header http.Header) {
	etag := header.Get("ETag")
	lastModified := header.Get("Last-Modified")
	if etag == "" && lastModified == "" {
		return
	}
	c.validMu.Lock()
	c.validators[validatorKey(sourceID, rawURL)] = validator{
		etag:         etag,
		lastModified: lastModified,
	}
	c.validMu.Unlock()
}

func validatorKey(sourceID, rawURL string) string {
	return sourceID + "\x00" + rawURL
}

func (c *Controller) loadRobots(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)

	c.robotsMu.Lock()
	entry, ok := c.robots[hostKey]
	c.robotsMu.Unlock()
	if ok && time.Since(entry.fetched) < c.cfg.RobotsTTL {
		return entry.data, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}

	c.robotsMu.Lock()
	c.robots[hostKey] = &robotsEntry{data: data, fetched: time.Now()}
	c.robotsMu.Unlock()

	c.applyCrawlDelay(hostKey, data)
	return data, nil
}

// applyCrawlDelay lowers a host's rate when robots.txt declares a
// Crawl-Delay larger than the configured interval. The directive is a floor,
// never an increase.
func (c *Controller) applyCrawlDelay(hostKey string, data *robotstxt.RobotsData) {
	group := data.FindGroup(c.cfg.UserAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return
	}
	delayRPS := 1 / group.CrawlDelay.Seconds()
	if delayRPS >= c.cfg.DefaultRPS {
		return
	}
	host := hostKey
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	state := c.hostFor(host)
	state.limiter.SetLimit(rate.Limit(delayRPS))
	c.logger.Info("crawl-delay applied",
		zap.String("host", host),
		zap.Duration("delay", group.CrawlDelay))
}
