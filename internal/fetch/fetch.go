package fetch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"P3Recon/internal/errs"
)

const (
	// Failures are cached briefly so a broken source is retried soon
	// instead of hammered on every candidate.
	defaultFailureTTL = 2 * time.Minute

	maxResponseBytes = 4 << 20
	requestTimeout   = 20 * time.Second
	userAgent        = "P3Recon/1.0"
)

// Result is the outcome of one gated fetch, cached verbatim. Failed results
// carry the reason so cache hits on a broken source still explain themselves.
type Result struct {
	Body          []byte
	StatusCode    int
	FetchedAt     time.Time
	Failed        bool
	FailureReason string
}

// SourcePolicy sets per-source cache freshness and request spacing.
type SourcePolicy struct {
	FreshFor   time.Duration
	Politeness time.Duration
}

// Gate fronts all outbound enrichment requests. It caches responses per
// (source, fingerprint), enforces a politeness delay per source, and
// collapses concurrent fetches of the same fingerprint into one call.
// A Gate is an owned instance, not a singleton; tests inject a fresh one.
type Gate struct {
	client   *http.Client
	policies map[string]SourcePolicy
	failTTL  time.Duration
	cache    *gocache.Cache
	flight   singleflight.Group
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGate wires an HTTP client and per-source policies. A nil client gets a
// sane timeout; unknown source keys fall back to a zero policy (no caching
// beyond the failure window, no spacing).
func NewGate(client *http.Client, policies map[string]SourcePolicy, logger *slog.Logger) *Gate {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if policies == nil {
		policies = map[string]SourcePolicy{}
	}
	return &Gate{
		client:   client,
		policies: policies,
		failTTL:  defaultFailureTTL,
		cache:    gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger:   logger,
		limiters: map[string]*rate.Limiter{},
	}
}

// Fetch returns the response for rawURL, serving from cache when fresh.
// On failure it returns the degraded Result together with a
// SourceUnavailable error; callers decide whether to keep going.
func (g *Gate) Fetch(ctx context.Context, sourceKey, rawURL string) (Result, error) {
	fp, err := fingerprint(sourceKey, rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint %s: %w", sourceKey, err)
	}

	if cached, ok := g.cache.Get(fp); ok {
		return g.finish(sourceKey, cached.(Result), true)
	}

	v, err, _ := g.flight.Do(fp, func() (interface{}, error) {
		// A concurrent caller may have populated the cache while this
		// one waited on the flight group.
		if cached, ok := g.cache.Get(fp); ok {
			return cached.(Result), nil
		}

		if err := g.limiter(sourceKey).Wait(ctx); err != nil {
			return Result{}, err
		}

		res := g.doRequest(ctx, rawURL)
		ttl := g.policy(sourceKey).FreshFor
		if res.Failed {
			ttl = g.failTTL
		}
		if ttl > 0 {
			g.cache.Set(fp, res, ttl)
		}
		return res, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", sourceKey, err)
	}

	return g.finish(sourceKey, v.(Result), false)
}

func (g *Gate) finish(sourceKey string, res Result, cached bool) (Result, error) {
	if res.Failed {
		if g.logger != nil {
			g.logger.Warn("source fetch degraded", "source", sourceKey, "cached", cached, "reason", res.FailureReason)
		}
		return res, errs.SourceUnavailable(sourceKey, errors.New(res.FailureReason))
	}
	return res, nil
}

func (g *Gate) doRequest(ctx context.Context, rawURL string) Result {
	now := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{FetchedAt: now, Failed: true, FailureReason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{FetchedAt: now, Failed: true, FailureReason: fmt.Sprintf("request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{StatusCode: resp.StatusCode, FetchedAt: now, Failed: true, FailureReason: fmt.Sprintf("read body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Body: body, StatusCode: resp.StatusCode, FetchedAt: now, Failed: true, FailureReason: fmt.Sprintf("status %s", resp.Status)}
	}

	return Result{Body: body, StatusCode: resp.StatusCode, FetchedAt: now}
}

func (g *Gate) policy(sourceKey string) SourcePolicy {
	return g.policies[sourceKey]
}

func (g *Gate) limiter(sourceKey string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lim, ok := g.limiters[sourceKey]; ok {
		return lim
	}

	politeness := g.policy(sourceKey).Politeness
	limit := rate.Inf
	if politeness > 0 {
		limit = rate.Every(politeness)
	}
	lim := rate.NewLimiter(limit, 1)
	g.limiters[sourceKey] = lim
	return lim
}

// fingerprint hashes the source key plus the canonicalized URL (query
// parameters sorted) so equivalent requests share one cache entry.
func fingerprint(sourceKey, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	parsed.RawQuery = parsed.Query().Encode()

	h := fnv.New64a()
	h.Write([]byte(sourceKey))
	h.Write([]byte{0})
	h.Write([]byte(parsed.String()))
	return fmt.Sprintf("%s:%x", sourceKey, h.Sum64()), nil
}
