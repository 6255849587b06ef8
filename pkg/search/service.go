package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/japaniel/kotoba/pkg/cache"
	"github.com/japaniel/kotoba/pkg/dictionary"
)

// Store is the read side of the dictionary used by the service.
type Store interface {
	FuriganaSource
	Entries() []dictionary.Entry
}

// Response is the result of one search.
type Response struct {
	TotalResults int             `json:"totalResults"`
	Results      []GroupedResult `json:"results"`
}

// Outcome labels a finished search for metrics.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// Metrics receives one observation per search.
//
// Implementations must be safe for concurrent use.
type Metrics interface {
	RecordSearch(ctx context.Context, mode string, outcome Outcome, results int, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordSearch(context.Context, string, Outcome, int, time.Duration) {}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// ResponseCache stores computed responses by query and mode.
type ResponseCache = cache.Cache[cache.RequestKey, *Response]

// Service answers queries against a loaded dictionary. It is safe for
// concurrent use; concurrent misses on the same key share one computation.
type Service struct {
	log     *slog.Logger
	store   Store
	tags    TagResolver
	cache   ResponseCache
	metrics Metrics
	flight  singleflight.Group
}

// NewService creates a Service. A nil cache disables caching.
func NewService(logger *slog.Logger, store Store, resolver TagResolver, c ResponseCache, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.Noop[cache.RequestKey, *Response]{}
	}
	s := &Service{
		log:     logger.With("component", "search"),
		store:   store,
		tags:    resolver,
		cache:   c,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search parses rawQuery, matches and groups entries, and caches the
// response under (rawQuery, mode). Cached responses are shared between
// callers and must not be modified.
func (s *Service) Search(ctx context.Context, rawQuery, mode string) (*Response, error) {
	start := time.Now()

	if rawQuery == "" {
		s.metrics.RecordSearch(ctx, mode, OutcomeInvalid, 0, time.Since(start))
		return nil, missingQuery()
	}

	key := cache.Key(rawQuery, mode)
	if resp, ok := s.cache.Get(key); ok {
		s.metrics.RecordSearch(ctx, mode, OutcomeHit, resp.TotalResults, time.Since(start))
		return resp, nil
	}

	v, err, _ := s.flight.Do(key.Unique(), func() (any, error) {
		q, err := ParseQuery(rawQuery, mode)
		if err != nil {
			return nil, err
		}
		resp, err := s.run(q)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, resp)
		return resp, nil
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.metrics.RecordSearch(ctx, mode, OutcomeInvalid, 0, time.Since(start))
			return nil, err
		}
		s.log.ErrorContext(ctx, "search failed", "query", rawQuery, "mode", mode, "error", err)
		s.metrics.RecordSearch(ctx, mode, OutcomeError, 0, time.Since(start))
		return nil, err
	}

	resp := v.(*Response)
	s.log.DebugContext(ctx, "search computed",
		"query", rawQuery,
		"mode", mode,
		"results", resp.TotalResults,
		"duration", time.Since(start),
	)
	s.metrics.RecordSearch(ctx, mode, OutcomeMiss, resp.TotalResults, time.Since(start))
	return resp, nil
}

// CacheStats reports activity of the response cache.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *Service) run(q ParsedQuery) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	matched := Match(s.store.Entries(), s.tags, q)
	results := Group(matched, s.tags, s.store)
	return &Response{TotalResults: len(results), Results: results}, nil
}
