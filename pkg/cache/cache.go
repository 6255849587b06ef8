// Package cache memoises search responses keyed by raw query and mode.
package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Policy names an eviction strategy.
type Policy string

const (
	// PolicyClear empties the whole cache when inserting a new key into a
	// full cache.
	PolicyClear Policy = "clear"
	// PolicyLRU evicts the least recently used key.
	PolicyLRU Policy = "lru"
	// PolicyNone disables caching.
	PolicyNone Policy = "none"
)

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 1000

var ErrUnknownPolicy = errors.New("cache: unknown policy")

// Cache is a concurrency-safe response cache.
//
// Get never fails; a miss returns the zero value and false.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Len() int
	Stats() Stats
}

// Stats counts cache activity since creation.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// Config selects a policy and capacity. MaxEntries <= 0 is unbounded for
// PolicyClear; PolicyLRU falls back to DefaultMaxEntries.
type Config struct {
	Policy     Policy
	MaxEntries int
}

// RequestKey identifies a cached search. Its String form is
// rawQuery + "_" + mode, which is ambiguous when either part contains an
// underscore ("#n_en"+"any" and "#n"+"en_any"), so caches compare the
// fields instead.
type RequestKey struct {
	Query string
	Mode  string
}

// Key derives the cache key for a query. An empty mode is keyed as
// "default".
func Key(rawQuery, mode string) RequestKey {
	if mode == "" {
		mode = "default"
	}
	return RequestKey{Query: rawQuery, Mode: mode}
}

func (k RequestKey) String() string {
	return k.Query + "_" + k.Mode
}

// Unique returns a string form that differs for every distinct key.
func (k RequestKey) Unique() string {
	return strconv.Itoa(len(k.Query)) + ":" + k.String()
}

// New builds a cache for cfg. An empty policy selects PolicyClear.
func New[K comparable, V any](cfg Config) (Cache[K, V], error) {
	switch Policy(strings.ToLower(string(cfg.Policy))) {
	case "", PolicyClear:
		return NewClearOnFull[K, V](cfg.MaxEntries), nil
	case PolicyLRU:
		size := cfg.MaxEntries
		if size <= 0 {
			size = DefaultMaxEntries
		}
		return NewLRU[K, V](size)
	case PolicyNone:
		return Noop[K, V]{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Policy)
	}
}
