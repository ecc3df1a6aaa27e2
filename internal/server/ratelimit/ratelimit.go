// Package ratelimit provides per-client rate limiting on top of token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients, one bucket per client,
// endpoint and method.
type Limiter struct {
	buckets       map[string]*bucket
	mu            sync.Mutex
	config        *Config
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

type bucket struct {
	limiter    *rate.Limiter
	burst      int
	lastAccess time.Time
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    600,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
	}

	// Start cleanup goroutine if enabled
	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	// requests under one prefix rule share a bucket
	bucketPath := endpoint
	endpointConfig := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if endpointConfig != nil {
		bucketPath = endpointConfig.Path
	} else {
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultBurst,
		}
	}

	// Unlimited endpoint (e.g., health check)
	if endpointConfig.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	now := time.Now()
	b := l.getBucket(clientID+":"+bucketPath+":"+method, *endpointConfig, now)

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     endpointConfig.Limit,
		Remaining: max(0, int(tokens)),
		ResetTime: now,
	}
	if missing := float64(b.burst) - tokens; missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second)))
	}
	if !allowed {
		// time until one token is back
		info.RetryAfter = time.Duration((1 - tokens) / float64(b.limiter.Limit()) * float64(time.Second))
		if info.RetryAfter <= 0 {
			info.RetryAfter = time.Millisecond
		}
	}
	return allowed, info
}

// getBucket gets or creates the bucket for key and records the access.
func (l *Limiter) getBucket(key string, cfg EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		window := cfg.Window
		if window <= 0 {
			window = time.Minute
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Limit
		}
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(cfg.Limit)/window.Seconds()), burst),
			burst:   burst,
		}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// cleanup removes old unused buckets to prevent memory leaks.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(time.Now())
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets that have been idle longer than IdleTTL.
func (l *Limiter) cleanupBuckets(now time.Time) {
	cutoff := now.Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
