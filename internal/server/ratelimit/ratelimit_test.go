package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	// Should allow requests up to limit
	for i := 0; i < 10; i++ {
		allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", rateInfo.Limit)
		}
		if rateInfo.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, rateInfo.Remaining)
		}
	}

	// 11th request should be denied
	allowed, rateInfo := limiter.Allow(clientID, endpoint, method)
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if rateInfo.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", rateInfo.Remaining)
	}
	if rateInfo.RetryAfter <= 0 {
		t.Error("Expected retry after to be positive")
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Whitelisted IP should always be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 for whitelisted, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"192.168.1.1": true},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Blacklisted IP should always be denied
	allowed, _ := limiter.Allow("192.168.1.1", "/test", "GET")
	if allowed {
		t.Error("Expected blacklisted request to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	config := &Config{
		Enabled: false,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// When disabled, all requests should be allowed
	for i := 0; i < 100; i++ {
		allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
		if rateInfo.Limit != 0 {
			t.Errorf("Expected limit 0 when disabled, got %d", rateInfo.Limit)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/annotate", Method: "POST", Limit: 5, Window: time.Hour, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Test endpoint-specific limit (burst allows 5 immediately)
	for i := 0; i < 5; i++ {
		allowed, rateInfo := limiter.Allow(clientID, "/annotate", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if rateInfo.Limit != 5 {
			t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
		}
	}

	// 6th request should be denied (limit reached)
	allowed, rateInfo := limiter.Allow(clientID, "/annotate", "POST")
	if allowed {
		t.Error("Expected 6th request to be denied")
	}
	if rateInfo.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", rateInfo.Limit)
	}

	// Different endpoint should use default limit
	allowed, rateInfo = limiter.Allow(clientID, "/other", "GET")
	if !allowed {
		t.Error("Expected different endpoint to be allowed")
	}
	if rateInfo.Limit != 600 {
		t.Errorf("Expected default limit 600, got %d", rateInfo.Limit)
	}
}

func TestLimiter_PrefixRuleSharesBucket(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/tags/", Method: "GET", Limit: 2, Window: time.Hour, Burst: 2},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	for _, path := range []string{"/tags/0xaaa", "/tags/0xbbb"} {
		if allowed, _ := limiter.Allow("127.0.0.1", path, "GET"); !allowed {
			t.Errorf("Expected %s to be allowed", path)
		}
	}
	if allowed, _ := limiter.Allow("127.0.0.1", "/tags/0xccc", "GET"); allowed {
		t.Error("Expected lookups of different addresses to share one bucket")
	}
	if limiter.Len() != 1 {
		t.Errorf("Expected 1 bucket, got %d", limiter.Len())
	}
}

func TestLoadConfig_FromRate(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "")

	config := LoadConfig(2, 7)
	if !config.Enabled {
		t.Fatal("Expected limiter to be enabled")
	}
	if config.DefaultLimit != 120 {
		t.Errorf("Expected 120 requests per minute, got %d", config.DefaultLimit)
	}
	if config.DefaultBurst != 7 {
		t.Errorf("Expected burst 7, got %d", config.DefaultBurst)
	}

	if LoadConfig(0, 0).Enabled {
		t.Error("Expected zero rate to disable limiting")
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	if c := MatchEndpoint("/health", "GET", configs); c == nil || c.Limit != 0 {
		t.Error("Expected health check to be unlimited")
	}
	if c := MatchEndpoint("/annotate", "POST", configs); c == nil || c.Burst != 5 {
		t.Error("Expected annotate to have its own limit")
	}
	if c := MatchEndpoint("/tags", "GET", configs); c != nil {
		t.Error("Expected the tag list to fall back to the default limit")
	}
	if c := MatchEndpoint("/tags/0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "GET", configs); c == nil || c.Path != "/tags/" || c.Burst != 20 {
		t.Errorf("Expected address lookups to use the /tags/ rule, got %+v", c)
	}
	if c := MatchEndpoint("/tags/import", "POST", configs); c == nil || c.Burst != 2 {
		t.Error("Expected the exact import rule to win over the /tags/ prefix")
	}
	if c := MatchEndpoint("/tags/0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "DELETE", configs); c != nil {
		t.Error("Expected the prefix rule to apply to GET only")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"
	endpoint := "/test"
	method := "GET"

	var wg sync.WaitGroup
	allowedCount := 0
	var mu sync.Mutex

	// Make 200 concurrent requests (should only allow 100)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.Allow(clientID, endpoint, method)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Should have allowed exactly 100 requests
	if allowedCount != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTTL:       time.Hour,
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	// Create buckets for multiple clients
	for i := 0; i < 10; i++ {
		clientID := fmt.Sprintf("127.0.0.%d", i+1)
		allowed, _ := limiter.Allow(clientID, "/test", "GET")
		if !allowed {
			t.Errorf("Expected request from %s to be allowed", clientID)
		}
	}
	if limiter.Len() != 10 {
		t.Fatalf("Expected 10 buckets, got %d", limiter.Len())
	}

	// Nothing is idle yet
	limiter.cleanupBuckets(time.Now())
	if limiter.Len() != 10 {
		t.Errorf("Expected recent buckets to survive cleanup, got %d", limiter.Len())
	}

	// Two hours later every bucket is idle
	limiter.cleanupBuckets(time.Now().Add(2 * time.Hour))
	if limiter.Len() != 0 {
		t.Errorf("Expected idle buckets to be removed, got %d", limiter.Len())
	}

	// A cleaned-up client starts with a fresh bucket
	allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed || rateInfo.Remaining != 9 {
		t.Errorf("Expected fresh bucket with 9 remaining, got allowed=%v remaining=%d", allowed, rateInfo.Remaining)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Second, CleanupInterval: time.Minute})
	limiter.Stop()
	limiter.Stop()
}

func TestLimiter_Burst(t *testing.T) {
	config := &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/burst", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		},
	}
	limiter := NewLimiter(config)
	defer limiter.Stop()

	clientID := "127.0.0.1"

	// Should allow burst of 5 requests immediately
	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(clientID, "/burst", "POST")
		if !allowed {
			t.Errorf("Expected burst request %d to be allowed", i+1)
		}
	}

	// 6th request should be denied (burst exhausted, no refill yet)
	allowed, _ := limiter.Allow(clientID, "/burst", "POST")
	if allowed {
		t.Error("Expected request after burst to be denied")
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	if limiter == nil {
		t.Error("Expected limiter to be created with nil config")
	}

	// Should use defaults
	allowed, rateInfo := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed {
		t.Error("Expected request to be allowed with default config")
	}
	if rateInfo.Limit != 600 {
		t.Errorf("Expected default limit 600, got %d", rateInfo.Limit)
	}
}
