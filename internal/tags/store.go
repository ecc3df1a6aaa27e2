package tags

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/addrlens/internal/types"
)

// Store is the tag store the engine reads from and adapters import into.
type Store interface {
	AllResolved(ctx context.Context) (map[types.Address]types.ResolvedTag, error)
	Records(ctx context.Context, addr types.Address) ([]types.TagRecord, error)
	Import(ctx context.Context, records []types.TagRecord) (int, error)
}

// Notifier broadcasts a payload-free signal whenever the stored tags change.
// The channel is closed when ctx is done.
type Notifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// StoreError wraps a failure talking to a tag store.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("tag store %s failed: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// MemoryStore is an in-process Store and Notifier.
type MemoryStore struct {
	mu       sync.RWMutex
	resolver Resolver
	records  []types.TagRecord
	subs     map[chan struct{}]struct{}
}

// NewMemoryStore creates an empty store resolving with the given resolver.
func NewMemoryStore(resolver Resolver) *MemoryStore {
	return &MemoryStore{
		resolver: resolver,
		subs:     make(map[chan struct{}]struct{}),
	}
}

// AllResolved resolves every stored address.
func (s *MemoryStore) AllResolved(_ context.Context) (map[types.Address]types.ResolvedTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver.ResolveAll(s.records), nil
}

// Records returns the records for addr in import order.
func (s *MemoryStore) Records(_ context.Context, addr types.Address) ([]types.TagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.TagRecord
	for _, rec := range s.records {
		if rec.Address == addr {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Import appends records and notifies subscribers.
func (s *MemoryStore) Import(_ context.Context, records []types.TagRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	s.records = append(s.records, records...)
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending; one reload covers both
		}
	}
	s.mu.Unlock()
	return len(records), nil
}

// Changes subscribes to change notifications until ctx is done.
func (s *MemoryStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}
