package session

import (
	"context"
	"sync"
	"time"
)

// Store persists session payloads keyed by session id.  Destroy of an
// unknown id is not an error.
type Store interface {
	Get(ctx context.Context, sid string) (*Data, error)
	Save(ctx context.Context, sid string, data *Data) error
	Destroy(ctx context.Context, sid string) error
}

// DefaultTTL matches the host application's default session lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// MemoryStore keeps sessions in process memory.  Suitable for single-node
// deployments and tests; sessions do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	codec   Codec
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	payload []byte
	expire  time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		codec:   JSONCodec{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sid string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sid]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(entry.expire) {
		delete(s.entries, sid)
		return nil, ErrNotFound
	}
	return s.codec.Decode(entry.payload)
}

func (s *MemoryStore) Save(_ context.Context, sid string, data *Data) error {
	payload, err := s.codec.Encode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sid] = memoryEntry{payload: payload, expire: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sid)
	return nil
}

// Len reports the number of stored sessions, expired ones included until
// their next Get.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
