package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/cache"
)

// PublishedMessage is a message sent through MockCache.Publish.
type PublishedMessage struct {
	Channel string
	Payload string
}

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data      map[string]string
	published []PublishedMessage
	mu        sync.RWMutex

	// Err, when set, is returned by every operation.
	Err error
}

var _ cache.Cache = (*MockCache)(nil)

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return "", m.Err
	}
	val, exists := m.data[key]
	if !exists {
		return "", cache.ErrMiss
	}
	return val, nil
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	// Note: expiration is ignored in mock (no TTL implementation)
	m.data[key] = toString(value)
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Incr increments a key's value
func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}

	var intVal int64
	if val, exists := m.data[key]; exists {
		if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
			intVal = 0
		}
	}

	intVal++
	m.data[key] = fmt.Sprintf("%d", intVal)
	return intVal, nil
}

// Publish records the message
func (m *MockCache) Publish(ctx context.Context, channel string, message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.published = append(m.published, PublishedMessage{Channel: channel, Payload: toString(message)})
	return nil
}

// Published returns the messages published so far
func (m *MockCache) Published() []PublishedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// Keys returns the number of stored keys
func (m *MockCache) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Health returns Err
func (m *MockCache) Health(ctx context.Context) error {
	return m.Err
}

// Close is a no-op for mock
func (m *MockCache) Close() error {
	return nil
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	m.published = nil
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
