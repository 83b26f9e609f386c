package wftest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// MemoryStore is an ArtifactStore keeping objects in memory.
type MemoryStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Fail    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Objects: map[string][]byte{}}
}

func (s *MemoryStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return "", errors.New("store unavailable")
	}
	s.Objects[objectName] = append([]byte(nil), data...)
	return fmt.Sprintf("mem://%s", objectName), nil
}

func (s *MemoryStore) Get(objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Objects[objectName]
	return data, ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Objects)
}

// FixedCode returns a CodeGenerator-compatible func that always yields code.
func FixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) { return code, nil }
}
