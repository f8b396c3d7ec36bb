package contentstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and STORE_DRIVER=memory.
// FailPut, when set, makes every Put fail with that error.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	FailPut error
}

const memoryPrefix = "mem://content/"

var _ Store = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{objects: make(map[string][]byte)} }

func (m *Memory) Put(ctx context.Context, folder, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	fail := m.FailPut
	m.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := objectKey(folder, name)
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return memoryPrefix + key, nil
}

func (m *Memory) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, memoryPrefix)
	if !ok {
		return ErrForeignURL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether url is currently stored.
func (m *Memory) Has(url string) bool {
	key, ok := strings.CutPrefix(url, memoryPrefix)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.objects[key]
	return found
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
