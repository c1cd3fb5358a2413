package db

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryProvider is an in-memory DatabaseProvider used by tests and
// ephemeral nodes.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

func (p *MemoryProvider) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (p *MemoryProvider) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (p *MemoryProvider) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, string(key))
	return nil
}

func (p *MemoryProvider) Has(key []byte) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.data[string(key)]
	return ok, nil
}

func (p *MemoryProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	p.mu.RLock()
	keys := make([]string, 0, len(p.data))
	for k := range p.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	p.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		value, err := p.Get([]byte(k))
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		if !callback([]byte(k), value) {
			break
		}
	}
	return nil
}

func (p *MemoryProvider) Close() error {
	return nil
}
