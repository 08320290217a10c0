package evalcache

import (
	"sync"

	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// memoryTier is a bounded FIFO map of normalized FEN to evaluation. When
// full it drops a block of the oldest insertions rather than evicting one
// entry per write.
type memoryTier struct {
	mu        sync.Mutex
	entries   map[string]*uci.Evaluation
	order     []string
	maxSize   int
	trimBlock int
}

func newMemoryTier(maxSize, trimBlock int) *memoryTier {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if trimBlock <= 0 || trimBlock > maxSize {
		trimBlock = maxSize / 10
		if trimBlock == 0 {
			trimBlock = 1
		}
	}
	return &memoryTier{
		entries:   make(map[string]*uci.Evaluation, maxSize),
		order:     make([]string, 0, maxSize),
		maxSize:   maxSize,
		trimBlock: trimBlock,
	}
}

func (m *memoryTier) get(key string) (*uci.Evaluation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eval, ok := m.entries[key]
	return eval, ok
}

// set inserts or overwrites. Overwrites keep the key's original queue
// position; insertion order, not recency, drives eviction.
func (m *memoryTier) set(key string, eval *uci.Evaluation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		m.entries[key] = eval
		return
	}
	if len(m.order) >= m.maxSize {
		m.trimLocked()
	}
	m.entries[key] = eval
	m.order = append(m.order, key)
}

func (m *memoryTier) trimLocked() {
	n := m.trimBlock
	if n > len(m.order) {
		n = len(m.order)
	}
	for _, key := range m.order[:n] {
		delete(m.entries, key)
	}
	m.order = append(m.order[:0], m.order[n:]...)
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
