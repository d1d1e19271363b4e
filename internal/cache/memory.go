package cache

import (
	"sync"
	"time"
)

// Entry 是一条缓存记录：键、完整值以及写入时间。值整体替换，不做局部更新。
type Entry[V any] struct {
	Key      string
	Value    V
	StoredAt time.Time
}

// Stats 汇总命中情况，供 /-/status 诊断输出。
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Stale   int64 `json:"stale"`
}

// Option 调整 Memory 的可选行为。
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 注入时钟，测试可借此跨越 TTL 而无需真实等待。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Memory 是带 TTL 的进程内缓存。读写由互斥锁保护；并发写同一键时后写者覆盖。
type Memory[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[V]
	hits    int64
	misses  int64
	stale   int64
}

// NewMemory 以固定 TTL 构建缓存实例，调用方应在启动阶段创建一次并注入使用方。
func NewMemory[V any](ttl time.Duration, opts ...Option) *Memory[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[V]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]Entry[V]),
	}
}

// TTL 返回条目有效期。
func (m *Memory[V]) TTL() time.Duration {
	return m.ttl
}

// Get 仅返回新鲜条目；条目过期时视为未命中，但不会删除，等待下一次 Put 覆盖。
func (m *Memory[V]) Get(key string) (Entry[V], bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.misses++
		return Entry[V]{}, false
	}
	if !m.fresh(entry, now) {
		m.misses++
		m.stale++
		return Entry[V]{}, false
	}
	m.hits++
	return entry, true
}

// PeekFresh 与 Get 的新鲜度判断一致，但不计入命中统计。
func (m *Memory[V]) PeekFresh(key string) (Entry[V], bool) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || !m.fresh(entry, now) {
		return Entry[V]{}, false
	}
	return entry, true
}

// Put 无条件写入，StoredAt 取当前时钟。
func (m *Memory[V]) Put(key string, value V) Entry[V] {
	entry := Entry[V]{
		Key:      key,
		Value:    value,
		StoredAt: m.now(),
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return entry
}

// Len 返回当前条目数（包含已过期但尚未被覆盖的条目）。
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats 返回统计快照。
func (m *Memory[V]) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Entries: len(m.entries),
		Hits:    m.hits,
		Misses:  m.misses,
		Stale:   m.stale,
	}
}

func (m *Memory[V]) fresh(entry Entry[V], now time.Time) bool {
	if m.ttl <= 0 {
		return false
	}
	return now.Sub(entry.StoredAt) < m.ttl
}
