package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store. It keeps a bounded
// ring of records and evicts the oldest when capacity is reached.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*MatchRecord
	byID    map[string]*MatchRecord

	maxRecords int
	enabled    bool
	ttl        time.Duration

	done chan struct{}
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxRecords, ttlSeconds int, enabled bool) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = 200
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = DefaultTTL
	}

	s := &MemoryStore{
		records:    make([]*MatchRecord, 0, maxRecords),
		byID:       make(map[string]*MatchRecord),
		maxRecords: maxRecords,
		enabled:    enabled,
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go s.cleanupExpired()
	return s
}

// IsEnabled returns whether the store is enabled.
func (m *MemoryStore) IsEnabled() bool { return m.enabled }

// CheckConnection verifies the store is usable.
func (m *MemoryStore) CheckConnection(_ context.Context) error {
	if !m.enabled {
		return ErrStoreDisabled
	}
	return nil
}

// StoreRecord stores a record, evicting the oldest when full.
func (m *MemoryStore) StoreRecord(_ context.Context, record *MatchRecord) error {
	if !m.enabled {
		return ErrStoreDisabled
	}
	if record == nil || record.ID == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[record.ID]; !exists && len(m.records) >= m.maxRecords {
		oldest := m.records[0]
		m.records = m.records[1:]
		delete(m.byID, oldest.ID)
	}
	m.records = append(m.records, record)
	m.byID[record.ID] = record
	return nil
}

// GetRecord retrieves a record by ID.
func (m *MemoryStore) GetRecord(_ context.Context, recordID string) (*MatchRecord, error) {
	if !m.enabled {
		return nil, ErrStoreDisabled
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// ListRecords lists records newest first, applying filters and the limit.
func (m *MemoryStore) ListRecords(_ context.Context, opts ListOptions) ([]*MatchRecord, error) {
	if !m.enabled {
		return nil, ErrStoreDisabled
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*MatchRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.records[i]
		if opts.RoomID != "" && r.RoomID != opts.RoomID {
			continue
		}
		if opts.Outcome != "" && r.Outcome != opts.Outcome {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Close stops the cleanup goroutine.
func (m *MemoryStore) Close() error {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return nil
}

// cleanupExpired drops records older than the TTL once a minute.
func (m *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.ttl)
			m.mu.Lock()
			kept := m.records[:0]
			for _, r := range m.records {
				if r.Timestamp.After(cutoff) {
					kept = append(kept, r)
				} else {
					delete(m.byID, r.ID)
				}
			}
			m.records = kept
			m.mu.Unlock()
		}
	}
}
