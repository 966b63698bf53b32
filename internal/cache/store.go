package cache

import (
	"encoding/json"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// KVStore persists serialized snapshots.
type KVStore interface {
	ReadKey(key []byte) ([]byte, error)
	UpdateKey(key []byte, data []byte) error
}

// snapshotKey is the KVStore key holding the full store state.
var snapshotKey = []byte("state")

// Store is a size-bounded lru key/value store that survives process restarts.
//
// Every mutation rewrites the full state through the KVStore. The store is an
// optimization, never a source of truth: unreadable or unparsable persisted
// state degrades to a cold start and failed writes only cost durability.
//
// Entries carry an explicit cost; the summed cost of all entries never
// exceeds maxCost. Eviction is least-recently-used.
type Store struct {
	mu      sync.Mutex
	lru     *lru.Cache
	costs   map[string]int
	cost    int
	maxCost int
	kv      KVStore
	l       logrus.FieldLogger
}

type snapshot struct {
	// Entries are ordered least to most recently used.
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
	Cost  int    `json:"cost"`
}

// NewStore creates a Store bounded by maxCost, reloading any state previously
// persisted in kv.
func NewStore(kv KVStore, maxCost int, l logrus.FieldLogger) (*Store, error) {
	if maxCost <= 0 {
		return nil, errors.New("cache max cost must be greater than 0")
	}

	s := Store{
		costs:   make(map[string]int),
		maxCost: maxCost,
		kv:      kv,
		l:       l,
	}

	// Cost is at least 1 per entry, so maxCost also bounds the entry count.
	c, err := lru.NewWithEvict(maxCost, func(key, _ interface{}) {
		k := key.(string)
		s.cost -= s.costs[k]
		delete(s.costs, k)
	})
	if err != nil {
		return nil, err
	}
	s.lru = c

	s.load()

	return &s, nil
}

// Get returns the value stored under key and marks it as recently used.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}

	return v.([]byte), true
}

// Contains checks for key without changing its recency.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lru.Contains(key)
}

// Set stores value under key with given cost and persists the new state.
// Cost values below 1 count as 1.
func (s *Store) Set(key string, value []byte, cost int) {
	if cost < 1 {
		cost = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.costs[key]; ok {
		s.cost -= prev
	}
	s.lru.Add(key, value)
	s.costs[key] = cost
	s.cost += cost

	for s.cost > s.maxCost && s.lru.Len() > 1 {
		s.lru.RemoveOldest()
	}

	s.save()
}

// Delete removes key and persists the new state.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lru.Remove(key) {
		return
	}

	s.save()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lru.Len()
}

// Cost returns the summed cost of all stored entries.
func (s *Store) Cost() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cost
}

// load seeds the store from persisted state. Any failure is a cold start.
func (s *Store) load() {
	data, err := s.kv.ReadKey(snapshotKey)
	if err != nil {
		s.l.Warnf("cache store: reading persisted state: %v", err)
		return
	}
	if data == nil {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.l.Warnf("cache store: unparsable persisted state, starting cold: %v", err)
		return
	}

	for _, e := range snap.Entries {
		cost := e.Cost
		if cost < 1 {
			cost = 1
		}
		s.lru.Add(e.Key, e.Value)
		s.costs[e.Key] = cost
		s.cost += cost
	}
	for s.cost > s.maxCost && s.lru.Len() > 1 {
		s.lru.RemoveOldest()
	}
}

// save persists the full state. Failures are logged and swallowed: a failed
// disk write must not fail the mutation that triggered it.
// Callers must hold s.mu.
func (s *Store) save() {
	keys := s.lru.Keys()
	snap := snapshot{Entries: make([]snapshotEntry, 0, len(keys))}
	for _, k := range keys {
		key := k.(string)
		v, ok := s.lru.Peek(key)
		if !ok {
			continue
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:   key,
			Value: v.([]byte),
			Cost:  s.costs[key],
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.l.Warnf("cache store: serializing state: %v", err)
		return
	}
	if err := s.kv.UpdateKey(snapshotKey, data); err != nil {
		s.l.Warnf("cache store: persisting state: %v", err)
	}
}
