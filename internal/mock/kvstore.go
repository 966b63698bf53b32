package mock

import (
	"errors"
	"sync"
)

// KVStore mocks cache.KVStore.
type KVStore struct {
	FailReads   bool
	FailUpdates bool

	m       sync.Mutex
	data    map[string][]byte
	reads   int
	updates int
}

// NewKVStore creates new KVStore instance with given data.
func NewKVStore(data map[string][]byte) *KVStore {
	if data == nil {
		data = make(map[string][]byte)
	}
	return &KVStore{
		data: data,
	}
}

// ReadKey returns data saved for given key.
func (s *KVStore) ReadKey(key []byte) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.reads++
	if s.FailReads {
		return nil, errors.New("mock read failure")
	}

	return s.data[string(key)], nil
}

// UpdateKey stores given data under given key.
func (s *KVStore) UpdateKey(key []byte, data []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.updates++
	if s.FailUpdates {
		return errors.New("mock update failure")
	}
	s.data[string(key)] = data

	return nil
}

// Data returns a copy of the stored data.
func (s *KVStore) Data() map[string][]byte {
	s.m.Lock()
	defer s.m.Unlock()

	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}

	return out
}

// Reads returns the number of ReadKey calls.
func (s *KVStore) Reads() int {
	s.m.Lock()
	defer s.m.Unlock()

	return s.reads
}

// Updates returns the number of UpdateKey calls.
func (s *KVStore) Updates() int {
	s.m.Lock()
	defer s.m.Unlock()

	return s.updates
}
