package store

import "sync"

// MemoryStore keeps encoded records in a map. Records go through the same
// Encode/Decode path as the durable backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	Saves   int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Load(tourID string) (Progress, bool, error) {
	m.mu.Lock()
	data, ok := m.records[Key(tourID)]
	m.mu.Unlock()
	if !ok {
		return Progress{}, false, nil
	}
	p, err := Decode(data)
	return p, true, err
}

func (m *MemoryStore) Save(tourID string, p Progress) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[Key(tourID)] = data
	m.Saves++
	return nil
}

func (m *MemoryStore) Clear(tourID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, Key(tourID))
	return nil
}

// Put stores raw bytes under a tour id, bypassing encoding.
func (m *MemoryStore) Put(tourID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[Key(tourID)] = raw
}

// SaveCount reports how many successful saves happened.
func (m *MemoryStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}
