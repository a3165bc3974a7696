package preferences

import (
	"context"
	"sync"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record
	creates int
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Record)}
}

func (f *fakeStore) GetOrCreatePreferences(_ context.Context, defaults *Record) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[defaults.UserID]; ok {
		return rec, nil
	}
	f.creates++
	f.records[defaults.UserID] = defaults
	return defaults, nil
}

func (f *fakeStore) UpdatePreferences(_ context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.UserID] = rec
	return f.err
}

func (f *fakeStore) DeletePreferences(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, userID)
	return f.err
}
