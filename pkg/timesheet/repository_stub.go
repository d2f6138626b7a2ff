package timesheet

import (
	"context"
	"encoding/json"
	"sync"
)

// StateRepositoryStub keeps the collection serialized in memory, so tests see exactly
// what a real store would read back.
type StateRepositoryStub struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
	loadErr error
}

func NewStateRepositoryStub() *StateRepositoryStub {
	return &StateRepositoryStub{}
}

func (r *StateRepositoryStub) Load(ctx context.Context) (Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadErr != nil {
		return NewCollection(), r.loadErr
	}
	collection := NewCollection()
	if r.data == nil {
		return collection, nil
	}
	err := json.Unmarshal(r.data, &collection)
	return collection, err
}

func (r *StateRepositoryStub) Save(ctx context.Context, collection Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return err
	}
	r.data = data
	r.saves++
	return nil
}

func (r *StateRepositoryStub) SetSaveError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *StateRepositoryStub) SetLoadError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErr = err
}

func (r *StateRepositoryStub) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *StateRepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
	r.saves = 0
	r.saveErr = nil
	r.loadErr = nil
}
