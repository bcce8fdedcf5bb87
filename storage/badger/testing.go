package badger

import "github.com/suchitkumarchennuri/logiq/storage"

// NewMemoryStore creates an in-memory backend with a log store on top of
// it, for tests. The caller must close the store, then the backend.
func NewMemoryStore() (storage.LogStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}

	store, err := NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	return store, backend, nil
}
