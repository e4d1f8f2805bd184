package client

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/goliatone/go-errors"
)

// Storage is the durable token surface. Implementations must tolerate
// concurrent calls.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is a map backed Storage, mostly for tests
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStorage persists values as a JSON map on disk. Writes go through
// a temp file rename so a crash never leaves a half written store.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}

	return values[key], nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	values[key] = value

	return s.save(values)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := values[key]; !ok {
		return nil
	}

	delete(values, key)

	return s.save(values)
}

func (s *FileStorage) load() (map[string]string, error) {
	values := map[string]string{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read client storage")
	}

	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode client storage")
	}

	return values, nil
}

func (s *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode client storage")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write client storage")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to replace client storage")
	}

	return nil
}
