package secretstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores secrets in a JSON file. It exists so protection still works on
// hosts without a usable keyring daemon; the file lives inside the encrypted
// data directory with owner-only permissions.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a Store backed by a JSON file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		data = map[string]string{}
	}
	data[name] = value
	return f.save(data)
}

func (f *File) Get(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", ErrNotFound
	}
	value, ok := data[name]
	if !ok || value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *File) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return nil
	}
	if _, ok := data[name]; !ok {
		return nil
	}
	delete(data, name)
	return f.save(data)
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create secret store directory: %w", err)
	}
	return os.WriteFile(f.path, raw, 0o600)
}
