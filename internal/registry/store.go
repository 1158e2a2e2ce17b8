package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ArtifactStore reads trained model documents from a backing blob store.
// Keys are relative paths of the form <model_type>/model_<stamp>.json.
type ArtifactStore interface {
	// List returns all artifact keys under prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
	// Read returns the raw payload for a key.
	Read(ctx context.Context, key string) ([]byte, error)
}

// FSStore serves artifacts from a local directory tree. It is the default
// backend for single-node deployments and local development.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir. The directory must exist.
func NewFSStore(dir string) (*FSStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact dir %s is not a directory", dir)
	}
	return &FSStore{root: dir}, nil
}

// List walks root/prefix and returns keys for every .json file found.
func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, prefix+"/"+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Read loads a single artifact payload.
func (s *FSStore) Read(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
}

// MemoryStore holds artifact payloads in a map. Used in tests and by the
// local artifact seeder.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a payload under key.
func (s *MemoryStore) Put(key string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = payload
}

// List returns keys under prefix, sorted ascending.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix+"/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Read returns the payload for key.
func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", key)
	}
	return payload, nil
}
