// Package memory is the long-term store agents write through memory
// tools: durable facts about targets, credentials, and engagement state
// that survive across conversations. Records are scoped by namespace;
// each user gets one namespace, so nothing leaks between operators.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound indicates no record exists under the requested key.
var ErrNotFound = errors.New("memory record not found")

// DefaultSearchLimit bounds search results when the caller does not ask
// for a specific count.
const DefaultSearchLimit = 5

// Record is one stored fact.
type Record struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Put creates or overwrites the record under (namespace, key).
	Put(ctx context.Context, namespace, key, value string) error

	// Get returns the record under (namespace, key), or ErrNotFound.
	Get(ctx context.Context, namespace, key string) (*Record, error)

	// Delete removes the record under (namespace, key), or ErrNotFound.
	Delete(ctx context.Context, namespace, key string) error

	// Search returns up to limit records matching the query,
	// most recently updated first. An empty query matches everything.
	Search(ctx context.Context, namespace, query string, limit int) ([]*Record, error)

	// List returns all records in a namespace, most recently updated
	// first.
	List(ctx context.Context, namespace string) ([]*Record, error)
}

// Namespace returns the memory namespace for a user. Every conversation
// of the same user shares it.
func Namespace(userID string) string {
	return userID + ":memories"
}

// matches reports whether a record matches a case-insensitive substring
// query over key and value.
func matches(r *Record, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Key), q) ||
		strings.Contains(strings.ToLower(r.Value), q)
}

func sortRecent(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].Key < records[j].Key
	})
}

// InMemoryStore keeps records in process memory. It backs tests and
// runs without a configured memory path.
type InMemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*Record
	now        func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		namespaces: make(map[string]map[string]*Record),
		now:        time.Now,
	}
}

func (s *InMemoryStore) Put(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.namespaces[namespace]
	if !ok {
		records = make(map[string]*Record)
		s.namespaces[namespace] = records
	}
	records[key] = &Record{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, namespace, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.namespaces[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[namespace][key]; !ok {
		return ErrNotFound
	}
	delete(s.namespaces[namespace], key)
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, namespace, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	var found []*Record
	for _, record := range s.namespaces[namespace] {
		if matches(record, query) {
			clone := *record
			found = append(found, &clone)
		}
	}
	s.mu.RUnlock()

	sortRecent(found)
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *InMemoryStore) List(_ context.Context, namespace string) ([]*Record, error) {
	s.mu.RLock()
	records := make([]*Record, 0, len(s.namespaces[namespace]))
	for _, record := range s.namespaces[namespace] {
		clone := *record
		records = append(records, &clone)
	}
	s.mu.RUnlock()

	sortRecent(records)
	return records, nil
}
