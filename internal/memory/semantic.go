package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/redcellhq/redcell/internal/observability"
)

// SemanticStore layers a vector index over a base store. Writes go to
// both; Search ranks by embedding similarity and falls back to the base
// store's substring search when the index cannot answer.
type SemanticStore struct {
	base   Store
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger *observability.Logger

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// SemanticConfig assembles a SemanticStore.
type SemanticConfig struct {
	// Store is the authoritative record store.
	Store Store

	// Path persists the index on disk; empty keeps it in memory.
	Path string

	// Embed computes embeddings for values and queries.
	Embed chromem.EmbeddingFunc
}

// NewSemanticStore creates the layered store.
func NewSemanticStore(cfg SemanticConfig, logger *observability.Logger) (*SemanticStore, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("semantic store requires a base store")
	}
	if cfg.Embed == nil {
		return nil, fmt.Errorf("semantic store requires an embedding function")
	}

	var db *chromem.DB
	if cfg.Path != "" {
		persistent, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
		db = persistent
	} else {
		db = chromem.NewDB()
	}

	return &SemanticStore{
		base:        cfg.Store,
		db:          db,
		embed:       cfg.Embed,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *SemanticStore) collection(namespace string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[namespace]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(namespace, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", namespace, err)
	}
	s.collections[namespace] = col
	return col, nil
}

func (s *SemanticStore) Put(ctx context.Context, namespace, key, value string) error {
	if err := s.base.Put(ctx, namespace, key, value); err != nil {
		return err
	}

	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	// Key is part of the indexed text so searches for "credentials"
	// match a record keyed ssh_credentials with a terse value.
	doc := chromem.Document{
		ID:       key,
		Content:  key + ": " + value,
		Metadata: map[string]string{"key": key},
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to index memory: %w", err)
	}
	return nil
}

func (s *SemanticStore) Get(ctx context.Context, namespace, key string) (*Record, error) {
	return s.base.Get(ctx, namespace, key)
}

func (s *SemanticStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.base.Delete(ctx, namespace, key); err != nil {
		return err
	}

	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, key); err != nil {
		// The record is gone from the base store; a stale index entry
		// only costs a wasted Get on later searches.
		if s.logger != nil {
			s.logger.Warn(ctx, "failed to remove memory from index", "key", key, "error", err)
		}
	}
	return nil
}

func (s *SemanticStore) List(ctx context.Context, namespace string) ([]*Record, error) {
	return s.base.List(ctx, namespace)
}

func (s *SemanticStore) Search(ctx context.Context, namespace, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if query == "" {
		records, err := s.base.List(ctx, namespace)
		if err != nil {
			return nil, err
		}
		if len(records) > limit {
			records = records[:limit]
		}
		return records, nil
	}

	records, err := s.searchIndex(ctx, namespace, query, limit)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, "semantic search failed, using substring search",
				"namespace", namespace, "error", err)
		}
		return s.base.Search(ctx, namespace, query, limit)
	}
	return records, nil
}

func (s *SemanticStore) searchIndex(ctx context.Context, namespace, query string, limit int) ([]*Record, error) {
	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(results))
	for _, result := range results {
		record, err := s.base.Get(ctx, namespace, result.ID)
		if err != nil {
			// Index can lag the base store after a failed delete.
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
