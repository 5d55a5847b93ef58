package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/annexlab/cleanroom/internal/embeddings"
)

const (
	collectionName = "knowledge"
	exportFile     = "vectors.gob.gz"
)

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

// Search queries once per requested source, since chromem where clauses
// only express equality, and merges the hits by similarity.
func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var results []SearchResult
	for _, where := range buildWhereClauses(filter) {
		hits, err := s.collection.Query(ctx, query, limit, where, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
		for _, r := range hits {
			results = append(results, SearchResult{
				Document: Document{
					ID:       r.ID,
					Content:  r.Content,
					Metadata: mapToMetadata(r.Metadata),
				},
				Similarity: r.Similarity,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.collection.Delete(ctx, nil, nil, ids...)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating vector directory: %w", err)
	}
	return s.db.ExportToFile(filepath.Join(dir, exportFile), true, "")
}

// Load restores a previous Persist. A missing export is not an error.
func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	path := filepath.Join(dir, exportFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"tenant":     m.Tenant,
		"source":     m.Source,
		"url":        m.URL,
		"title":      m.Title,
		"lang":       m.Lang,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	createdAt, _ := time.Parse(time.RFC3339, m["created_at"])
	return DocumentMetadata{
		Tenant:    m["tenant"],
		Source:    m["source"],
		URL:       m["url"],
		Title:     m["title"],
		Lang:      m["lang"],
		CreatedAt: createdAt,
	}
}

// buildWhereClauses returns one chromem where clause per requested source,
// or a single clause (possibly nil) when no sources are given.
func buildWhereClauses(filter *SearchFilter) []map[string]string {
	if filter == nil {
		return []map[string]string{nil}
	}
	base := func() map[string]string {
		if filter.Tenant == "" {
			return map[string]string{}
		}
		return map[string]string{"tenant": filter.Tenant}
	}
	if len(filter.Sources) == 0 {
		w := base()
		if len(w) == 0 {
			return []map[string]string{nil}
		}
		return []map[string]string{w}
	}
	seen := make(map[string]bool, len(filter.Sources))
	out := make([]map[string]string, 0, len(filter.Sources))
	for _, src := range filter.Sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		w := base()
		w["source"] = src
		out = append(out, w)
	}
	return out
}
