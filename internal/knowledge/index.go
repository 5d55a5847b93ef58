package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/htmltext"
	"github.com/annexlab/cleanroom/internal/progress"
	"github.com/annexlab/cleanroom/internal/vectordb"
)

const (
	// MaxDocText caps the text stored and embedded per document.
	MaxDocText = 8000

	defaultLang = "sl"

	searchHeader = "Most relevant passages found:"
	searchEmpty  = "No relevant passages in the indexed collection. Index sources first or widen the filters."
)

var (
	// ErrNoDocs is returned by Upsert when given nothing to index.
	ErrNoDocs = errors.New("provide docs[]")
	// ErrVectorUnavailable is returned when no vector store is configured.
	ErrVectorUnavailable = errors.New("vector search not configured")
)

// Doc is a passage submitted for indexing.
type Doc struct {
	ID       string `json:"id,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Lang     string `json:"lang,omitempty"`
	Text     string `json:"text"`
}

// SearchRequest is a vector search query.
type SearchRequest struct {
	Q       string   `json:"q"`
	K       int      `json:"k"`
	Sources []string `json:"sources"`
	Tenant  string   `json:"tenantId,omitempty"`
}

// Index searches and maintains the embedded passage collection.
type Index struct {
	store   vectordb.VectorStore
	tenant  string
	dir     string
	log     zerolog.Logger
	now     func() time.Time
	persist sync.Mutex
}

// NewIndex wraps store. When dir is non-empty the collection is saved there
// after every upsert. store may be nil, in which case every call reports
// ErrVectorUnavailable.
func NewIndex(store vectordb.VectorStore, tenant, dir string, log zerolog.Logger) *Index {
	if tenant == "" {
		tenant = "public"
	}
	return &Index{
		store:  store,
		tenant: tenant,
		dir:    dir,
		log:    log.With().Str("component", "knowledge").Logger(),
		now:    time.Now,
	}
}

// Available reports whether a vector store is configured.
func (x *Index) Available() bool { return x != nil && x.store != nil }

// Count returns the number of indexed passages.
func (x *Index) Count() int {
	if !x.Available() {
		return 0
	}
	return x.store.Count()
}

// Search returns the k passages most similar to req.Q within the tenant,
// optionally restricted to sources (labels or keys).
func (x *Index) Search(ctx context.Context, req SearchRequest) (*Answer, error) {
	if strings.TrimSpace(req.Q) == "" {
		return nil, ErrMissingQuery
	}
	if !x.Available() {
		return nil, ErrVectorUnavailable
	}
	if req.K <= 0 {
		req.K = DefaultK
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = x.tenant
	}

	results, err := x.store.Search(ctx, req.Q, req.K, &vectordb.SearchFilter{
		Tenant:  tenant,
		Sources: SourceKeys(req.Sources),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ans := &Answer{Citations: []Citation{}}
	if len(results) == 0 {
		ans.Answer = searchEmpty
		return ans, nil
	}
	lines := []string{searchHeader, ""}
	for i, r := range results {
		md := r.Document.Metadata
		src := strings.ToUpper(md.Source)
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, src, htmltext.Truncate(r.Document.Content, maxChunkLen)))
		title := md.Title
		if title == "" {
			title = "Source"
		}
		ans.Citations = append(ans.Citations, Citation{Title: src + " - " + title, URL: md.URL})
		ans.Hits = append(ans.Hits, Hit{Source: md.Source, URL: md.URL, Chunk: r.Document.Content})
	}
	ans.Answer = strings.Join(lines, "\n")
	return ans, nil
}

// Upsert embeds and stores docs, filling defaults for missing fields, and
// returns how many were stored.
func (x *Index) Upsert(ctx context.Context, docs []Doc) (int, error) {
	if len(docs) == 0 {
		return 0, ErrNoDocs
	}
	if !x.Available() {
		return 0, ErrVectorUnavailable
	}

	now := x.now().UTC()
	out := make([]vectordb.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, x.normalise(d, now))
	}
	if err := x.store.AddDocuments(ctx, out); err != nil {
		return 0, fmt.Errorf("indexing documents: %w", err)
	}
	if err := x.Save(ctx); err != nil {
		return len(out), err
	}
	return len(out), nil
}

func (x *Index) normalise(d Doc, now time.Time) vectordb.Document {
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	tenant := d.TenantID
	if tenant == "" {
		tenant = x.tenant
	}
	source := d.Source
	if source == "" {
		source = DefaultSource
	}
	title := d.Title
	if title == "" {
		if d.Source != "" {
			title = d.Source + " doc"
		} else {
			title = "doc"
		}
	}
	lang := d.Lang
	if lang == "" {
		lang = defaultLang
	}
	return vectordb.Document{
		ID:      id,
		Content: htmltext.Truncate(d.Text, MaxDocText),
		Metadata: vectordb.DocumentMetadata{
			Tenant:    tenant,
			Source:    source,
			URL:       d.URL,
			Title:     title,
			Lang:      lang,
			CreatedAt: now,
		},
	}
}

// Save writes the collection to the index directory, if one is set.
func (x *Index) Save(ctx context.Context) error {
	if x.dir == "" || !x.Available() {
		return nil
	}
	x.persist.Lock()
	defer x.persist.Unlock()
	if err := x.store.Persist(ctx, x.dir); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}
	return nil
}

// Load restores the collection from the index directory, if one is set.
func (x *Index) Load(ctx context.Context) error {
	if x.dir == "" || !x.Available() {
		return nil
	}
	return x.store.Load(ctx, x.dir)
}

// IndexSources scrapes the HTML sources, splits them into passages and
// upserts them with deterministic ids so reindexing replaces old passages.
// PDF sources are skipped. It returns the number of passages stored.
func (x *Index) IndexSources(ctx context.Context, a *Asker, rep progress.Reporter) (int, error) {
	if !x.Available() {
		return 0, ErrVectorUnavailable
	}
	if rep == nil {
		rep = progress.Nop{}
	}

	var html []config.KnowledgeSource
	for _, src := range a.sources {
		if src.Type != "pdf" {
			html = append(html, src)
		}
	}

	rep.Start(len(html))
	defer rep.Finish()

	total := 0
	for i, src := range html {
		rep.Update(i, src.Title)
		text, err := a.fetchText(ctx, src.URL)
		if err != nil {
			x.log.Warn().Err(err).Str("url", src.URL).Msg("skipping source")
			continue
		}
		key := SourceKey(src.Source)
		var docs []Doc
		for j, p := range Passages(text) {
			docs = append(docs, Doc{
				ID:     fmt.Sprintf("%s-%04d", uuid.NewSHA1(uuid.NameSpaceURL, []byte(src.URL)).String(), j),
				Source: key,
				URL:    src.URL,
				Title:  src.Title,
				Text:   p,
			})
		}
		if len(docs) == 0 {
			continue
		}
		n, err := x.Upsert(ctx, docs)
		if err != nil {
			return total, err
		}
		total += n
	}
	rep.Update(len(html), "done")
	return total, nil
}
