package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/htmltext"
)

// DefaultK is the number of passages returned when a request does not say.
const DefaultK = 5

// FetchTimeout bounds each source page request.
const FetchTimeout = 10 * time.Second

const maxPageBytes = 8 << 20

// ErrMissingQuery is returned for an empty question.
var ErrMissingQuery = errors.New("missing query")

const (
	askHeader  = "Summary based on external sources (no LLM):"
	askEmpty   = `No sufficiently relevant passages were found in the external sources. Try a more specific query (for example "Grade A/B unidirectional flow" or "CCS performance indicators").`
	pdfExcerpt = "Official document (PDF). Open it for the full content."
)

// Citation points at the source of a passage.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Answer is a ranked passage summary with its citations.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Hits      []Hit      `json:"-"`
}

// Hit is one scored passage.
type Hit struct {
	Source string
	URL    string
	Chunk  string
	Score  int
}

// Asker answers questions by scraping the configured source pages and
// ranking their passages by keyword score.
type Asker struct {
	client  *http.Client
	sources []config.KnowledgeSource
	log     zerolog.Logger
}

// NewAsker creates an Asker over sources.
func NewAsker(sources []config.KnowledgeSource, log zerolog.Logger) *Asker {
	return &Asker{
		client:  &http.Client{Timeout: FetchTimeout},
		sources: sources,
		log:     log.With().Str("component", "knowledge").Logger(),
	}
}

// Ask ranks passages from every source against query and returns the top k.
// PDF sources are not fetched; each contributes a citation with score 1.
// Sources that fail to load are logged and skipped.
func (a *Asker) Ask(ctx context.Context, query string, k int) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrMissingQuery
	}
	if k <= 0 {
		k = DefaultK
	}
	terms := Terms(query)

	perSource := make([][]Hit, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		if src.Type == "pdf" {
			perSource[i] = []Hit{{Source: src.Title, URL: src.URL, Chunk: pdfExcerpt, Score: 1}}
			continue
		}
		g.Go(func() error {
			text, err := a.fetchText(ctx, src.URL)
			if err != nil {
				a.log.Warn().Err(err).Str("url", src.URL).Msg("knowledge fetch failed")
				return nil
			}
			for _, p := range Passages(text) {
				if s := Score(p, terms); s > 0 {
					perSource[i] = append(perSource[i], Hit{Source: src.Title, URL: src.URL, Chunk: htmltext.Truncate(p, maxChunkLen), Score: s})
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var hits []Hit
	for _, h := range perSource {
		hits = append(hits, h...)
	}
	return summarise(hits, k), nil
}

func summarise(hits []Hit, k int) *Answer {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}

	ans := &Answer{Citations: []Citation{}, Hits: hits}
	if len(hits) == 0 {
		ans.Answer = askEmpty
		return ans
	}
	lines := []string{askHeader, ""}
	for i, h := range hits {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, h.Chunk))
		ans.Citations = append(ans.Citations, Citation{Title: h.Source, URL: h.URL})
	}
	ans.Answer = strings.Join(lines, "\n")
	return ans
}

func (a *Asker) fetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "cleanroom-knowledge/1.0")
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return htmltext.FromReader(io.LimitReader(resp.Body, maxPageBytes)), nil
}
