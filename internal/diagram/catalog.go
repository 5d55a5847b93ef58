package diagram

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// DefaultSlug names the diagram served when a requested slug is unknown.
const DefaultSlug = "default"

// ConfigPattern matches the diagram files a Catalog loads.
const ConfigPattern = "**/*.{json,yaml,yml}"

// ErrNotFound is returned when neither the slug nor the default diagram exists.
var ErrNotFound = errors.New("diagram not found")

// Catalog holds the diagram configs loaded from a directory, keyed by slug.
type Catalog struct {
	mu      sync.RWMutex
	configs map[string]*Config
	log     zerolog.Logger
}

// NewCatalog returns an empty catalog.
func NewCatalog(log zerolog.Logger) *Catalog {
	return &Catalog{configs: make(map[string]*Config), log: log}
}

// LoadDir loads every diagram file under dir. Files that fail to parse or
// validate are logged and skipped; fields that fail to decode are logged and
// left empty. A missing directory yields an empty catalog.
func (c *Catalog) LoadDir(dir string) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		c.log.Warn().Str("dir", dir).Msg("diagram directory missing")
		return 0, nil
	}
	return c.LoadFS(os.DirFS(dir))
}

// LoadFS loads every diagram file in fsys matching ConfigPattern.
func (c *Catalog) LoadFS(fsys fs.FS) (int, error) {
	matches, err := doublestar.Glob(fsys, ConfigPattern)
	if err != nil {
		return 0, fmt.Errorf("globbing diagrams: %w", err)
	}

	loaded := 0
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			c.log.Warn().Err(err).Str("file", name).Msg("skipping unreadable diagram")
			continue
		}
		cfg, err := ParseConfig(name, data)
		if err != nil {
			c.log.Warn().Err(err).Str("file", name).Msg("skipping malformed diagram")
			continue
		}
		for _, issue := range cfg.Issues() {
			c.log.Warn().Err(issue).Str("file", name).Msg("dropping malformed diagram field")
		}
		if err := cfg.Validate(); err != nil {
			c.log.Warn().Err(err).Str("file", name).Msg("skipping invalid diagram")
			continue
		}
		c.Put(cfg)
		loaded++
	}
	c.log.Info().Int("diagrams", loaded).Msg("diagram catalog loaded")
	return loaded, nil
}

// Put adds or replaces a config under its slug.
func (c *Catalog) Put(cfg *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[cfg.Slug] = cfg
}

// Get returns the config for slug, falling back to the default diagram.
func (c *Catalog) Get(slug string) (*Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cfg, ok := c.configs[slug]; ok {
		return cfg, nil
	}
	if cfg, ok := c.configs[DefaultSlug]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

// Slugs returns the loaded slugs in sorted order.
func (c *Catalog) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.configs))
	for s := range c.configs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
