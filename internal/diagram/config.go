package diagram

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBackground is used when a config does not set one.
const DefaultBackground = "#0f172a"

// DefaultFlowColor is the stroke colour of flows without an explicit colour.
const DefaultFlowColor = "#f59e0b"

// ErrDuplicateHotspot is returned by Validate when two hotspots share an id.
var ErrDuplicateHotspot = errors.New("duplicate hotspot id")

// Layers toggles the optional layers of a diagram. A nil field means visible.
type Layers struct {
	Zones    *bool `json:"zones,omitempty" yaml:"zones,omitempty"`
	Flows    *bool `json:"flows,omitempty" yaml:"flows,omitempty"`
	Hotspots *bool `json:"hotspots,omitempty" yaml:"hotspots,omitempty"`
	Legend   *bool `json:"legend,omitempty" yaml:"legend,omitempty"`
}

// Visibility is the resolved form of Layers.
type Visibility struct {
	Zones    bool `json:"zones"`
	Flows    bool `json:"flows"`
	Hotspots bool `json:"hotspots"`
	Legend   bool `json:"legend"`
}

// LayerNames lists the layers a viewer can switch on and off.
var LayerNames = []string{"zones", "flows", "hotspots", "legend"}

// ErrUnknownLayer is returned for a layer name outside LayerNames.
var ErrUnknownLayer = errors.New("unknown layer")

// Toggle flips the named layer.
func (v *Visibility) Toggle(name string) error {
	p, err := v.field(name)
	if err != nil {
		return err
	}
	*p = !*p
	return nil
}

func (v *Visibility) field(name string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zones":
		return &v.Zones, nil
	case "flows":
		return &v.Flows, nil
	case "hotspots":
		return &v.Hotspots, nil
	case "legend":
		return &v.Legend, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownLayer, name)
}

// ParseVisibility turns a comma-separated list of layer names into a
// Visibility with exactly those layers on. An empty list hides everything.
func ParseVisibility(list string) (Visibility, error) {
	var vis Visibility
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := vis.field(name)
		if err != nil {
			return Visibility{}, err
		}
		*p = true
	}
	return vis, nil
}

// Resolve fills unset layers with true.
func (l *Layers) Resolve() Visibility {
	if l == nil {
		return Visibility{true, true, true, true}
	}
	on := func(b *bool) bool { return b == nil || *b }
	return Visibility{
		Zones:    on(l.Zones),
		Flows:    on(l.Flows),
		Hotspots: on(l.Hotspots),
		Legend:   on(l.Legend),
	}
}

// Zone is a filled rectangle with an optional label.
type Zone struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Fill   string  `json:"fill" yaml:"fill"`
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Flow is an arrow between two content points.
type Flow struct {
	From  [2]float64 `json:"from" yaml:"from"`
	To    [2]float64 `json:"to" yaml:"to"`
	Color string     `json:"color,omitempty" yaml:"color,omitempty"`
}

// Stroke returns the flow colour or the default.
func (f Flow) Stroke() string {
	if f.Color == "" {
		return DefaultFlowColor
	}
	return f.Color
}

// LegendItem is one row of the legend: a colour swatch, a line sample, or both.
type LegendItem struct {
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Line  string `json:"line,omitempty" yaml:"line,omitempty"`
}

// Config describes a diagram. All fields are optional.
type Config struct {
	Slug       string       `json:"slug,omitempty" yaml:"slug,omitempty"`
	Title      string       `json:"title,omitempty" yaml:"title,omitempty"`
	Background string       `json:"background,omitempty" yaml:"background,omitempty"`
	Layers     *Layers      `json:"layers,omitempty" yaml:"layers,omitempty"`
	Zones      []Zone       `json:"zones,omitempty" yaml:"zones,omitempty"`
	Flows      []Flow       `json:"flows,omitempty" yaml:"flows,omitempty"`
	Hotspots   []Hotspot    `json:"hotspots,omitempty" yaml:"hotspots,omitempty"`
	Legend     []LegendItem `json:"legend,omitempty" yaml:"legend,omitempty"`

	issues []error
}

// BackgroundColor returns the configured background or the default.
func (c *Config) BackgroundColor() string {
	if c == nil || c.Background == "" {
		return DefaultBackground
	}
	return c.Background
}

// Validate checks hotspot id uniqueness. Everything else is optional and
// tolerated at render time.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool, len(c.Hotspots))
	for _, h := range c.Hotspots {
		if h.ID == "" {
			return fmt.Errorf("hotspot %q: id is required", h.Label)
		}
		if seen[h.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateHotspot, h.ID)
		}
		seen[h.ID] = true
	}
	return nil
}

// ParseConfig decodes a diagram config. The format is picked from the file
// extension of name (.yaml/.yml for YAML, JSON otherwise). Only a document
// that is not an object at all is an error: a field that fails to decode is
// left empty and reported by Issues, and the rest of the diagram is kept.
func ParseConfig(name string, data []byte) (*Config, error) {
	var decode func(key string, dst any) error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var fields map[string]yaml.Node
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		decode = func(key string, dst any) error {
			n, ok := fields[key]
			if !ok {
				return nil
			}
			return n.Decode(dst)
		}
	default:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		decode = func(key string, dst any) error {
			raw, ok := fields[key]
			if !ok {
				return nil
			}
			return json.Unmarshal(raw, dst)
		}
	}

	cfg := &Config{}
	cfg.Slug = decodeField[string](cfg, "slug", decode)
	cfg.Title = decodeField[string](cfg, "title", decode)
	cfg.Background = decodeField[string](cfg, "background", decode)
	cfg.Layers = decodeField[*Layers](cfg, "layers", decode)
	cfg.Zones = decodeField[[]Zone](cfg, "zones", decode)
	cfg.Flows = decodeField[[]Flow](cfg, "flows", decode)
	cfg.Hotspots = decodeField[[]Hotspot](cfg, "hotspots", decode)
	cfg.Legend = decodeField[[]LegendItem](cfg, "legend", decode)

	if cfg.Slug == "" {
		base := filepath.Base(name)
		cfg.Slug = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return cfg, nil
}

// decodeField decodes one top-level field. On failure the field keeps its
// zero value, so a partially decoded layer never renders.
func decodeField[T any](cfg *Config, key string, decode func(string, any) error) T {
	var v T
	if err := decode(key, &v); err != nil {
		cfg.issues = append(cfg.issues, fmt.Errorf("%s: %w", key, err))
		var zero T
		return zero
	}
	return v
}

// Issues lists the fields ParseConfig had to drop.
func (c *Config) Issues() []error {
	if c == nil {
		return nil
	}
	return c.issues
}
