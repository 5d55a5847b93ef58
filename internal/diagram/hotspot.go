package diagram

import "math"

// MarkerRadius is the radius of a hotspot marker in content units.
const MarkerRadius = 8.0

// NoDescription is shown in the panel when a hotspot has no description.
const NoDescription = "No description."

// Hotspot is a clickable point of interest, authored in content space.
type Hotspot struct {
	ID          string  `json:"id" yaml:"id"`
	X           float64 `json:"x" yaml:"x"`
	Y           float64 `json:"y" yaml:"y"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	// Anchor names a location elsewhere on the page to navigate to on click.
	// Hosts fall back to Label when it is empty.
	Anchor string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
}

// Target returns the navigation anchor for h.
func (h Hotspot) Target() string {
	if h.Anchor != "" {
		return h.Anchor
	}
	return h.Label
}

// Panel is the view-model of the open hotspot panel.
type Panel struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Layer tracks the hotspots of one diagram and which one is active.
// At most one hotspot is active; selecting another replaces it.
type Layer struct {
	hotspots []Hotspot
	activeID string
	active   bool
	onSelect func(Hotspot)
}

// NewLayer returns a layer over hotspots. onSelect may be nil.
func NewLayer(hotspots []Hotspot, onSelect func(Hotspot)) *Layer {
	hs := make([]Hotspot, len(hotspots))
	copy(hs, hotspots)
	return &Layer{hotspots: hs, onSelect: onSelect}
}

// SetHotspots replaces the hotspots of the layer. The active id is kept, so
// its panel reappears once the hotspot is back.
func (l *Layer) SetHotspots(hotspots []Hotspot) {
	hs := make([]Hotspot, len(hotspots))
	copy(hs, hotspots)
	l.hotspots = hs
}

// SetOnSelect replaces the selection callback. Pass nil to detach it.
func (l *Layer) SetOnSelect(fn func(Hotspot)) { l.onSelect = fn }

// Lookup finds a hotspot by id. The first match wins.
func (l *Layer) Lookup(id string) (Hotspot, bool) {
	for _, h := range l.hotspots {
		if h.ID == id {
			return h, true
		}
	}
	return Hotspot{}, false
}

// Select makes the hotspot with the given id active and invokes the
// selection callback. It reports false for unknown ids and leaves the
// current selection unchanged.
func (l *Layer) Select(id string) bool {
	h, ok := l.Lookup(id)
	if !ok {
		return false
	}
	l.activeID, l.active = h.ID, true
	if l.onSelect != nil {
		l.onSelect(h)
	}
	return true
}

// Dismiss clears the active hotspot.
func (l *Layer) Dismiss() {
	l.activeID, l.active = "", false
}

// ActiveID returns the active hotspot id, or nil when none is active.
func (l *Layer) ActiveID() *string {
	if !l.active {
		return nil
	}
	id := l.activeID
	return &id
}

// Active returns the active hotspot.
func (l *Layer) Active() (Hotspot, bool) {
	if !l.active {
		return Hotspot{}, false
	}
	return l.Lookup(l.activeID)
}

// Panel returns the content of the open panel. ok is false when no
// hotspot is active or the active id no longer resolves.
func (l *Layer) Panel() (Panel, bool) {
	h, ok := l.Active()
	if !ok {
		return Panel{}, false
	}
	desc := h.Description
	if desc == "" {
		desc = NoDescription
	}
	return Panel{ID: h.ID, Label: h.Label, Description: desc}, true
}

// HitTest returns the hotspot whose marker contains the screen point
// (sx, sy) under view v. The nearest marker wins when several overlap.
func (l *Layer) HitTest(v View, sx, sy float64) (Hotspot, bool) {
	cx, cy := v.ScreenToContent(sx, sy)
	best, bestDist := -1, math.Inf(1)
	for i, h := range l.hotspots {
		d := math.Hypot(h.X-cx, h.Y-cy)
		if d <= MarkerRadius && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Hotspot{}, false
	}
	return l.hotspots[best], true
}

// Click selects the hotspot under the screen point, if any.
func (l *Layer) Click(v View, sx, sy float64) (Hotspot, bool) {
	h, ok := l.HitTest(v, sx, sy)
	if !ok {
		return Hotspot{}, false
	}
	l.Select(h.ID)
	return h, true
}
