package diagram

// Palette of the viewer chrome.
const (
	frameStroke   = "#334155"
	panelFill     = "#0b1220"
	labelColor    = "#e2e8f0"
	mutedColor    = "#94a3b8"
	markerFill    = "#22c55e"
	markerStroke  = "#052e16"
	zoneOpacity   = 0.5
	labelFontSize = 12.0
)

// Fixed content-space layout shared by the SVG and raster renderers.
var (
	frameRect  = rect{X: 60, Y: 80, W: 780, H: 380, R: 10}
	legendRect = rect{X: 640, Y: 360, W: 180, H: 90, R: 8}
)

// PanelWidth is the width of the hotspot panel in screen pixels.
const PanelWidth = 360.0

type rect struct{ X, Y, W, H, R float64 }

// Scene is everything needed to draw one frame of a diagram: what to draw,
// under which transform, on a canvas of which size, with which panel open.
type Scene struct {
	Config *Config
	View   View
	Width  int
	Height int
	Panel  *Panel
	// Layers overrides the config's layer defaults when set.
	Layers *Visibility
}

// NewScene returns a scene for cfg at view v with no panel open. Zero
// dimensions fall back to the viewer defaults.
func NewScene(cfg *Config, v View, width, height int) *Scene {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Scene{Config: cfg, View: v.Clamped(), Width: width, Height: height}
}

// WithLayers sets which layers the scene draws.
func (s *Scene) WithLayers(vis Visibility) *Scene {
	s.Layers = &vis
	return s
}

// WithActive opens the panel of hotspot id, if the config has it and the
// hotspot layer is shown. Unknown ids leave the panel closed.
func (s *Scene) WithActive(id string) *Scene {
	if s.Config == nil || id == "" || !s.visibility().Hotspots {
		return s
	}
	l := NewLayer(s.Config.Hotspots, nil)
	if l.Select(id) {
		if p, ok := l.Panel(); ok {
			s.Panel = &p
		}
	}
	return s
}

func (s *Scene) visibility() Visibility {
	if s.Layers != nil {
		return *s.Layers
	}
	if s.Config == nil {
		return Visibility{}
	}
	return s.Config.Layers.Resolve()
}

func (s *Scene) size() (float64, float64) {
	w, h := s.Width, s.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return float64(w), float64(h)
}

// panelRect returns the screen rectangle of the open panel, anchored to the
// bottom-left corner.
func (s *Scene) panelRect(lines int) rect {
	_, h := s.size()
	ph := 44 + float64(lines)*16
	return rect{X: 12, Y: h - 12 - ph, W: PanelWidth, H: ph, R: 8}
}
