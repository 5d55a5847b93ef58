package diagram

import (
	"fmt"
	"sync"
)

// Canvas dimensions of the interactive viewer.
const (
	DefaultWidth  = 900
	DefaultHeight = 560
)

// EventType names an input event a Viewer understands.
type EventType string

const (
	EventPointerDown  EventType = "pointerdown"
	EventPointerMove  EventType = "pointermove"
	EventPointerUp    EventType = "pointerup"
	EventPointerLeave EventType = "pointerleave"
	EventWheel        EventType = "wheel"
	EventClick        EventType = "click"
	EventSelect       EventType = "select"
	EventDismiss      EventType = "dismiss"
	EventZoomIn       EventType = "zoomin"
	EventZoomOut      EventType = "zoomout"
	EventReset        EventType = "reset"
	EventToggle       EventType = "toggle"
)

// Event is one input delivered to a Viewer. X and Y are canvas-local
// screen coordinates; DeltaY is the wheel delta; ID names a hotspot and
// Layer names the layer a toggle flips.
type Event struct {
	Type   EventType `json:"type"`
	X      float64   `json:"x,omitempty"`
	Y      float64   `json:"y,omitempty"`
	DeltaY float64   `json:"delta_y,omitempty"`
	ID     string    `json:"id,omitempty"`
	Layer  string    `json:"layer,omitempty"`
}

// State is a snapshot of a Viewer.
type State struct {
	View     View    `json:"view"`
	Dragging bool    `json:"dragging"`
	Cursor   string  `json:"cursor"`
	ActiveID *string    `json:"active_id"`
	Panel    *Panel     `json:"panel,omitempty"`
	Layers   Visibility `json:"layers"`
}

// Viewer is one interactive diagram instance: its transform, gesture
// controller and hotspot layer. All state is per instance; methods are
// safe for concurrent use.
type Viewer struct {
	mu     sync.Mutex
	config *Config
	vis    Visibility
	view   View
	ctrl   *Controller
	layer  *Layer
	closed bool
}

// NewViewer mounts a viewer for cfg. onSelect is called with the full
// hotspot record whenever one is selected; it may be nil and must not
// call back into the viewer. A nil cfg yields an empty diagram.
func NewViewer(cfg *Config, onSelect func(Hotspot)) *Viewer {
	if cfg == nil {
		cfg = &Config{}
	}
	v := &Viewer{config: cfg, vis: cfg.Layers.Resolve(), view: DefaultView()}
	v.ctrl = NewController(&v.view)
	v.layer = NewLayer(nil, onSelect)
	v.syncHotspots()
	return v
}

// syncHotspots shows the hotspot markers only while their layer is on.
func (v *Viewer) syncHotspots() {
	if v.vis.Hotspots {
		v.layer.SetHotspots(v.config.Hotspots)
	} else {
		v.layer.SetHotspots(nil)
	}
}

// Config returns the diagram config the viewer was mounted with.
func (v *Viewer) Config() *Config { return v.config }

// Apply feeds one event through the viewer and returns the resulting state.
func (v *Viewer) Apply(ev Event) (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return State{}, fmt.Errorf("viewer closed")
	}

	switch ev.Type {
	case EventPointerDown:
		v.ctrl.PointerDown(ev.X, ev.Y)
	case EventPointerMove:
		v.ctrl.PointerMove(ev.X, ev.Y)
	case EventPointerUp:
		v.ctrl.PointerUp()
	case EventPointerLeave:
		v.ctrl.PointerLeave()
	case EventWheel:
		v.ctrl.Wheel(ev.X, ev.Y, ev.DeltaY)
	case EventClick:
		v.layer.Click(v.view, ev.X, ev.Y)
	case EventSelect:
		v.layer.Select(ev.ID)
	case EventDismiss:
		v.layer.Dismiss()
	case EventZoomIn:
		v.ctrl.ZoomIn()
	case EventZoomOut:
		v.ctrl.ZoomOut()
	case EventReset:
		v.ctrl.Reset()
	case EventToggle:
		if err := v.vis.Toggle(ev.Layer); err != nil {
			return v.stateLocked(), err
		}
		v.syncHotspots()
	default:
		return v.stateLocked(), fmt.Errorf("unknown event type %q", ev.Type)
	}
	return v.stateLocked(), nil
}

// State returns a snapshot of the viewer.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Viewer) stateLocked() State {
	st := State{
		View:     v.view,
		Dragging: v.ctrl.State() == Dragging,
		Cursor:   v.ctrl.Cursor(),
		ActiveID: v.layer.ActiveID(),
		Layers:   v.vis,
	}
	if p, ok := v.layer.Panel(); ok {
		st.Panel = &p
	}
	return st
}

// Scene captures what the viewer currently shows at the given canvas size.
func (v *Viewer) Scene(width, height int) *Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	vis := v.vis
	s := &Scene{
		Config: v.config,
		View:   v.view,
		Width:  width,
		Height: height,
		Layers: &vis,
	}
	if p, ok := v.layer.Panel(); ok {
		s.Panel = &p
	}
	return s
}

// Close unmounts the viewer: the selection callback is detached and
// further events are rejected. Close is idempotent.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.layer.SetOnSelect(nil)
	v.ctrl.PointerUp()
	v.closed = true
}
