package diagram

// WheelStep is the fractional scale change applied per wheel event.
const WheelStep = 0.1

// ButtonZoomFactor is the multiplicative step of the toolbar zoom buttons.
const ButtonZoomFactor = 1.2

// GestureState is the state of a Controller.
type GestureState int

const (
	Idle GestureState = iota
	Dragging
)

func (s GestureState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// DragState records where a drag started, relative to the view translation.
type DragState struct {
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	Active  bool    `json:"active"`
}

// Controller turns pointer and wheel input into View updates.
// It is not safe for concurrent use.
type Controller struct {
	view *View
	drag DragState
}

// NewController returns a controller that mutates view in place.
// The view's scale is clamped immediately.
func NewController(view *View) *Controller {
	*view = view.Clamped()
	return &Controller{view: view}
}

// View returns the current transform.
func (c *Controller) View() View { return *c.view }

// Drag returns the current drag state.
func (c *Controller) Drag() DragState { return c.drag }

// State reports whether a drag is in progress.
func (c *Controller) State() GestureState {
	if c.drag.Active {
		return Dragging
	}
	return Idle
}

// Cursor returns the CSS cursor matching the current state.
func (c *Controller) Cursor() string {
	if c.drag.Active {
		return "grabbing"
	}
	return "grab"
}

// PointerDown starts a drag at the given client position.
func (c *Controller) PointerDown(clientX, clientY float64) {
	c.drag = DragState{
		OriginX: clientX - c.view.X,
		OriginY: clientY - c.view.Y,
		Active:  true,
	}
}

// PointerMove pans the view so the translation tracks the pointer 1:1.
// It does nothing unless a drag is active, and never touches the scale.
func (c *Controller) PointerMove(clientX, clientY float64) {
	if !c.drag.Active {
		return
	}
	*c.view = c.view.WithTranslation(clientX-c.drag.OriginX, clientY-c.drag.OriginY)
}

// PointerUp ends any drag.
func (c *Controller) PointerUp() {
	c.drag = DragState{}
}

// PointerLeave ends any drag, exactly like PointerUp.
func (c *Controller) PointerLeave() {
	c.PointerUp()
}

// Wheel zooms about the cursor at screen position (cx, cy). A negative
// deltaY (scroll up) zooms in. The content point under the cursor stays
// under the cursor.
func (c *Controller) Wheel(cx, cy, deltaY float64) {
	anchorX, anchorY := c.view.ScreenToContent(cx, cy)
	delta := -sign(deltaY) * WheelStep
	scale := ClampScale(c.view.Scale * (1 + delta))
	*c.view = c.view.WithScale(scale).WithTranslation(cx-anchorX*scale, cy-anchorY*scale)
}

// ZoomIn applies one toolbar zoom-in step, keeping the translation.
func (c *Controller) ZoomIn() {
	*c.view = c.view.WithScale(c.view.Scale * ButtonZoomFactor)
}

// ZoomOut applies one toolbar zoom-out step, keeping the translation.
func (c *Controller) ZoomOut() {
	*c.view = c.view.WithScale(c.view.Scale / ButtonZoomFactor)
}

// Reset restores the default view and drops any drag.
func (c *Controller) Reset() {
	*c.view = DefaultView()
	c.drag = DragState{}
}

func sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}
