package diagram

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Rasterizer turns a scene into a bitmap.
type Rasterizer interface {
	Rasterize(ctx context.Context, s *Scene) (image.Image, error)
}

// GGRasterizer draws scenes with the gg software renderer. Geometry is
// mapped to screen space through the scene's View before drawing, so
// stroke widths and label sizes scale with zoom like the SVG group does.
type GGRasterizer struct {
	once    sync.Once
	source  *text.FontSource
	fontErr error
}

// NewGGRasterizer returns a rasterizer using the embedded Go Regular font.
func NewGGRasterizer() *GGRasterizer {
	return &GGRasterizer{}
}

func (r *GGRasterizer) font() (*text.FontSource, error) {
	r.once.Do(func() {
		r.source, r.fontErr = text.NewFontSource(goregular.TTF)
	})
	return r.source, r.fontErr
}

// Rasterize draws s into a new RGBA image.
func (r *GGRasterizer) Rasterize(ctx context.Context, s *Scene) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := r.font()
	if err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}

	w, h := s.size()
	dc := gg.NewContext(int(w), int(h))
	defer dc.Close()

	p := &painter{dc: dc, view: s.View, font: src, faces: make(map[float64]text.Face)}
	p.paint(s)
	if p.err != nil {
		return nil, fmt.Errorf("rasterizing diagram: %w", p.err)
	}

	out := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	img := dc.Image()
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}

type painter struct {
	dc    *gg.Context
	view  View
	font  *text.FontSource
	faces map[float64]text.Face
	err   error
}

func (p *painter) paint(s *Scene) {
	vis := s.visibility()
	bg := s.Config.BackgroundColor()
	p.dc.ClearWithColor(gg.Hex(bg))

	f := frameRect
	p.rect(f, bg, 1)
	p.strokeRect(f, frameStroke, 2)

	if s.Config != nil {
		if vis.Zones {
			for _, z := range s.Config.Zones {
				p.rect(rect{X: z.X, Y: z.Y, W: z.Width, H: z.Height}, z.Fill, zoneOpacity)
				if z.Label != "" {
					p.label(z.X+12, z.Y+20, labelColor, z.Label)
				}
			}
		}
		if vis.Flows {
			for _, fl := range s.Config.Flows {
				p.arrow(fl)
			}
		}
		if vis.Legend && len(s.Config.Legend) > 0 {
			p.legend(s.Config.Legend)
		}
		if vis.Hotspots {
			for _, hs := range s.Config.Hotspots {
				p.marker(hs)
			}
		}
	}

	if s.Panel != nil {
		p.panel(s)
	}
}

func (p *painter) check(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) setColor(hex string, alpha float64) {
	c := gg.Hex(hex)
	p.dc.SetRGBA(c.R, c.G, c.B, c.A*alpha)
}

// rect fills a content-space rectangle.
func (p *painter) rect(r rect, fill string, alpha float64) {
	x, y := p.view.ContentToScreen(r.X, r.Y)
	p.setColor(fill, alpha)
	if r.R > 0 {
		p.dc.DrawRoundedRectangle(x, y, r.W*p.view.Scale, r.H*p.view.Scale, r.R*p.view.Scale)
	} else {
		p.dc.DrawRectangle(x, y, r.W*p.view.Scale, r.H*p.view.Scale)
	}
	p.check(p.dc.Fill())
}

func (p *painter) strokeRect(r rect, stroke string, width float64) {
	x, y := p.view.ContentToScreen(r.X, r.Y)
	p.setColor(stroke, 1)
	p.dc.SetLineWidth(width * p.view.Scale)
	p.dc.DrawRoundedRectangle(x, y, r.W*p.view.Scale, r.H*p.view.Scale, r.R*p.view.Scale)
	p.check(p.dc.Stroke())
}

func (p *painter) line(x1, y1, x2, y2 float64, stroke string, width float64) {
	sx1, sy1 := p.view.ContentToScreen(x1, y1)
	sx2, sy2 := p.view.ContentToScreen(x2, y2)
	p.setColor(stroke, 1)
	p.dc.SetLineWidth(width * p.view.Scale)
	p.dc.DrawLine(sx1, sy1, sx2, sy2)
	p.check(p.dc.Stroke())
}

// arrow draws a flow line with a triangular head at its end.
func (p *painter) arrow(f Flow) {
	p.line(f.From[0], f.From[1], f.To[0], f.To[1], f.Stroke(), 2)

	angle := math.Atan2(f.To[1]-f.From[1], f.To[0]-f.From[0])
	const headLen, headHalf = 10.0, 3.0
	tipX, tipY := p.view.ContentToScreen(f.To[0], f.To[1])
	s := p.view.Scale
	bx := tipX - math.Cos(angle)*headLen*s
	by := tipY - math.Sin(angle)*headLen*s
	nx, ny := -math.Sin(angle)*headHalf*s, math.Cos(angle)*headHalf*s

	p.setColor(f.Stroke(), 1)
	p.dc.MoveTo(tipX, tipY)
	p.dc.LineTo(bx+nx, by+ny)
	p.dc.LineTo(bx-nx, by-ny)
	p.dc.ClosePath()
	p.check(p.dc.Fill())
}

func (p *painter) legend(items []LegendItem) {
	r := legendRect
	p.rect(r, panelFill, 1)
	p.strokeRect(r, frameStroke, 1)
	p.label(r.X+15, r.Y+22, labelColor, "Legend")
	for i, it := range items {
		row := float64(i) * 18
		if it.Color != "" {
			p.rect(rect{X: r.X + 8, Y: r.Y + 34 + row, W: 12, H: 12}, it.Color, 1)
		}
		if it.Line != "" {
			p.line(r.X+8, r.Y+40+row, r.X+20, r.Y+40+row, it.Line, 2)
		}
		p.label(r.X+26, r.Y+44+row, mutedColor, it.Label)
	}
}

func (p *painter) marker(h Hotspot) {
	cx, cy := p.view.ContentToScreen(h.X, h.Y)
	radius := MarkerRadius * p.view.Scale

	p.setColor(markerFill, 1)
	p.dc.DrawCircle(cx, cy, radius)
	p.check(p.dc.Fill())

	p.setColor(markerStroke, 1)
	p.dc.SetLineWidth(2 * p.view.Scale)
	p.dc.DrawCircle(cx, cy, radius)
	p.check(p.dc.Stroke())

	p.label(h.X+12, h.Y+4, labelColor, h.Label)
}

// label draws text at a content-space baseline position.
func (p *painter) label(x, y float64, fill, s string) {
	sx, sy := p.view.ContentToScreen(x, y)
	p.screenText(sx, sy, labelFontSize*p.view.Scale, fill, s)
}

func (p *painter) screenText(x, y, size float64, fill, s string) {
	if s == "" {
		return
	}
	face, ok := p.faces[size]
	if !ok {
		face = p.font.Face(size)
		p.faces[size] = face
	}
	p.dc.SetFont(face)
	p.setColor(fill, 1)
	p.dc.DrawString(s, x, y)
}

// panel draws the hotspot panel in screen space; it does not pan or zoom.
func (p *painter) panel(s *Scene) {
	lines := wrapText(s.Panel.Description, panelChars)
	r := s.panelRect(len(lines))

	p.setColor(panelFill, 1)
	p.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, r.R)
	p.check(p.dc.Fill())
	p.setColor(frameStroke, 1)
	p.dc.SetLineWidth(1)
	p.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, r.R)
	p.check(p.dc.Stroke())

	p.screenText(r.X+12, r.Y+24, labelFontSize+2, labelColor, s.Panel.Label)
	for i, line := range lines {
		p.screenText(r.X+12, r.Y+46+float64(i)*16, labelFontSize, mutedColor, line)
	}
}
