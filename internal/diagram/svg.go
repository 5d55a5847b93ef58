package diagram

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// panelChars is the approximate number of characters per panel line.
const panelChars = 52

// RenderSVG writes the scene as a standalone SVG document. A nil config
// renders the frame only; layers with no data render nothing.
func RenderSVG(w io.Writer, s *Scene) error {
	var b strings.Builder
	width, height := s.size()
	vis := s.visibility()
	bg := s.Config.BackgroundColor()

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		fmtFloat(width), fmtFloat(height), fmtFloat(width), fmtFloat(height))
	b.WriteString(`<defs>`)
	b.WriteString(`<filter id="softShadow" x="-50%" y="-50%" width="200%" height="200%">`)
	b.WriteString(`<feDropShadow dx="0" dy="2" stdDeviation="3" flood-color="#000" flood-opacity="0.25"/></filter>`)
	fmt.Fprintf(&b, `<marker id="arrow" markerWidth="10" markerHeight="10" refX="5" refY="3" orient="auto">`+
		`<polygon points="0 0, 10 3, 0 6" fill="%s"/></marker>`, DefaultFlowColor)
	b.WriteString(`</defs>`)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, attr(bg))

	fmt.Fprintf(&b, `<g transform="%s">`, s.View.SVGTransform())
	fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s" fill="%s" stroke="%s" stroke-width="2"/>`,
		fmtFloat(frameRect.X), fmtFloat(frameRect.Y), fmtFloat(frameRect.W), fmtFloat(frameRect.H),
		fmtFloat(frameRect.R), attr(bg), frameStroke)

	if s.Config != nil {
		if vis.Zones && len(s.Config.Zones) > 0 {
			writeZones(&b, s.Config.Zones)
		}
		if vis.Flows && len(s.Config.Flows) > 0 {
			writeFlows(&b, s.Config.Flows)
		}
		if vis.Legend && len(s.Config.Legend) > 0 {
			writeLegend(&b, s.Config.Legend)
		}
		if vis.Hotspots && len(s.Config.Hotspots) > 0 {
			writeHotspots(&b, s.Config.Hotspots)
		}
	}
	b.WriteString(`</g>`)

	if s.Panel != nil {
		writePanel(&b, s)
	}
	b.WriteString(`</svg>`)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeZones(b *strings.Builder, zones []Zone) {
	fmt.Fprintf(b, `<g opacity="%s">`, fmtFloat(zoneOpacity))
	for _, z := range zones {
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			fmtFloat(z.X), fmtFloat(z.Y), fmtFloat(z.Width), fmtFloat(z.Height), attr(z.Fill))
		if z.Label != "" {
			writeText(b, z.X+12, z.Y+20, labelColor, z.Label)
		}
	}
	b.WriteString(`</g>`)
}

func writeFlows(b *strings.Builder, flows []Flow) {
	b.WriteString(`<g>`)
	for _, f := range flows {
		fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2" marker-end="url(#arrow)"/>`,
			fmtFloat(f.From[0]), fmtFloat(f.From[1]), fmtFloat(f.To[0]), fmtFloat(f.To[1]), attr(f.Stroke()))
	}
	b.WriteString(`</g>`)
}

func writeLegend(b *strings.Builder, items []LegendItem) {
	r := legendRect
	b.WriteString(`<g>`)
	fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s" fill="%s" stroke="%s"/>`,
		fmtFloat(r.X), fmtFloat(r.Y), fmtFloat(r.W), fmtFloat(r.H), fmtFloat(r.R), panelFill, frameStroke)
	writeText(b, r.X+15, r.Y+22, labelColor, "Legend")
	for i, it := range items {
		row := float64(i) * 18
		if it.Color != "" {
			fmt.Fprintf(b, `<rect x="%s" y="%s" width="12" height="12" fill="%s"/>`,
				fmtFloat(r.X+8), fmtFloat(r.Y+34+row), attr(it.Color))
		}
		if it.Line != "" {
			fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>`,
				fmtFloat(r.X+8), fmtFloat(r.Y+40+row), fmtFloat(r.X+20), fmtFloat(r.Y+40+row), attr(it.Line))
		}
		writeText(b, r.X+26, r.Y+44+row, mutedColor, it.Label)
	}
	b.WriteString(`</g>`)
}

func writeHotspots(b *strings.Builder, hotspots []Hotspot) {
	for _, h := range hotspots {
		fmt.Fprintf(b, `<g class="hotspot" data-id="%s" style="pointer-events:all">`, attr(h.ID))
		fmt.Fprintf(b, `<circle cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="2" filter="url(#softShadow)"/>`,
			fmtFloat(h.X), fmtFloat(h.Y), fmtFloat(MarkerRadius), markerFill, markerStroke)
		writeText(b, h.X+12, h.Y+4, labelColor, h.Label)
		b.WriteString(`</g>`)
	}
}

func writePanel(b *strings.Builder, s *Scene) {
	lines := wrapText(s.Panel.Description, panelChars)
	r := s.panelRect(len(lines))
	fmt.Fprintf(b, `<g class="panel" data-id="%s">`, attr(s.Panel.ID))
	fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s" fill="%s" stroke="%s"/>`,
		fmtFloat(r.X), fmtFloat(r.Y), fmtFloat(r.W), fmtFloat(r.H), fmtFloat(r.R), panelFill, frameStroke)
	fmt.Fprintf(b, `<text x="%s" y="%s" font-size="%s" font-weight="bold" fill="%s">%s</text>`,
		fmtFloat(r.X+12), fmtFloat(r.Y+24), fmtFloat(labelFontSize+2), labelColor, html.EscapeString(s.Panel.Label))
	for i, line := range lines {
		writeText(b, r.X+12, r.Y+46+float64(i)*16, mutedColor, line)
	}
	b.WriteString(`</g>`)
}

func writeText(b *strings.Builder, x, y float64, fill, s string) {
	fmt.Fprintf(b, `<text x="%s" y="%s" font-size="%s" fill="%s" style="user-select:none">%s</text>`,
		fmtFloat(x), fmtFloat(y), fmtFloat(labelFontSize), fill, html.EscapeString(s))
}

func attr(s string) string { return html.EscapeString(s) }

// wrapText breaks s into lines of at most width runes on word boundaries.
// Words longer than width get a line of their own.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len([]rune(cur))+1+len([]rune(w)) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}
