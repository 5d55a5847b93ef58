package diagram

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"
)

// Format is an export output format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// Filename returns the download name for f, e.g. "diagram.png".
func (f Format) Filename() string { return "diagram." + string(f) }

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	default:
		return "image/svg+xml"
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatSVG, FormatPNG, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Exporter snapshots scenes to image or document files. Failures of the
// rasterizer propagate to the caller; nothing is retried.
type Exporter struct {
	raster Rasterizer
}

// NewExporter returns an exporter backed by r, or by a GGRasterizer when r is nil.
func NewExporter(r Rasterizer) *Exporter {
	if r == nil {
		r = NewGGRasterizer()
	}
	return &Exporter{raster: r}
}

// Export writes s to w in format f. A nil scene is a no-op.
func (e *Exporter) Export(ctx context.Context, f Format, s *Scene, w io.Writer) error {
	switch f {
	case FormatPNG:
		return e.PNG(ctx, s, w)
	case FormatPDF:
		return e.PDF(ctx, s, w)
	case FormatSVG:
		if s == nil {
			return nil
		}
		return RenderSVG(w, s)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// PNG rasterizes s and writes it as a PNG image. A nil scene is a no-op.
func (e *Exporter) PNG(ctx context.Context, s *Scene, w io.Writer) error {
	if s == nil {
		return nil
	}
	img, err := e.raster.Rasterize(ctx, s)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// PDF rasterizes s and writes a single landscape page, sized to the canvas
// in points, with the snapshot filling the page. A nil scene is a no-op.
func (e *Exporter) PDF(ctx context.Context, s *Scene, w io.Writer) error {
	if s == nil {
		return nil
	}
	img, err := e.raster.Rasterize(ctx, s)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}

	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	// Landscape swaps the size, so pass it pre-swapped to get width x height.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: height, Ht: width},
	})
	pdf.SetCreator("cleanroom", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("diagram", opts, &buf)
	pw, ph := pdf.GetPageSize()
	pdf.ImageOptions("diagram", 0, 0, pw, ph, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
