package diagram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type solidRasterizer struct {
	calls int
}

func (r *solidRasterizer) Rasterize(_ context.Context, s *Scene) (image.Image, error) {
	r.calls++
	w, h := s.size()
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

type failingRasterizer struct{ err error }

func (r failingRasterizer) Rasterize(context.Context, *Scene) (image.Image, error) {
	return nil, r.err
}

func testScene() *Scene {
	return NewScene(&Config{
		Title:    "Cascade",
		Zones:    []Zone{{X: 80, Y: 100, Width: 200, Height: 150, Fill: "#1d4ed8", Label: "Grade B"}},
		Flows:    []Flow{{From: [2]float64{100, 120}, To: [2]float64{260, 120}}},
		Hotspots: sampleHotspots(),
		Legend:   []LegendItem{{Label: "Supply", Line: "#f59e0b"}, {Label: "Grade A", Color: "#22c55e"}},
	}, View{X: 20, Y: 10, Scale: 1.5}, 0, 0)
}

func TestFormat(t *testing.T) {
	f, err := ParseFormat("png")
	require.NoError(t, err)
	assert.Equal(t, "diagram.png", f.Filename())
	assert.Equal(t, "image/png", f.ContentType())
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestExportPNGWithGG(t *testing.T) {
	var buf bytes.Buffer
	s := testScene()
	require.NoError(t, NewExporter(nil).Export(context.Background(), FormatPNG, s, &buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())

	// Top-left corner is outside the frame, so it shows the background.
	r, g, b, _ := color.RGBAModel.Convert(img.At(2, 2)).(color.RGBA).RGBA()
	assert.InDelta(t, 0x0f, r>>8, 2)
	assert.InDelta(t, 0x17, g>>8, 2)
	assert.InDelta(t, 0x2a, b>>8, 2)
}

func TestRasterHonoursLayers(t *testing.T) {
	pixel := func(s *Scene) color.RGBA {
		var buf bytes.Buffer
		require.NoError(t, NewExporter(nil).Export(context.Background(), FormatPNG, s, &buf))
		img, err := png.Decode(&buf)
		require.NoError(t, err)
		// Inside the zone, away from labels, flows and markers.
		return color.RGBAModel.Convert(img.At(420, 370)).(color.RGBA)
	}

	shown := pixel(testScene())
	hidden := pixel(testScene().WithLayers(Visibility{Flows: true, Hotspots: true, Legend: true}))
	assert.NotEqual(t, shown, hidden)
	assert.InDelta(t, 0x0f, int(hidden.R), 2)
}

func TestExportPDF(t *testing.T) {
	var buf bytes.Buffer
	r := &solidRasterizer{}
	require.NoError(t, NewExporter(r).Export(context.Background(), FormatPDF, testScene(), &buf))

	assert.Equal(t, 1, r.calls)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "/MediaBox [0 0 900.00 560.00]")
}

func TestExportNilSceneIsNoop(t *testing.T) {
	r := &solidRasterizer{}
	e := NewExporter(r)
	for _, f := range []Format{FormatSVG, FormatPNG, FormatPDF} {
		var buf bytes.Buffer
		require.NoError(t, e.Export(context.Background(), f, nil, &buf))
		assert.Zero(t, buf.Len(), "format %s", f)
	}
	assert.Zero(t, r.calls)
}

func TestExportPropagatesRasterizerFailure(t *testing.T) {
	boom := errors.New("boom")
	e := NewExporter(failingRasterizer{err: boom})
	for _, f := range []Format{FormatPNG, FormatPDF} {
		var buf bytes.Buffer
		err := e.Export(context.Background(), f, testScene(), &buf)
		assert.True(t, errors.Is(err, boom), "format %s", f)
		assert.Zero(t, buf.Len())
	}
}

func TestRasterizeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGGRasterizer().Rasterize(ctx, testScene())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderSVG(t *testing.T) {
	s := testScene().WithActive("ahu")
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, s))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" width="900" height="560"`))
	assert.Contains(t, out, `<g transform="translate(20,10) scale(1.5)">`)
	assert.Equal(t, 3, strings.Count(out, `class="hotspot"`))
	assert.Contains(t, out, `marker-end="url(#arrow)"`)
	assert.Contains(t, out, ">Legend<")
	assert.Contains(t, out, `<g class="panel" data-id="ahu">`)
	assert.Contains(t, out, "Air handling unit with HEPA terminal filters.")
}

func TestRenderSVGHidesLayers(t *testing.T) {
	off := false
	s := testScene()
	s.Config.Layers = &Layers{Flows: &off, Hotspots: &off, Legend: &off}

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, s))
	out := buf.String()
	assert.NotContains(t, out, "<line")
	assert.NotContains(t, out, `class="hotspot"`)
	assert.NotContains(t, out, ">Legend<")
	assert.Contains(t, out, "Grade B")
}

func TestRenderSVGEscapesText(t *testing.T) {
	s := NewScene(&Config{Hotspots: []Hotspot{{ID: "x", Label: `<script>&"`}}}, DefaultView(), 0, 0)
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, s))
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;&amp;")
}

func TestWithActiveUnknownLeavesPanelClosed(t *testing.T) {
	assert.Nil(t, testScene().WithActive("nope").Panel)
	assert.Nil(t, NewScene(nil, DefaultView(), 0, 0).WithActive("ahu").Panel)
}

func TestWrapText(t *testing.T) {
	assert.Nil(t, wrapText("   ", 10))
	assert.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
	assert.Equal(t, []string{"supercalifragilistic", "x"}, wrapText("supercalifragilistic x", 5))
}
