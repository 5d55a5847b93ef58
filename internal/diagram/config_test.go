package diagram

import (
	"bytes"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanroomJSON = `{
  "title": "Cleanroom cascade",
  "background": "#111827",
  "layers": {"legend": false},
  "zones": [{"x": 80, "y": 100, "width": 200, "height": 150, "fill": "#1d4ed8", "label": "Grade B"}],
  "flows": [{"from": [100, 120], "to": [260, 120]}],
  "hotspots": [{"id": "hepa", "x": 150, "y": 110, "label": "HEPA"}],
  "legend": [{"label": "Supply air", "line": "#f59e0b"}]
}`

const airlockYAML = `
title: Airlock
zones:
  - {x: 10, y: 10, width: 50, height: 50, fill: "#22c55e"}
flows:
  - from: [0, 0]
    to: [10, 10]
    color: "#ef4444"
hotspots:
  - id: door
    x: 20
    y: 20
    label: Door
`

func TestParseConfigJSON(t *testing.T) {
	cfg, err := ParseConfig("diagrams/cleanroom.json", []byte(cleanroomJSON))
	require.NoError(t, err)
	assert.Equal(t, "cleanroom", cfg.Slug)
	assert.Equal(t, "#111827", cfg.BackgroundColor())
	assert.Equal(t, Visibility{Zones: true, Flows: true, Hotspots: true, Legend: false}, cfg.Layers.Resolve())
	assert.Equal(t, [2]float64{260, 120}, cfg.Flows[0].To)
	assert.Equal(t, DefaultFlowColor, cfg.Flows[0].Stroke())
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfig("airlock.yml", []byte(airlockYAML))
	require.NoError(t, err)
	assert.Equal(t, "airlock", cfg.Slug)
	assert.Equal(t, DefaultBackground, cfg.BackgroundColor())
	assert.Equal(t, "#ef4444", cfg.Flows[0].Stroke())
	assert.Equal(t, "Door", cfg.Hotspots[0].Label)
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig("x.json", []byte(`{"zones": [`))
	assert.Error(t, err)
}

func TestParseConfigDropsMalformedLayer(t *testing.T) {
	cfg, err := ParseConfig("ahu.json", []byte(`{
  "zones": "oops",
  "flows": [{"from": [0, 0], "to": "east"}],
  "hotspots": [{"id": "a", "x": 10, "y": 20, "label": "Fan"}]
}`))
	require.NoError(t, err)
	assert.Equal(t, "ahu", cfg.Slug)
	assert.Nil(t, cfg.Zones)
	assert.Nil(t, cfg.Flows)
	require.Len(t, cfg.Hotspots, 1)
	assert.Equal(t, "Fan", cfg.Hotspots[0].Label)
	require.Len(t, cfg.Issues(), 2)
	assert.Contains(t, cfg.Issues()[0].Error(), "zones")
	assert.Contains(t, cfg.Issues()[1].Error(), "flows")

	cfg, err = ParseConfig("ahu.yaml", []byte("legend: 12\nhotspots:\n  - {id: b, x: 1, y: 2, label: Coil}\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Legend)
	require.Len(t, cfg.Hotspots, 1)
	require.Len(t, cfg.Issues(), 1)

	_, err = ParseConfig("list.json", []byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestMalformedLayerStillRenders(t *testing.T) {
	cfg, err := ParseConfig("ahu.json", []byte(`{"zones": {"x": 1}, "hotspots": [{"id": "a", "x": 10, "y": 20, "label": "Fan"}]}`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, NewScene(cfg, DefaultView(), 0, 0)))
	assert.Contains(t, buf.String(), `data-id="a"`)
}

func TestParseVisibility(t *testing.T) {
	vis, err := ParseVisibility("zones, legend")
	require.NoError(t, err)
	assert.Equal(t, Visibility{Zones: true, Legend: true}, vis)

	vis, err = ParseVisibility("")
	require.NoError(t, err)
	assert.Equal(t, Visibility{}, vis)

	_, err = ParseVisibility("zones,grid")
	assert.ErrorIs(t, err, ErrUnknownLayer)

	require.NoError(t, vis.Toggle("flows"))
	assert.True(t, vis.Flows)
}

func TestValidateDuplicateHotspot(t *testing.T) {
	cfg := &Config{Hotspots: []Hotspot{{ID: "a"}, {ID: "b"}, {ID: "a"}}}
	err := cfg.Validate()
	assert.True(t, errors.Is(err, ErrDuplicateHotspot))

	assert.Error(t, (&Config{Hotspots: []Hotspot{{Label: "no id"}}}).Validate())
	assert.NoError(t, (*Config)(nil).Validate())
}

func TestCatalogLoadsAndFallsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"default.json":        {Data: []byte(`{"title": "Default"}`)},
		"hvac/cleanroom.json": {Data: []byte(cleanroomJSON)},
		"airlock.yaml":        {Data: []byte(airlockYAML)},
		"broken.json":         {Data: []byte(`{`)},
		"dupes.json":          {Data: []byte(`{"hotspots": [{"id": "x"}, {"id": "x"}]}`)},
		"partial.json":        {Data: []byte(`{"title": "Partial", "zones": "oops", "hotspots": [{"id": "a"}]}`)},
		"notes.txt":           {Data: []byte("ignored")},
	}

	c := NewCatalog(zerolog.Nop())
	n, err := c.LoadFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"airlock", "cleanroom", "default", "partial"}, c.Slugs())

	cfg, err := c.Get("cleanroom")
	require.NoError(t, err)
	assert.Equal(t, "Cleanroom cascade", cfg.Title)

	cfg, err = c.Get("partial")
	require.NoError(t, err)
	assert.Equal(t, "Partial", cfg.Title)
	assert.Len(t, cfg.Hotspots, 1)

	cfg, err = c.Get("missing")
	require.NoError(t, err)
	assert.Equal(t, "Default", cfg.Title)
}

func TestCatalogWithoutDefault(t *testing.T) {
	c := NewCatalog(zerolog.Nop())
	_, err := c.Get("anything")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := c.LoadDir(t.TempDir() + "/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBundledDiagramsLoad(t *testing.T) {
	c := NewCatalog(zerolog.Nop())
	n, err := c.LoadDir("../../diagrams")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"default", "hvac-ahu"}, c.Slugs())

	ahu, err := c.Get("hvac-ahu")
	require.NoError(t, err)
	h, ok := NewLayer(ahu.Hotspots, nil).Lookup("hepa-bank")
	require.True(t, ok)
	assert.Equal(t, "filter-integrity", h.Target())
	assert.Equal(t, [2]float64{700, 245}, ahu.Flows[3].From)
}
