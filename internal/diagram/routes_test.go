package diagram

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routesFixture struct {
	router  chi.Router
	h       *Handlers
	exports []string
	viewers []int
}

func newRoutesFixture(t *testing.T, r Rasterizer) *routesFixture {
	t.Helper()
	f := &routesFixture{}
	cat := NewCatalog(zerolog.Nop())
	cat.Put(&Config{Slug: DefaultSlug, Title: "Default"})
	cat.Put(&Config{Slug: "cleanroom", Title: "Cleanroom", Hotspots: sampleHotspots()})

	f.h = &Handlers{
		Catalog:  cat,
		Exporter: NewExporter(r),
		Sessions: NewSessions(func(n int) { f.viewers = append(f.viewers, n) }),
		OnExport: func(format string) { f.exports = append(f.exports, format) },
		Log:      zerolog.Nop(),
	}
	f.router = chi.NewRouter()
	RegisterRoutes(f.router, f.h)
	return f
}

func (f *routesFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestListAndConfig(t *testing.T) {
	f := newRoutesFixture(t, &solidRasterizer{})

	w := f.do(t, http.MethodGet, "/api/diagrams", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"cleanroom", "default"}, decode(t, w)["diagrams"])

	w = f.do(t, http.MethodGet, "/api/diagrams/cleanroom", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cleanroom", decode(t, w)["title"])

	w = f.do(t, http.MethodGet, "/api/diagrams/unknown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Default", decode(t, w)["title"])
}

func TestConfigNotFoundWithoutDefault(t *testing.T) {
	f := newRoutesFixture(t, nil)
	f.h.Catalog = NewCatalog(zerolog.Nop())
	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderSVGWithQuery(t *testing.T) {
	f := newRoutesFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.svg?x=20&y=10&scale=1.5&active=ahu", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `<g transform="translate(20,10) scale(1.5)">`)
	assert.Contains(t, w.Body.String(), `data-id="ahu"`)
	assert.Equal(t, []string{"svg"}, f.exports)
}

func TestRenderLayersQuery(t *testing.T) {
	f := newRoutesFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.svg?layers=zones,legend&active=ahu", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `data-id="ahu"`)

	w = f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.svg?layers=hotspots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-id="ahu"`)

	w = f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.svg?layers=grid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "unknown layer")
}

func TestViewerToggleEvent(t *testing.T) {
	f := newRoutesFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/diagrams/cleanroom/viewer", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{"events":[{"type":"toggle","layer":"hotspots"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	layers := decode(t, w)["state"].(map[string]any)["layers"].(map[string]any)
	assert.Equal(t, false, layers["hotspots"])

	w = f.do(t, http.MethodGet, "/api/viewers/"+id+"/render.svg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `class="hotspot"`)
}

func TestRenderClampsScale(t *testing.T) {
	f := newRoutesFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.svg?scale=50&x=NaN", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<g transform="translate(0,0) scale(4)">`)
}

func TestRenderPNGAndPDF(t *testing.T) {
	f := newRoutesFixture(t, &solidRasterizer{})

	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.png?width=300&height=200", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "diagram.png")
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	w = f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, []string{"png", "pdf"}, f.exports)
}

func TestRenderErrors(t *testing.T) {
	f := newRoutesFixture(t, failingRasterizer{err: errors.New("no canvas")})

	w := f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.gif", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/diagrams/cleanroom/render.png", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no canvas")
	assert.Empty(t, f.exports)
}

func TestViewerLifecycle(t *testing.T) {
	f := newRoutesFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/diagrams/cleanroom/viewer", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events",
		`{"events":[{"type":"zoomin"},{"type":"select","id":"grade-a"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unidirectional-flow", body["navigate"])
	st := body["state"].(map[string]any)
	assert.InDelta(t, 1.2, st["view"].(map[string]any)["scale"], eps)
	assert.Equal(t, "grade-a", st["active_id"])

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{"events":[{"type":"dismiss"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.NotContains(t, body, "navigate")
	assert.Nil(t, body["state"].(map[string]any)["active_id"])

	w = f.do(t, http.MethodGet, "/api/viewers/"+id+"/render.svg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scale(1.2)")

	w = f.do(t, http.MethodGet, "/api/viewers/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cleanroom", decode(t, w)["slug"])

	w = f.do(t, http.MethodDelete, "/api/viewers/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{"events":[{"type":"reset"}]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodDelete, "/api/viewers/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []int{1, 0}, f.viewers)
}

func TestViewerEventErrors(t *testing.T) {
	f := newRoutesFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/diagrams/cleanroom/viewer", "")
	id := decode(t, w)["id"].(string)

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{"events":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Provide events[]", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/viewers/"+id+"/events", `{"events":[{"type":"teleport"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "event 0")
}

func TestSessionsSweep(t *testing.T) {
	var counts []int
	s := NewSessions(func(n int) { counts = append(counts, n) })
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := s.Create("a", nil)
	now = now.Add(20 * time.Minute)
	fresh := s.Create("b", nil)

	assert.Equal(t, 1, s.Sweep(10*time.Minute))
	assert.Equal(t, 1, s.Len())
	_, err := s.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = s.Get(old.ID)
	assert.ErrorIs(t, err, ErrUnknownViewer)
	_, err = old.Viewer.Apply(Event{Type: EventReset})
	assert.Error(t, err)

	assert.Zero(t, s.Sweep(10*time.Minute))
	s.CloseAll()
	assert.Zero(t, s.Len())
	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}
