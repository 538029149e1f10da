package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	drawingconverter "github.com/menta2k/drawing-converter"
	"github.com/menta2k/drawing-converter/internal/config"
	"github.com/menta2k/drawing-converter/internal/dto"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Recognition.StageDelaysMs = config.StageDelays{}
	if mutate != nil {
		mutate(cfg)
	}
	conv, err := drawingconverter.New(cfg, logger.NewNop())
	require.NoError(t, err)
	s := New(cfg, conv.NewSession, logger.NewNop())
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.GetApp().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return do(t, s, method, path, r, "application/json")
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, s *Server, id string, data []byte, partType string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="drawing.png"`)
	h.Set("Content-Type", partType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())
	return do(t, s, http.MethodPost, "/api/sessions/"+id+"/image", &body, mw.FormDataContentType())
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out dto.CreateSessionResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.ID)
	return out.ID
}

func processedSession(t *testing.T, s *Server) string {
	t.Helper()
	id := createSession(t, s)
	require.Equal(t, http.StatusOK, upload(t, s, id, pngBytes(t, 640, 480), "image/png").StatusCode)
	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/process?wait=true", "").StatusCode)
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	resp := doJSON(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	id := processedSession(t, s)

	var v session.View
	decode(t, doJSON(t, s, http.MethodGet, "/api/sessions/"+id, ""), &v)
	assert.Equal(t, id, v.ID)
	assert.True(t, v.HasProcessed)
	assert.Equal(t, "Complete! Review flagged dimensions.", v.Status)
	require.Len(t, v.Annotations, 5)
	assert.True(t, v.Annotations[2].LowConfidence)
	assert.True(t, v.Annotations[2].Editable)
	assert.False(t, v.Annotations[0].Editable)

	resp := doJSON(t, s, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, s, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, nil)
	resp := doJSON(t, s, http.MethodGet, "/api/sessions/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e dto.ErrorResponse
	decode(t, resp, &e)
	assert.Equal(t, 404, e.Code)
	assert.Equal(t, "session not found", e.Message)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, nil)
	id := createSession(t, s)

	resp := upload(t, s, id, []byte("just some notes"), "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = upload(t, s, id, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e dto.ErrorResponse
	decode(t, resp, &e)
	assert.Equal(t, "error loading image", e.Message)

	resp = do(t, s, http.MethodPost, "/api/sessions/"+id+"/image", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessWithoutImage(t *testing.T) {
	s := newTestServer(t, nil)
	id := createSession(t, s)
	resp := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/process", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProcessInBackground(t *testing.T) {
	s := newTestServer(t, nil)
	id := createSession(t, s)
	require.Equal(t, http.StatusOK, upload(t, s, id, pngBytes(t, 320, 240), "image/png").StatusCode)

	resp := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/process", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var pr dto.ProcessResponse
	decode(t, resp, &pr)

	app := s.GetApp()
	assert.Eventually(t, func() bool {
		r, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil), 5000)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var v session.View
		if json.NewDecoder(r.Body).Decode(&v) != nil {
			return false
		}
		return !v.Processing && len(v.Annotations) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOverlayAndExport(t *testing.T) {
	s := newTestServer(t, nil)
	id := createSession(t, s)

	resp := doJSON(t, s, http.MethodGet, "/api/sessions/"+id+"/overlay", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.Equal(t, http.StatusOK, upload(t, s, id, pngBytes(t, 640, 480), "image/png").StatusCode)
	resp = doJSON(t, s, http.MethodGet, "/api/sessions/"+id+"/export", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/sessions/"+id+"/overlay", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/process?wait=true", "").StatusCode)
	resp = doJSON(t, s, http.MethodGet, "/api/sessions/"+id+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^attachment; filename="converted-drawing-\d+\.png"$`, resp.Header.Get("Content-Disposition"))

	defer resp.Body.Close()
	cfg, err := png.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 560, cfg.Height)
}

func TestZoom(t *testing.T) {
	s := newTestServer(t, nil)
	id := createSession(t, s)

	var z dto.ZoomResponse
	decode(t, doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/zoom", `{"action":"in"}`), &z)
	assert.Equal(t, 1.25, z.Zoom)
	assert.Equal(t, 125, z.ZoomPercent)

	decode(t, doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/zoom", `{"zoom":9}`), &z)
	assert.Equal(t, 3.0, z.Zoom)

	resp := doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/zoom", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditFlow(t *testing.T) {
	s := newTestServer(t, nil)
	id := processedSession(t, s)
	base := "/api/sessions/" + id

	resp := doJSON(t, s, http.MethodPost, base+"/selection", `{"id":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, base+"/selection", `{"id":42}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, base+"/selection", `{"id":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v session.View
	decode(t, resp, &v)
	require.NotNil(t, v.Selection)
	assert.Equal(t, "0.375", v.Selection.Draft)
	assert.Equal(t, "9.53", v.Selection.Preview)

	var d dto.DraftResponse
	decode(t, doJSON(t, s, http.MethodPut, base+"/selection/draft", `{"value":"0.5"}`), &d)
	assert.Equal(t, "12.70", d.Preview)

	resp = doJSON(t, s, http.MethodPost, base+"/selection/save", `{"value":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, base+"/selection/save", `{"value":"0.500"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved dto.SaveResponse
	decode(t, resp, &saved)
	assert.Equal(t, 3, saved.Annotation.ID)
	assert.Equal(t, "12.70", saved.Annotation.Metric)
	assert.Equal(t, 100, saved.Annotation.Confidence)

	resp = doJSON(t, s, http.MethodPost, base+"/selection/save", `{"value":"1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelSelection(t *testing.T) {
	s := newTestServer(t, nil)
	id := processedSession(t, s)
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, base+"/selection", `{"id":5}`).StatusCode)
	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPut, base+"/selection/draft", `{"value":"9"}`).StatusCode)
	assert.Equal(t, http.StatusNoContent, doJSON(t, s, http.MethodDelete, base+"/selection", "").StatusCode)

	var v session.View
	decode(t, doJSON(t, s, http.MethodGet, base, ""), &v)
	assert.Nil(t, v.Selection)
	assert.Equal(t, "0.125", v.Annotations[4].Imperial)
}

func TestAllowAnyEdit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Editor.AllowAnyConfidence = true })
	id := processedSession(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/selection", `{"id":1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMalformedEditSavesZero(t *testing.T) {
	s := newTestServer(t, nil)
	id := processedSession(t, s)
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, base+"/selection", `{"id":5}`).StatusCode)
	var saved dto.SaveResponse
	decode(t, doJSON(t, s, http.MethodPost, base+"/selection/save", `{"value":"abc"}`), &saved)
	assert.Equal(t, "abc", saved.Annotation.Imperial)
	assert.Equal(t, "0.00", saved.Annotation.Metric)
}
