package web

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/root4loot/grabber/pkg/capture"
	"github.com/root4loot/grabber/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func fixedAdapter(img image.Image) capture.Adapter {
	return capture.AdapterFunc(func(ctx context.Context) (image.Image, error) {
		return img, nil
	})
}

// blockingAdapter returns img once release is closed.
func blockingAdapter(img image.Image, release <-chan struct{}) capture.Adapter {
	return capture.AdapterFunc(func(ctx context.Context) (image.Image, error) {
		select {
		case <-release:
			return img, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, opts...)
	t.Cleanup(func() { s.cancel() })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func state(t *testing.T, s *Server, name string) stateResponse {
	t.Helper()
	resp := do(t, s, http.MethodGet, "/api/"+name+"/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var st stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func waitDelivered(t *testing.T, s *Server, name string) stateResponse {
	t.Helper()
	var st stateResponse
	require.Eventually(t, func() bool {
		st = state(t, s, name)
		return st.State.State == host.StateDelivered && !st.Busy
	}, 5*time.Second, 20*time.Millisecond)
	return st
}

func TestPagesRender(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "/screen"},
		{"/page", "data-capture-widget"},
		{"/screen", "/screen/widget"},
		{"/page/widget", "Capture full page"},
		{"/screen/widget", "Capture screen"},
	}

	for _, tt := range tests {
		resp := do(t, s, http.MethodGet, tt.path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, tt.path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(b), tt.contains, tt.path)
	}
}

func TestRasterCopyStaysSilent(t *testing.T) {
	s := testServer(t)

	doc, ok := s.adapters[host.PageVariant.Name].(*capture.Document)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(doc.Options.URL, "/page?raster=1"), doc.Options.URL)

	body := func(path string) string {
		resp := do(t, s, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}
	silent := regexp.MustCompile(`const raster = \s*true\s*;`)

	live := body("/page")
	assert.Contains(t, live, `src="/page/widget"`)
	assert.False(t, silent.MatchString(live))
	assert.False(t, silent.MatchString(body("/page/widget")))

	raster := body("/page?raster=1")
	assert.Contains(t, raster, `src="/page/widget?raster=1"`)
	assert.True(t, silent.MatchString(raster))
	assert.True(t, silent.MatchString(body("/page/widget?raster=1")))
}

func TestUnknownVariant(t *testing.T) {
	s := testServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/video", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/video/state", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/video/capture", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/download/video", "").StatusCode)
}

func TestCaptureAndDownload(t *testing.T) {
	s := testServer(t, WithAdapter("page", fixedAdapter(testImage(40, 30))))

	resp := do(t, s, http.MethodPost, "/api/page/ready", `{"height": 600}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	st := state(t, s, "page")
	assert.Equal(t, host.StateAwaitingTrigger, st.State.State)
	assert.Equal(t, 600, st.State.FrameHeight)

	resp = do(t, s, http.MethodPost, "/api/page/capture", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	st = waitDelivered(t, s, "page")
	assert.Equal(t, host.KindSuccess, st.State.Outcome)
	assert.Equal(t, 40, st.State.Width)
	assert.Equal(t, 30, st.State.Height)
	assert.Equal(t, capture.StatusSuccess, st.Status.Kind)

	resp = do(t, s, http.MethodGet, "/download/page", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), host.PageVariant.Filename)

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestCaptureWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	s := testServer(t, WithAdapter("page", blockingAdapter(testImage(4, 4), release)))

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/page/ready", `{"height": 550}`).StatusCode)
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/page/capture", "").StatusCode)

	assert.True(t, state(t, s, "page").Busy)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/page/capture", "").StatusCode)

	close(release)
	waitDelivered(t, s, "page")

	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/page/capture", "").StatusCode)
	waitDelivered(t, s, "page")
}

func TestCaptureBeforeReady(t *testing.T) {
	s := testServer(t, WithAdapter("page", fixedAdapter(testImage(4, 4))))

	resp := do(t, s, http.MethodPost, "/api/page/capture", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, host.StateIdle, state(t, s, "page").State.State)
}

func TestDownloadBeforeCapture(t *testing.T) {
	s := testServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/download/page", "").StatusCode)
}

func TestCancelledCaptureHasNoDownload(t *testing.T) {
	denied := capture.AdapterFunc(func(ctx context.Context) (image.Image, error) {
		return nil, capture.ErrPermissionDenied
	})
	s := testServer(t, WithAdapter("screen", denied))

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/screen/ready", `{"height": 550}`).StatusCode)
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/screen/capture", "").StatusCode)

	st := waitDelivered(t, s, "screen")
	assert.Equal(t, host.KindCancelled, st.State.Outcome)
	assert.Equal(t, capture.StatusCancelled, st.Status.Kind)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/download/screen", "").StatusCode)
}

func TestFrameHeight(t *testing.T) {
	s := testServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/page/frame-height", `{"height":`).StatusCode)
	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/page/frame-height", `{"height": 720}`).StatusCode)
	assert.Equal(t, 720, state(t, s, "page").State.FrameHeight)
}

func TestPermission(t *testing.T) {
	s := testServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/screen/permission", `{}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/screen/permission", `{"id": "nope", "granted": true}`).StatusCode)

	granted := make(chan bool, 1)
	go func() {
		ok, _ := s.Prompts().Request(context.Background())
		granted <- ok
	}()

	var id string
	require.Eventually(t, func() bool {
		pending := s.Prompts().Pending()
		if len(pending) == 1 {
			id = pending[0]
			return true
		}
		return false
	}, time.Second, 10*time.Millisecond)

	resp := do(t, s, http.MethodPost, "/api/screen/permission", `{"id": "`+id+`", "granted": true}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, <-granted)
	assert.Empty(t, s.Prompts().Pending())
}

func TestWebsocketGreeting(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:18517"
	s := NewServer(cfg, WithAdapter("page", fixedAdapter(testImage(4, 4))))
	go s.Start()
	t.Cleanup(func() { s.Shutdown() })

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial("ws://127.0.0.1:18517/ws/page", nil)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	defer conn.Close()

	read := func() message {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := read()
	require.Equal(t, messageStatus, msg.Type)
	assert.Equal(t, capture.StatusReady, msg.Status.Kind)

	msg = read()
	require.Equal(t, messageState, msg.Type)
	assert.Equal(t, host.StateIdle, msg.State.State)

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/page/ready", `{"height": 500}`).StatusCode)

	msg = read()
	require.Equal(t, messageState, msg.Type)
	assert.Equal(t, host.StateAwaitingTrigger, msg.State.State)

	msg = read()
	require.Equal(t, messageState, msg.Type)
	assert.Equal(t, 500, msg.State.FrameHeight)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := testServer(t)
	assert.Equal(t, http.StatusUpgradeRequired, do(t, s, http.MethodGet, "/ws/page", "").StatusCode)
}
