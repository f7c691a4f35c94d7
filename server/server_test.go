package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ClipForge/config"
	"ClipForge/core/app"
	"ClipForge/core/auth"
	"ClipForge/core/events"
	"ClipForge/core/project"
	"ClipForge/core/timeline"
	"ClipForge/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		AssetRoot:        filepath.Join(dir, "assets"),
		AssetDB:          "sqlite",
		SQLitePath:       filepath.Join(dir, "assets.db"),
		FetchTimeout:     2 * time.Second,
		FetchBurst:       1,
		InstallTimeout:   time.Second,
		TimelineWidth:    64,
		TimelineHeight:   96,
		TimelineFPS:      25,
		AudioSampleRate:  44100,
		AudioChannels:    2,
		FrameGrabTimeout: time.Second,
		CanvasID:         "preview",
	}
}

func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		VideoClips: []model.VideoClip{{
			UUID:      "clip-a",
			M3U8Path:  "/media/a.m3u8",
			VideoType: model.ClipVideo,
			SplitList: []model.SplitSegment{
				{ID: "s1", CaptureIn: 0, CaptureOut: 2_000_000},
				{ID: "s2", CaptureIn: 2_000_000, CaptureOut: 5_000_000},
			},
		}},
		Captions: []model.Caption{{ID: "cap-1", Text: "hello", Duration: 1_000_000}},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *app.App) {
	t.Helper()
	a, err := app.Open(context.Background(), cfg, app.Options{Source: project.NewStaticSource(sampleSnapshot())})
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(a))
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv, a
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeState(t *testing.T, resp *http.Response) StateResponse {
	t.Helper()
	var st StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestBuildAndState(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	resp := post(t, srv.URL+"/api/timeline/build", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeState(t, resp)
	assert.Equal(t, "composed", st.State)
	assert.Equal(t, int64(5_000_000), st.Duration)

	resp, err := http.Get(srv.URL + "/api/timeline/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "composed", decodeState(t, resp).State)
}

func TestBuildWithOverride(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	body := `{"videoClips":[{"uuid":"x","m3u8Path":"/media/x.m3u8","videoType":"video","splitList":[{"id":"only","captureIn":0,"captureOut":1000000}]}]}`
	resp := post(t, srv.URL+"/api/timeline/build", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1_000_000), decodeState(t, resp).Duration)
}

func TestAfreshClip(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/timeline/build", "").StatusCode)

	resp := post(t, srv.URL+"/api/timeline/clips/clip-a/afresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv.URL+"/api/timeline/clips/missing/afresh", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaySeekStop(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/timeline/build", "").StatusCode)

	resp := post(t, srv.URL+"/api/timeline/seek", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/timeline/seek", `{"position":99000000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(5_000_000), decodeState(t, resp).Position)

	resp = post(t, srv.URL+"/api/timeline/play", `{"start":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeState(t, resp).Playing)

	resp = post(t, srv.URL+"/api/timeline/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeState(t, resp).Playing)
}

func TestFrame(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/timeline/build", "").StatusCode)

	resp, err := http.Get(srv.URL + "/api/timeline/frame?point=1000000")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	bad, err := http.Get(srv.URL + "/api/timeline/frame?point=abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSetCaptionAndDeleteClip(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/timeline/build", "").StatusCode)

	do := func(method, path, body string) int {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPut, "/api/timeline/captions/cap-1", `{"scale":1.5}`))
	assert.Equal(t, http.StatusNotFound, do(http.MethodPut, "/api/timeline/captions/nope", `{}`))
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/timeline/tracks/video/clips/0", ""))
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/timeline/tracks/video/clips/9", ""))
	assert.Equal(t, http.StatusBadRequest, do(http.MethodDelete, "/api/timeline/tracks/subtitle/clips/0", ""))
}

func TestResolveAsset(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer origin.Close()

	cfg := testConfig(t)
	srv, _ := newTestServer(t, cfg)

	resp := post(t, srv.URL+"/api/assets/resolve", `{"url":"`+origin.URL+`/media/intro.m3u8"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ResolveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Result, cfg.AssetRoot), out.Result)
	assert.True(t, strings.HasSuffix(out.Result, "intro.m3u8"), out.Result)

	resp = post(t, srv.URL+"/api/assets/resolve", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = "s3cret"
	srv, _ := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/api/timeline/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.IssueToken(cfg.JWTSecret, "tester", time.Minute)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/timeline/state", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 健康检查与指标不鉴权
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventsFeed(t *testing.T) {
	srv, a := newTestServer(t, testConfig(t))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?topics=timeline"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Events.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/timeline/build", "").StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, events.MsgTypeTimeline, msg.Type)
	var ev timeline.Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, timeline.EventBuilt, ev.Type)
	assert.Equal(t, int64(5_000_000), ev.Duration)

	ping, _ := json.Marshal(&events.WSMessage{Type: events.MsgTypePing})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ping))
	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, bytes.Contains(raw, []byte(`"pong"`)))
}
