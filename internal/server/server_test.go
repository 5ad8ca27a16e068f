package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ffmpeg-api/internal/auth"
	"github.com/sakif/ffmpeg-api/internal/runner"
	"github.com/sakif/ffmpeg-api/internal/server"
	"github.com/sakif/ffmpeg-api/internal/testutil"
)

const testSecret = "server-test-secret-0123456789"

func newTestServer(t *testing.T, cfg server.Config) *httptest.Server {
	t.Helper()
	cfg.Tool = testutil.FakeFFmpeg(t)
	cfg.RunnerName = "exec"
	cfg.TempDir = t.TempDir()

	r := runner.NewExec(runner.Config{Timeout: 10 * time.Second}, testutil.Logger())
	s, err := server.New(cfg, r, testutil.Logger())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func uploadBody(t *testing.T, commands string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.mov")
	require.NoError(t, err)
	_, err = fw.Write([]byte("movie bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("commands", commands))
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t, server.Config{})

	t.Run("root", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Contains(t, body["message"], "/process")
	})

	t.Run("health", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "exec", body["runner"])
	})

	t.Run("process", func(t *testing.T) {
		body, ct := uploadBody(t, "-c copy")
		res, err := http.Post(ts.URL+"/process", ct, body)
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		got, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "movie bytes", string(got))
		assert.Equal(t, `attachment; filename="clip_transformed.mov"`, res.Header.Get("Content-Disposition"))
	})

	t.Run("process rejects GET", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/process")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		text, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Contains(t, string(text), `ffmpeg_api_http_requests_total{method="POST",path="/process",status="200"} 1`)
		assert.Contains(t, string(text), `ffmpeg_api_transcodes_total{outcome="success"} 1`)
		assert.Contains(t, string(text), "go_goroutines")
	})
}

func TestServer_Auth(t *testing.T) {
	ts := newTestServer(t, server.Config{JWTSecret: testSecret})

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	token, err := tokens.Generate("test-client", time.Hour)
	require.NoError(t, err)

	t.Run("no token", func(t *testing.T) {
		body, ct := uploadBody(t, "-c copy")
		res, err := http.Post(ts.URL+"/process", ct, body)
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		var e map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
		assert.Equal(t, "unauthorized", e["error"])
	})

	t.Run("valid token", func(t *testing.T) {
		body, ct := uploadBody(t, "-c copy")
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/process", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+token)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("health stays public", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})
}

func TestNew_Errors(t *testing.T) {
	_, err := server.New(server.Config{}, nil, testutil.Logger())
	assert.Error(t, err)

	r := runner.NewExec(runner.Config{}, testutil.Logger())
	_, err = server.New(server.Config{JWTSecret: "short"}, r, testutil.Logger())
	assert.Error(t, err)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	r := runner.NewExec(runner.Config{}, testutil.Logger())
	s, err := server.New(server.Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, r, testutil.Logger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", server.Config{Host: "0.0.0.0", Port: 8080}.Addr())
	assert.Equal(t, "[::1]:9000", server.Config{Host: "::1", Port: 9000}.Addr())
}
