package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moodreel/internal/analysis"
	"moodreel/internal/emotion"
	"moodreel/internal/logging"
	"moodreel/internal/services"
	"moodreel/internal/staging"
)

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, analyzer Analyzer, opts ServerOptions) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	area := staging.NewArea(root, opts.MaxUploadBytes, []string{"mp4", "avi", "mov"})
	svc := NewAnalysisService(area, staging.NewRunLock(root), analyzer, nil, logging.NewNop())
	return NewServer(opts, svc, nil, logging.NewNop()), root
}

func postVideo(t *testing.T, handler http.Handler, field, filename, content string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeAnalysis(t *testing.T, w *httptest.ResponseRecorder) AnalysisResponse {
	t.Helper()
	var resp AnalysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHandleAnalyzeCompleted(t *testing.T) {
	analyzer := analyzerFunc(func(_ context.Context, path string) (*analysis.Result, error) {
		return completedResult(path, emotion.Surprise, emotion.Happy, emotion.Happy), nil
	})
	srv, _ := newTestServer(t, analyzer, ServerOptions{MaxUploadBytes: 1 << 20})

	w := postVideo(t, srv.Handler(), "video", "birthday.mp4", "frames", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeAnalysis(t, w)
	if resp.File != "birthday.mp4" || resp.Dominant != "happy" || resp.Total != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Entries[0].Label != "happy" || resp.Entries[1].Label != "surprise" {
		t.Fatalf("entries not ranked: %+v", resp.Entries)
	}
}

func TestHandleAnalyzePropagatesRequestID(t *testing.T) {
	var seen string
	analyzer := analyzerFunc(func(ctx context.Context, path string) (*analysis.Result, error) {
		seen, _ = services.RequestIDFromContext(ctx)
		return completedResult(path, emotion.Happy), nil
	})
	srv, _ := newTestServer(t, analyzer, ServerOptions{MaxUploadBytes: 1 << 20})

	w := postVideo(t, srv.Handler(), "video", "clip.mp4", "frames", http.Header{"X-Request-Id": {"req-42"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if seen != "req-42" || w.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}

	w = postVideo(t, srv.Handler(), "video", "clip.mp4", "frames", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestHandleAnalyzeEmpty(t *testing.T) {
	analyzer := analyzerFunc(func(_ context.Context, path string) (*analysis.Result, error) {
		return completedResult(path), nil
	})
	srv, _ := newTestServer(t, analyzer, ServerOptions{})

	w := postVideo(t, srv.Handler(), "video", "empty-room.avi", "frames", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeAnalysis(t, w)
	if resp.Outcome != analysis.OutcomeEmpty || resp.Message != "No emotions detected in video frames." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleAnalyzeSourceUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, analyzerFunc(func(_ context.Context, path string) (*analysis.Result, error) {
		return unreadableResult(path)
	}), ServerOptions{})

	w := postVideo(t, srv.Handler(), "video", "corrupt.mov", "garbage", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if resp := decodeAnalysis(t, w); resp.Message != "Could not read the video file." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestHandleAnalyzeRejections(t *testing.T) {
	neverRun := analyzerFunc(func(context.Context, string) (*analysis.Result, error) {
		t.Fatal("analyzer should not run")
		return nil, nil
	})

	t.Run("bad extension", func(t *testing.T) {
		srv, _ := newTestServer(t, neverRun, ServerOptions{})
		if w := postVideo(t, srv.Handler(), "video", "notes.txt", "x", nil); w.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("expected 415, got %d", w.Code)
		}
	})
	t.Run("missing field", func(t *testing.T) {
		srv, _ := newTestServer(t, neverRun, ServerOptions{})
		if w := postVideo(t, srv.Handler(), "clip", "clip.mp4", "x", nil); w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
	t.Run("too large", func(t *testing.T) {
		srv, _ := newTestServer(t, neverRun, ServerOptions{MaxUploadBytes: 4})
		if w := postVideo(t, srv.Handler(), "video", "clip.mp4", "more than four bytes", nil); w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
		}
	})
	t.Run("not multipart", func(t *testing.T) {
		srv, _ := newTestServer(t, neverRun, ServerOptions{})
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
	t.Run("wrong method", func(t *testing.T) {
		srv, _ := newTestServer(t, neverRun, ServerOptions{})
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", w.Code)
		}
	})
}

func TestHandleAnalyzeBusy(t *testing.T) {
	srv, root := newTestServer(t, analyzerFunc(func(context.Context, string) (*analysis.Result, error) {
		t.Fatal("analyzer should not run while busy")
		return nil, nil
	}), ServerOptions{})
	holder := staging.NewRunLock(root)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer holder.Release()

	if w := postVideo(t, srv.Handler(), "video", "clip.mp4", "x", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(ServerOptions{}, nil, func(context.Context) HealthResponse {
		return HealthResponse{Status: "degraded", Classifier: "fer", Checks: []CheckStatus{{Name: "Classifier (fer)", Detail: "connection refused"}}}
	}, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Checks) != 1 || resp.Checks[0].Passed {
		t.Fatalf("unexpected checks: %+v", resp.Checks)
	}

	plain := NewServer(ServerOptions{}, nil, nil, nil)
	w = httptest.NewRecorder()
	plain.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without health func, got %d", w.Code)
	}
}

func TestHandleIndex(t *testing.T) {
	srv := NewServer(ServerOptions{}, nil, nil, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected index response: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), `name="video"`) {
		t.Fatal("index should contain the upload form")
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestServerStartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := NewServer(ServerOptions{Bind: "127.0.0.1:0"}, nil, nil, nil)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	srv.Stop()

	if err := NewServer(ServerOptions{}, nil, nil, nil).Start(ctx); err == nil {
		t.Fatal("expected error for empty bind")
	}
}
