package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/db"
	"github.com/banshee-data/animal.report/internal/detect"
	"github.com/banshee-data/animal.report/internal/fsutil"
	"github.com/banshee-data/animal.report/internal/jobs"
	"github.com/banshee-data/animal.report/internal/monitoring"
	"github.com/banshee-data/animal.report/internal/report"
	"github.com/banshee-data/animal.report/internal/timeutil"
)

type serverFixture struct {
	server *Server
	runner *jobs.Runner
	store  *db.DB
	engine *detect.MockEngine
	fs     *fsutil.MemoryFileSystem
}

func newServerFixture(t *testing.T, engine *detect.MockEngine) *serverFixture {
	t.Helper()

	store, err := db.NewDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mfs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	metrics := monitoring.NewMetrics()
	runner := jobs.NewRunner(store, engine, report.NewWriter(mfs), clock, metrics)

	return &serverFixture{
		server: NewServer(context.Background(), runner, store, metrics, mfs, "/uploads"),
		runner: runner,
		store:  store,
		engine: engine,
		fs:     mfs,
	}
}

func uploadRequest(t *testing.T, detectionType, filename string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if detectionType != "" {
		require.NoError(t, mw.WriteField("detection_type", detectionType))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("not really a video"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func livestockFrames() [][]count.Detection {
	return [][]count.Detection{
		{{Class: "cow", TrackID: 1, HasTrack: true, Confidence: 0.9}},
		{{Class: "cow", TrackID: 1, HasTrack: true, Confidence: 0.8},
			{Class: "sheep", TrackID: 2, HasTrack: true, Confidence: 0.7}},
	}
}

func TestProcessVideoAccepted(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1", livestockFrames()...))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "livestock", "pasture.mp4"))

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, db.StatusProcessing, resp["status"])
	require.NotEmpty(t, resp["result_id"])

	// The upload is stored under the job id with the original extension.
	assert.True(t, f.fs.Exists("/uploads/"+resp["result_id"]+".mp4"))

	f.runner.Wait()

	// The engine was pointed at the saved file, not the client name.
	require.Len(t, f.engine.Calls, 1)
	assert.Equal(t, "/uploads/"+resp["result_id"]+".mp4", f.engine.Calls[0])

	rec, err := f.runner.Result(resp["result_id"])
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, rec.Status)
	assert.Equal(t, 2, rec.UniqueEntities)
	assert.Equal(t, "pasture.mp4", rec.VideoSource)
}

func TestProcessVideoInvalidDetectionType(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1"))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "fish", "pasture.mp4"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid detection type")
}

func TestProcessVideoMissingFile(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1"))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "birds", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "video")
}

func TestProcessVideoWrongMethod(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1"))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/process", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestShowResultNotFound(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1"))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/no-such-id", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestListResults(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1", livestockFrames()...))
	mux := f.server.ServeMux()

	// Empty store still returns a JSON array.
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "livestock", "pasture.mp4"))
	require.Equal(t, http.StatusAccepted, w.Code)
	f.runner.Wait()

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var records []*db.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, db.StatusCompleted, records[0].Status)
}

func TestResultChart(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1", livestockFrames()...))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "livestock", "pasture.mp4"))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	f.runner.Wait()

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/"+resp["result_id"]+"/chart", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "echarts")
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1"))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t, detect.NewMockEngine("/results/run1", livestockFrames()...))
	mux := f.server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "livestock", "pasture.mp4"))
	require.Equal(t, http.StatusAccepted, w.Code)
	f.runner.Wait()

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "count_videos_uploaded_total 1")
	assert.Contains(t, string(body), "count_jobs_completed_total 1")
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}
