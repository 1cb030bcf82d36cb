// Package api exposes the HTTP interface: video upload, result queries,
// debug charts and health/metrics endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/animal.report/internal/db"
	"github.com/banshee-data/animal.report/internal/detect"
	"github.com/banshee-data/animal.report/internal/fsutil"
	"github.com/banshee-data/animal.report/internal/httputil"
	"github.com/banshee-data/animal.report/internal/jobs"
	"github.com/banshee-data/animal.report/internal/monitoring"
	"github.com/banshee-data/animal.report/internal/security"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadBytes bounds the multipart form memory spill threshold, not
// the upload size itself; large videos stream to a temp file.
const maxUploadBytes = 64 << 20

type Server struct {
	runner     *jobs.Runner
	store      *db.DB
	metrics    *monitoring.Metrics
	fs         fsutil.FileSystem
	uploadsDir string

	// baseCtx outlives individual requests so background processing
	// survives the upload response.
	baseCtx context.Context
}

func NewServer(ctx context.Context, runner *jobs.Runner, store *db.DB, metrics *monitoring.Metrics, fs fsutil.FileSystem, uploadsDir string) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Server{
		runner:     runner,
		store:      store,
		metrics:    metrics,
		fs:         fs,
		uploadsDir: uploadsDir,
		baseCtx:    ctx,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/process", s.processVideo)
	mux.HandleFunc("/api/results", s.listResults)
	mux.HandleFunc("/api/results/", s.showResult)
	mux.HandleFunc("/api/healthz", s.healthz)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// processVideo accepts a multipart upload and starts a counting job.
// The stored file is named after the job id; video_source, the identity
// used for run comparison, is the client's original filename.
func (s *Server) processVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	detType, err := detect.ParseDetectionType(r.FormValue("detection_type"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		httputil.BadRequest(w, "missing 'video' file field")
		return
	}
	defer file.Close()

	jobID := jobs.NewJobID()
	ext := security.SafeExt(header.Filename, ".mp4")
	savedPath := filepath.Join(s.uploadsDir, jobID+ext)
	if err := security.ValidatePathWithinDirectory(savedPath, s.uploadsDir); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.saveUpload(savedPath, file); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("upload failed: %v", err))
		return
	}

	if _, err := s.runner.Submit(s.baseCtx, jobID, savedPath, header.Filename, detType); err != nil {
		// The job never started; the saved file has no owner.
		if rmErr := s.fs.RemoveAll(savedPath); rmErr != nil {
			monitoring.Logf("[API] Failed to clean up %s: %v", savedPath, rmErr)
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to start job: %v", err))
		return
	}

	s.metrics.VideosUploaded.Add(1)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"result_id": jobID,
		"status":    db.StatusProcessing,
	})
}

func (s *Server) saveUpload(path string, src io.Reader) error {
	if err := s.fs.MkdirAll(s.uploadsDir, 0755); err != nil {
		return err
	}

	dst, err := s.fs.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		if rmErr := s.fs.RemoveAll(path); rmErr != nil {
			monitoring.Logf("[API] Failed to clean up partial upload %s: %v", path, rmErr)
		}
		return err
	}
	return dst.Close()
}

// listResults returns all stored records, newest first.
func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	records, err := s.runner.Results()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve results: %v", err))
		return
	}
	if records == nil {
		records = []*db.Record{}
	}

	httputil.WriteJSONOK(w, records)
}

// showResult serves /api/results/{id} and /api/results/{id}/chart.
func (s *Server) showResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/results/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.BadRequest(w, "missing result id")
		return
	}

	rec, err := s.runner.Result(id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		httputil.NotFound(w, fmt.Sprintf("no result for id %s", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve result: %v", err))
		return
	}

	switch sub {
	case "":
		httputil.WriteJSONOK(w, rec)
	case "chart":
		s.renderClassChart(w, rec)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown resource %q", sub))
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "healthy"})
}
