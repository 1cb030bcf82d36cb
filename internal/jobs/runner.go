// Package jobs runs the processing pipeline for submitted videos: engine
// stream, aggregation, run comparison, artifact writing and persistence.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/db"
	"github.com/banshee-data/animal.report/internal/detect"
	"github.com/banshee-data/animal.report/internal/monitoring"
	"github.com/banshee-data/animal.report/internal/report"
	"github.com/banshee-data/animal.report/internal/timeutil"
)

// ErrJobNotFound is returned by Result for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Runner coordinates background processing jobs. Each submitted video
// gets exactly one aggregation pass in its own goroutine; status and
// results are served from an in-memory record cache backed by the store.
type Runner struct {
	store   *db.DB
	engine  detect.Engine
	writer  *report.Writer
	clock   timeutil.Clock
	metrics *monitoring.Metrics

	mu    sync.RWMutex
	cache map[string]*db.Record

	wg sync.WaitGroup
}

// NewRunner creates a Runner. A nil metrics argument gets a private
// unexported registry.
func NewRunner(store *db.DB, engine detect.Engine, writer *report.Writer, clock timeutil.Clock, metrics *monitoring.Metrics) *Runner {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Runner{
		store:   store,
		engine:  engine,
		writer:  writer,
		clock:   clock,
		metrics: metrics,
		cache:   make(map[string]*db.Record),
	}
}

// NewJobID generates a job id. The API layer allocates ids before
// saving uploads so the stored file can carry the id in its name.
func NewJobID() string {
	return uuid.New().String()
}

// Submit registers a new processing job for videoPath and starts it in
// the background. videoSource is the identity recorded for run
// comparison; jobs for the same source string compare against each
// other. The context should be the server's base context, not a request
// context, so processing survives the upload response.
func (r *Runner) Submit(ctx context.Context, jobID, videoPath, videoSource string, detType detect.DetectionType) (string, error) {
	if _, err := detect.ParseDetectionType(string(detType)); err != nil {
		return "", err
	}
	if jobID == "" {
		jobID = NewJobID()
	}
	rec := &db.Record{
		ResultID:      jobID,
		DetectionType: string(detType),
		VideoSource:   videoSource,
		Status:        db.StatusProcessing,
		CreatedAt:     r.clock.Now(),
	}

	if err := r.store.InsertProcessing(rec); err != nil {
		return "", fmt.Errorf("failed to register job: %w", err)
	}

	r.mu.Lock()
	r.cache[jobID] = rec
	r.mu.Unlock()

	r.metrics.JobsStarted.Add(1)
	r.metrics.ActiveJobs.Add(1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.metrics.ActiveJobs.Add(-1)
		r.process(ctx, jobID, videoPath, videoSource, detType)
	}()

	monitoring.Logf("[Jobs] Started job %s for %s (%s)", jobID, videoSource, detType)
	return jobID, nil
}

// process runs one aggregation pass end to end.
func (r *Runner) process(ctx context.Context, jobID, videoPath, videoSource string, detType detect.DetectionType) {
	start := r.clock.Now()

	stream, err := r.engine.Analyze(ctx, videoPath, detType)
	if err != nil {
		r.fail(jobID, fmt.Errorf("engine start: %w", err))
		return
	}
	defer stream.Close()

	agg := count.NewAggregator(videoSource)
	for {
		dets, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail(jobID, fmt.Errorf("detection stream: %w", err))
			return
		}

		if err := agg.AddFrame(dets); err != nil {
			r.fail(jobID, fmt.Errorf("aggregation: %w", err))
			return
		}
		r.metrics.FramesAggregated.Add(1)
		r.metrics.DetectionsCounted.Add(uint64(len(dets)))
	}

	result := agg.Finalize()
	outDir := stream.OutputDir()

	comparison := r.compareWithPriors(jobID, videoSource, result)
	summary := count.Summary(detType.Domain(), result, comparison)

	if r.writer != nil {
		if err := r.writer.Write(outDir, result, comparison, summary); err != nil {
			// The count is already computed; artifact trouble is not
			// grounds to fail the job.
			monitoring.Logf("[Jobs] Job %s: failed to write artifacts: %v", jobID, err)
		}
	}

	rec := &db.Record{
		ResultID:                     jobID,
		DetectionType:                string(detType),
		VideoSource:                  videoSource,
		Status:                       db.StatusCompleted,
		UniqueEntities:               result.UniqueEntities,
		TotalDetections:              result.TotalDetections,
		TrackIDs:                     result.TrackIDs,
		DetectionsByClass:            result.DetectionsByClass,
		UniqueEntitiesByPrimaryClass: result.UniqueEntitiesByPrimaryClass,
		TrackClassAssignments:        result.TrackClassAssignments,
		OutputDir:                    outDir,
		SummaryText:                  summary,
	}

	r.mu.Lock()
	if prev, ok := r.cache[jobID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	r.cache[jobID] = rec
	r.mu.Unlock()

	if err := r.store.MarkCompleted(rec); err != nil {
		// The cached record keeps the result queryable; resubmission
		// would recompute, so losing the row is not terminal.
		monitoring.Logf("[Jobs] Job %s: failed to persist result: %v", jobID, err)
		r.metrics.PersistenceErrors.Add(1)
	}

	duration := r.clock.Since(start)
	r.metrics.JobsCompleted.Add(1)
	r.metrics.RecordJobDuration(duration)
	monitoring.Logf("[Jobs] Completed job %s: %d unique entities, %d detections in %.2fs",
		jobID, result.UniqueEntities, result.TotalDetections, duration.Seconds())
}

// compareWithPriors loads earlier completed runs for the same video
// source and builds the run-over-run comparison. Prior runs are labelled
// by their result ids. A store read failure degrades to no comparison.
func (r *Runner) compareWithPriors(jobID, videoSource string, result *count.Result) *count.Comparison {
	records, err := r.store.PriorRuns(videoSource, jobID)
	if err != nil {
		monitoring.Logf("[Jobs] Job %s: failed to load prior runs: %v", jobID, err)
		return nil
	}

	priors := make([]count.PriorRun, 0, len(records))
	for _, rec := range records {
		priors = append(priors, count.PriorRun{
			Label:  rec.ResultID,
			Result: rec.AggregationResult(),
		})
	}
	return count.Compare(result, priors)
}

// fail marks a job as terminally failed. There is no automatic retry;
// resubmitting the video is the caller's retry mechanism.
func (r *Runner) fail(jobID string, jobErr error) {
	monitoring.Logf("[Jobs] Failed job %s: %v", jobID, jobErr)

	r.mu.Lock()
	if rec, ok := r.cache[jobID]; ok {
		failed := *rec
		failed.Status = db.StatusFailed
		failed.Error = jobErr.Error()
		r.cache[jobID] = &failed
	}
	r.mu.Unlock()

	if err := r.store.MarkFailed(jobID, jobErr.Error()); err != nil {
		monitoring.Logf("[Jobs] Job %s: failed to persist failure: %v", jobID, err)
		r.metrics.PersistenceErrors.Add(1)
	}
	r.metrics.JobsFailed.Add(1)
}

// Result returns the record for a job id, preferring the in-memory
// cache so results stay available even when a persist failed.
func (r *Runner) Result(jobID string) (*db.Record, error) {
	r.mu.RLock()
	rec, ok := r.cache[jobID]
	r.mu.RUnlock()
	if ok {
		return rec, nil
	}

	rec, err := r.store.Result(jobID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return rec, err
}

// Results lists all stored records, newest first.
func (r *Runner) Results() ([]*db.Record, error) {
	return r.store.Results()
}

// Wait blocks until all in-flight jobs finish. Called during shutdown
// after the HTTP server stops accepting uploads.
func (r *Runner) Wait() {
	r.wg.Wait()
}
