// Package db persists processing results in an embedded sqlite database.
// Each completed job is one document-style row: scalar columns for the
// fields queried by the API, JSON text columns for the nested count
// structures.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/animal.report/internal/count"
)

// Job status values. Failed is terminal; resubmission is the caller's
// retry mechanism.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when no record exists for a result id.
var ErrNotFound = errors.New("result not found")

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the results database at path. The
// base schema is applied inline so a fresh deployment works without
// running migrations; schema evolution beyond the base uses the
// golang-migrate wrappers in migrate.go.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			result_id                        TEXT PRIMARY KEY,
			detection_type                   TEXT NOT NULL,
			video_source                     TEXT NOT NULL,
			status                           TEXT NOT NULL,
			unique_entities                  INTEGER NOT NULL DEFAULT 0,
			total_detections                 INTEGER NOT NULL DEFAULT 0,
			track_ids                        TEXT NOT NULL DEFAULT '[]',
			detections_by_class              TEXT NOT NULL DEFAULT '{}',
			unique_entities_by_primary_class TEXT NOT NULL DEFAULT '{}',
			track_class_assignments          TEXT NOT NULL DEFAULT '{}',
			output_dir                       TEXT NOT NULL DEFAULT '',
			summary_text                     TEXT NOT NULL DEFAULT '',
			error                            TEXT NOT NULL DEFAULT '',
			created_at                       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_video_source
			ON results(video_source, created_at);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Record is the structured record produced per job, persisted and
// returned over the job-status interface.
type Record struct {
	ResultID                     string                          `json:"result_id"`
	DetectionType                string                          `json:"detection_type"`
	VideoSource                  string                          `json:"video_source"`
	Status                       string                          `json:"status"`
	UniqueEntities               int                             `json:"unique_entities"`
	TotalDetections              int                             `json:"total_detections"`
	TrackIDs                     []int64                         `json:"track_ids"`
	DetectionsByClass            map[string]int                  `json:"detections_by_class"`
	UniqueEntitiesByPrimaryClass map[string]int                  `json:"unique_entities_by_primary_class"`
	TrackClassAssignments        map[int64]count.ClassAssignment `json:"track_class_assignments"`
	OutputDir                    string                          `json:"output_dir,omitempty"`
	SummaryText                  string                          `json:"summary_text,omitempty"`
	Error                        string                          `json:"error,omitempty"`
	CreatedAt                    time.Time                       `json:"created_at"`
}

// AggregationResult reconstructs the count.Result view of a completed
// record, used when a stored run becomes the prior run of a comparison.
func (r *Record) AggregationResult() *count.Result {
	return &count.Result{
		VideoSource:                  r.VideoSource,
		UniqueEntities:               r.UniqueEntities,
		TotalDetections:              r.TotalDetections,
		TrackIDs:                     r.TrackIDs,
		DetectionsByClass:            r.DetectionsByClass,
		UniqueEntitiesByPrimaryClass: r.UniqueEntitiesByPrimaryClass,
		TrackClassAssignments:        r.TrackClassAssignments,
	}
}

// InsertProcessing records a freshly submitted job.
func (db *DB) InsertProcessing(rec *Record) error {
	_, err := db.Exec(
		`INSERT INTO results (result_id, detection_type, video_source, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ResultID, rec.DetectionType, rec.VideoSource, StatusProcessing,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert processing record: %w", err)
	}
	return nil
}

// MarkCompleted stores the full result for a finished job.
func (db *DB) MarkCompleted(rec *Record) error {
	trackIDs, err := json.Marshal(rec.TrackIDs)
	if err != nil {
		return fmt.Errorf("marshal track_ids: %w", err)
	}
	byClass, err := json.Marshal(rec.DetectionsByClass)
	if err != nil {
		return fmt.Errorf("marshal detections_by_class: %w", err)
	}
	byPrimary, err := json.Marshal(rec.UniqueEntitiesByPrimaryClass)
	if err != nil {
		return fmt.Errorf("marshal unique_entities_by_primary_class: %w", err)
	}
	assignments, err := json.Marshal(rec.TrackClassAssignments)
	if err != nil {
		return fmt.Errorf("marshal track_class_assignments: %w", err)
	}

	res, err := db.Exec(
		`UPDATE results SET
			status = ?,
			unique_entities = ?,
			total_detections = ?,
			track_ids = ?,
			detections_by_class = ?,
			unique_entities_by_primary_class = ?,
			track_class_assignments = ?,
			output_dir = ?,
			summary_text = ?,
			error = ''
		 WHERE result_id = ?`,
		StatusCompleted,
		rec.UniqueEntities, rec.TotalDetections,
		string(trackIDs), string(byClass), string(byPrimary), string(assignments),
		rec.OutputDir, rec.SummaryText,
		rec.ResultID,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireOneRow(res, rec.ResultID)
}

// MarkFailed records a terminal failure with a human-readable message.
func (db *DB) MarkFailed(resultID, errMsg string) error {
	res, err := db.Exec(
		`UPDATE results SET status = ?, error = ? WHERE result_id = ?`,
		StatusFailed, errMsg, resultID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireOneRow(res, resultID)
}

func requireOneRow(res sql.Result, resultID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, resultID)
	}
	return nil
}

const recordColumns = `result_id, detection_type, video_source, status,
	unique_entities, total_detections, track_ids, detections_by_class,
	unique_entities_by_primary_class, track_class_assignments,
	output_dir, summary_text, error, created_at`

// Result returns the record for one result id, or ErrNotFound.
func (db *DB) Result(resultID string) (*Record, error) {
	row := db.QueryRow(
		`SELECT `+recordColumns+` FROM results WHERE result_id = ?`, resultID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resultID)
	}
	return rec, err
}

// Results returns all records, newest first.
func (db *DB) Results() ([]*Record, error) {
	rows, err := db.Query(
		`SELECT ` + recordColumns + ` FROM results ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PriorRuns returns completed records for the same video source,
// excluding the given result id, in ascending creation order. Matching
// is plain string equality on video_source; no path normalization.
func (db *DB) PriorRuns(videoSource, excludeResultID string) ([]*Record, error) {
	rows, err := db.Query(
		`SELECT `+recordColumns+` FROM results
		 WHERE video_source = ? AND status = ? AND result_id != ?
		 ORDER BY created_at ASC`,
		videoSource, StatusCompleted, excludeResultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var trackIDs, byClass, byPrimary, assignments, createdAt string

	if err := row.Scan(
		&rec.ResultID, &rec.DetectionType, &rec.VideoSource, &rec.Status,
		&rec.UniqueEntities, &rec.TotalDetections,
		&trackIDs, &byClass, &byPrimary, &assignments,
		&rec.OutputDir, &rec.SummaryText, &rec.Error, &createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(trackIDs), &rec.TrackIDs); err != nil {
		return nil, fmt.Errorf("decode track_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(byClass), &rec.DetectionsByClass); err != nil {
		return nil, fmt.Errorf("decode detections_by_class: %w", err)
	}
	if err := json.Unmarshal([]byte(byPrimary), &rec.UniqueEntitiesByPrimaryClass); err != nil {
		return nil, fmt.Errorf("decode unique_entities_by_primary_class: %w", err)
	}
	if err := json.Unmarshal([]byte(assignments), &rec.TrackClassAssignments); err != nil {
		return nil, fmt.Errorf("decode track_class_assignments: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	rec.CreatedAt = ts

	return &rec, nil
}
