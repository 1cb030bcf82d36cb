package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/animal.report/internal/count"
)

// ExecEngine runs an external tracker command once per video and reads
// its frame stream from stdout as newline-delimited JSON. Each frame is a
// record like
//
//	{"detections":[{"class":"cow","track_id":4,"confidence":0.72}]}
//
// and the stream ends with a completion record carrying the artifact
// directory:
//
//	{"done":true,"output_dir":"/results/ab12cd"}
//
// The command is invoked as:
//
//	<command> <video path> <comma-joined class list> <output dir>
type ExecEngine struct {
	// Command is the tracker executable to spawn.
	Command string

	// ResultsDir is where per-run output directories are created. The
	// directory path is handed to the command, which may confirm it or
	// report a different one in its completion record.
	ResultsDir string
}

// NewExecEngine creates an engine spawning the given tracker command.
func NewExecEngine(command, resultsDir string) *ExecEngine {
	return &ExecEngine{Command: command, ResultsDir: resultsDir}
}

// Analyze starts one tracker process for the video. The returned stream
// must be drained (or closed) by the caller.
func (e *ExecEngine) Analyze(ctx context.Context, videoPath string, detType DetectionType) (Stream, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, videoPath, err)
	}

	classes := detType.Classes()
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDetectionType, detType)
	}

	outDir := filepath.Join(e.ResultsDir, uuid.New().String())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrSourceUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, e.Command, videoPath, strings.Join(classes, ","), outDir)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrSourceUnavailable, e.Command, err)
	}

	return &execStream{
		cmd:     cmd,
		stdout:  stdout,
		scanner: bufio.NewScanner(stdout),
		outDir:  outDir,
	}, nil
}

type execStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	outDir  string
	done    bool
}

// frameRecord is one NDJSON line from the tracker process.
type frameRecord struct {
	Done       bool            `json:"done"`
	OutputDir  string          `json:"output_dir"`
	Detections []detectionJSON `json:"detections"`
}

type detectionJSON struct {
	Class      string  `json:"class"`
	TrackID    *int64  `json:"track_id"`
	Confidence float64 `json:"confidence"`
}

func (s *execStream) Next() ([]count.Detection, error) {
	if s.done {
		return nil, io.EOF
	}

	if !s.scanner.Scan() {
		// Stream ended without a completion record.
		_ = s.cmd.Wait()
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: read tracker output: %v", ErrAggregationIncomplete, err)
		}
		return nil, fmt.Errorf("%w: tracker exited without completion record", ErrAggregationIncomplete)
	}

	var rec frameRecord
	if err := json.Unmarshal(s.scanner.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("%w: decode tracker output: %v", ErrAggregationIncomplete, err)
	}

	if rec.Done {
		s.done = true
		if rec.OutputDir != "" {
			s.outDir = rec.OutputDir
		}
		if err := s.cmd.Wait(); err != nil {
			return nil, fmt.Errorf("%w: tracker exited: %v", ErrAggregationIncomplete, err)
		}
		return nil, io.EOF
	}

	dets := make([]count.Detection, 0, len(rec.Detections))
	for _, d := range rec.Detections {
		det := count.Detection{Class: d.Class, Confidence: d.Confidence}
		if d.TrackID != nil {
			det.TrackID = *d.TrackID
			det.HasTrack = true
		}
		dets = append(dets, det)
	}
	return dets, nil
}

func (s *execStream) OutputDir() string {
	if !s.done {
		return ""
	}
	return s.outDir
}

func (s *execStream) Close() error {
	err := s.stdout.Close()
	if !s.done && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return err
}
