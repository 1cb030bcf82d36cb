package detect

import (
	"context"
	"fmt"
	"io"

	"github.com/banshee-data/animal.report/internal/count"
)

// MockEngine replays scripted frames. Used by tests and by dev mode when
// no external tracker command is configured.
type MockEngine struct {
	// Frames are replayed in order for every Analyze call.
	Frames [][]count.Detection

	// OutputDir is reported by the scripted stream on completion.
	OutputDir string

	// AnalyzeErr, when set, is returned from Analyze directly.
	AnalyzeErr error

	// FailAfter, when >= 0, aborts the stream with an
	// ErrAggregationIncomplete after that many frames.
	FailAfter int

	// Calls records the video paths Analyze was invoked with.
	Calls []string
}

// NewMockEngine creates a mock that cleanly replays the given frames.
func NewMockEngine(outputDir string, frames ...[]count.Detection) *MockEngine {
	return &MockEngine{Frames: frames, OutputDir: outputDir, FailAfter: -1}
}

func (e *MockEngine) Analyze(ctx context.Context, videoPath string, detType DetectionType) (Stream, error) {
	e.Calls = append(e.Calls, videoPath)
	if e.AnalyzeErr != nil {
		return nil, e.AnalyzeErr
	}
	if len(detType.Classes()) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDetectionType, detType)
	}
	return &mockStream{engine: e}, nil
}

type mockStream struct {
	engine *MockEngine
	next   int
	done   bool
}

func (s *mockStream) Next() ([]count.Detection, error) {
	if s.engine.FailAfter >= 0 && s.next >= s.engine.FailAfter {
		return nil, fmt.Errorf("%w: scripted failure", ErrAggregationIncomplete)
	}
	if s.next >= len(s.engine.Frames) {
		s.done = true
		return nil, io.EOF
	}
	frame := s.engine.Frames[s.next]
	s.next++
	return frame, nil
}

func (s *mockStream) OutputDir() string {
	if !s.done {
		return ""
	}
	return s.engine.OutputDir
}

func (s *mockStream) Close() error { return nil }
