package detect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/animal.report/internal/count"
)

// ReadLog parses a recorded tracker stream (the same NDJSON format
// ExecEngine reads from a live process) into frames. A completion record
// ends the log; anything after it is ignored. Blank lines are skipped so
// hand-edited fixture files stay easy to work with.
func ReadLog(r io.Reader) ([][]count.Detection, error) {
	scanner := bufio.NewScanner(r)

	var frames [][]count.Detection
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec frameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: decode frame record: %w", line, err)
		}
		if rec.Done {
			return frames, nil
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
		frames = append(frames, dets)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detection log: %w", err)
	}
	return frames, nil
}
