// Package detect is the boundary to the external detection/tracking
// engine. The engine itself (the neural network, its inference, and track
// assignment) is an opaque collaborator; this package selects which class
// set it should filter on and adapts its per-frame output stream into
// count.Detection values.
package detect

import (
	"errors"
	"fmt"
)

// DetectionType selects which class set the engine filters on.
type DetectionType string

const (
	// Birds detects the single COCO "bird" class. Turkeys, ducks and
	// chickens all surface as "bird"; COCO has no finer-grained labels.
	Birds DetectionType = "birds"

	// Livestock detects a fixed set of four COCO animal classes used as
	// proxies. Goat is not in the COCO vocabulary, so goats may be
	// detected as any of sheep, cow, horse or giraffe.
	Livestock DetectionType = "livestock"
)

// ErrInvalidDetectionType reports an unrecognized class-set selector.
var ErrInvalidDetectionType = errors.New("invalid detection type")

// ParseDetectionType validates a selector string from an API request or
// CLI flag.
func ParseDetectionType(s string) (DetectionType, error) {
	switch DetectionType(s) {
	case Birds:
		return Birds, nil
	case Livestock:
		return Livestock, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidDetectionType, s, Birds, Livestock)
	}
}

// Classes returns the class labels the engine should keep for this
// detection type.
func (t DetectionType) Classes() []string {
	switch t {
	case Birds:
		return []string{"bird"}
	case Livestock:
		return []string{"sheep", "cow", "horse", "giraffe"}
	default:
		return nil
	}
}

// Domain is the display name used in text summaries.
func (t DetectionType) Domain() string {
	switch t {
	case Birds:
		return "Bird"
	case Livestock:
		return "Livestock"
	default:
		return string(t)
	}
}

func (t DetectionType) String() string { return string(t) }
