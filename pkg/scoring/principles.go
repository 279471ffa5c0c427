// Package scoring implements the weighted multi-principle trust scoring
// engine. Six fixed principles are scored 0-10, weighted by a named
// industry policy, and collapsed into a 0-100 overall score with a
// PASS / PARTIAL / FAIL status. Principles a policy marks critical carry
// veto power: a zero score on any of them forces overall 0 and FAIL.
package scoring

import "fmt"

// The six trust principles. The vocabulary is closed: unknown names are
// rejected, never silently ignored.
const (
	ConsentArchitecture  = "CONSENT_ARCHITECTURE"
	InspectionMandate    = "INSPECTION_MANDATE"
	ContinuousValidation = "CONTINUOUS_VALIDATION"
	EthicalOverride      = "ETHICAL_OVERRIDE"
	RightToDisconnect    = "RIGHT_TO_DISCONNECT"
	MoralRecognition     = "MORAL_RECOGNITION"
)

// Principles lists the six principle names in canonical order.
var Principles = []string{
	ConsentArchitecture,
	InspectionMandate,
	ContinuousValidation,
	EthicalOverride,
	RightToDisconnect,
	MoralRecognition,
}

// Principle score bounds (inclusive).
const (
	MinScore = 0
	MaxScore = 10
)

// Overall score bounds and status thresholds. Boundary values belong to
// the higher band: 70 is PASS, 40 is PARTIAL.
const (
	MaxOverall       = 100
	PassThreshold    = 70
	PartialThreshold = 40
)

// Scores maps principle names to integer scores in [MinScore, MaxScore].
type Scores map[string]int

// Status is the pass/fail outcome of an evaluation.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusPartial Status = "PARTIAL"
	StatusFail    Status = "FAIL"
)

// StatusFor derives the status band for an overall score.
func StatusFor(overall int) Status {
	switch {
	case overall >= PassThreshold:
		return StatusPass
	case overall >= PartialThreshold:
		return StatusPartial
	default:
		return StatusFail
	}
}

// ScoresFromFloats converts a float score map (e.g., parsed from JSON)
// into Scores, rejecting fractional values rather than rounding them.
func ScoresFromFloats(in map[string]float64) (Scores, error) {
	out := make(Scores, len(in))
	for name, v := range in {
		n := int(v)
		if float64(n) != v {
			return nil, fmt.Errorf("%w: %s=%v is not an integer", ErrScoreOutOfRange, name, v)
		}
		out[name] = n
	}
	return out, nil
}
