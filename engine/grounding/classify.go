package grounding

import "github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"

// Band thresholds for the two classification axes. The axes are never
// collapsed into one scalar: low-confidence neutral (genuinely unknown) and
// high-confidence neutral (genuinely balanced) are different findings.
const (
	groundingPositive = 0.3
	groundingNegative = -0.3
	confidenceLow     = 0.3
	confidenceHigh    = 0.6
)

// Classify maps the (grounding, confidence) pair onto the 3x3 status matrix.
func Classify(grounding, confidence float64) domain.EpistemicStatus {
	switch {
	case grounding >= groundingPositive:
		switch {
		case confidence >= confidenceHigh:
			return domain.StatusWellSupported
		case confidence >= confidenceLow:
			return domain.StatusSupported
		default:
			return domain.StatusTentative
		}
	case grounding <= groundingNegative:
		switch {
		case confidence >= confidenceHigh:
			return domain.StatusContradicted
		case confidence >= confidenceLow:
			return domain.StatusDisputed
		default:
			return domain.StatusQuestioned
		}
	default:
		switch {
		case confidence >= confidenceHigh:
			return domain.StatusContested
		case confidence >= confidenceLow:
			return domain.StatusUnclear
		default:
			return domain.StatusUnexplored
		}
	}
}
