package grounding

import (
	"testing"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

func TestClassifyMatrix(t *testing.T) {
	tests := []struct {
		name       string
		grounding  float64
		confidence float64
		want       domain.EpistemicStatus
	}{
		{"positive high", 0.8, 0.9, domain.StatusWellSupported},
		{"positive medium", 0.8, 0.4, domain.StatusSupported},
		{"positive low", 0.8, 0.1, domain.StatusTentative},
		{"negative high", -0.8, 0.9, domain.StatusContradicted},
		{"negative medium", -0.8, 0.4, domain.StatusDisputed},
		{"negative low", -0.8, 0.1, domain.StatusQuestioned},
		{"neutral high", 0.0, 0.9, domain.StatusContested},
		{"neutral medium", 0.0, 0.4, domain.StatusUnclear},
		{"neutral low", 0.0, 0.1, domain.StatusUnexplored},
		{"positive boundary", 0.3, 0.6, domain.StatusWellSupported},
		{"negative boundary", -0.3, 0.3, domain.StatusDisputed},
		{"just inside neutral", 0.29, 0.9, domain.StatusContested},
	}
	for _, tt := range tests {
		if got := Classify(tt.grounding, tt.confidence); got != tt.want {
			t.Errorf("%s: Classify(%f, %f) = %s, want %s",
				tt.name, tt.grounding, tt.confidence, got, tt.want)
		}
	}
}

func TestAxesStayIndependent(t *testing.T) {
	// Genuinely unknown and genuinely balanced must remain distinguishable.
	unknown := Classify(0, 0.05)
	balanced := Classify(0, 0.95)
	if unknown == balanced {
		t.Errorf("low/neutral and high/neutral collapsed to %s", unknown)
	}
}
