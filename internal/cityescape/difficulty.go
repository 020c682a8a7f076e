package cityescape

// Modifier biases prompt difficulty from recent performance.
type Modifier int

const (
	ModifierNeutral Modifier = iota
	ModifierEasier
	ModifierMuchEasier
	ModifierHarder
)

func (m Modifier) String() string {
	switch m {
	case ModifierEasier:
		return "easier"
	case ModifierMuchEasier:
		return "much_easier"
	case ModifierHarder:
		return "harder"
	default:
		return "neutral"
	}
}

// Performance descriptors used in stage-to-stage narration.
const (
	PerformanceGood       = "good"
	PerformanceStruggling = "struggling"
	PerformanceSteady     = "steady"
)

// Difficulty tracks answer streaks. At most one counter is non-zero.
type Difficulty struct {
	ConsecutiveCorrect int `json:"consecutiveCorrect"`
	ConsecutiveWrong   int `json:"consecutiveWrong"`
}

func (d *Difficulty) Record(correct bool) {
	if correct {
		d.ConsecutiveCorrect++
		d.ConsecutiveWrong = 0
		return
	}
	d.ConsecutiveWrong++
	d.ConsecutiveCorrect = 0
}

func (d Difficulty) Modifier() Modifier {
	switch {
	case d.ConsecutiveWrong >= 3:
		return ModifierMuchEasier
	case d.ConsecutiveWrong >= 2:
		return ModifierEasier
	case d.ConsecutiveCorrect >= 3:
		return ModifierHarder
	default:
		return ModifierNeutral
	}
}

func (d Difficulty) Performance() string {
	switch {
	case d.ConsecutiveCorrect >= 2:
		return PerformanceGood
	case d.ConsecutiveWrong >= 2:
		return PerformanceStruggling
	default:
		return PerformanceSteady
	}
}
