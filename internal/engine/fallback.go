package engine

import (
	"fmt"

	"github.com/playperu/cityescape/internal/cityescape"
)

// cannedPuzzles covers every stage of the default stage list.
var cannedPuzzles = map[int]string{
	1: "[PUZZLE] The gate before you was first raised in the fourth year of its dynasty and restored to its true place in 2010. In which year was it first built?",
	2: "[PUZZLE] Behind the glass wave stands the older stone hall, now full of books. What does the 1926 building house today?",
	3: "[PUZZLE] The antenna on the mountain climbs 236 metres. On which mountain does it stand?",
	4: "[PUZZLE] Tens of thousands of metal panels, nearly no two alike, cover this building. Which architect designed it?",
	5: "[PUZZLE] The needle rises 555 metres over the river. How many storeys does it have?",
}

const genericPuzzle = "[PUZZLE] The signal is weak here. Look at the building in front of you: in which year was it completed?"

// CannedPuzzle returns the fixed puzzle for a stage. A stage's own
// fallback wins over the built-in table; unknown stages get a generic one.
func CannedPuzzle(stage cityescape.Stage) Response {
	if stage.FallbackPuzzle != "" {
		return Parse(stage.FallbackPuzzle, KindPuzzle)
	}
	if p, ok := cannedPuzzles[stage.ID]; ok {
		return Parse(p, KindPuzzle)
	}
	return Parse(genericPuzzle, KindPuzzle)
}

var (
	connectionLost  = ParseVerdict("[WRONG] The link to the city grid is lost. Your answer did not reach the Operator.")
	signalUnstable  = ParseVerdict("[WRONG] The signal is unstable and your answer was garbled. Try again.")
	hintOffline     = Parse("[HINT] The Operator is offline. Trust what you can see around you.", KindHint)
	hintUnavailable = Parse("[HINT] Static on the line. No hint can get through right now.", KindHint)
	endingFallback  = Parse("[NARRATION] The last lock opens. Lights return street by street, and the city breathes again. You are free.", KindNarration)
)

func narrationFallback(from, to cityescape.Stage) Response {
	return Parse(fmt.Sprintf("[NARRATION] %s falls silent behind you. The grid reroutes toward %s. Keep moving.",
		from.DisplayName(), to.DisplayName()), KindNarration)
}
