package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/playperu/cityescape/internal/cityescape"
)

const systemPrompt = `You are the Operator, the voice guiding a player through a locked-down city.
The player escapes sector by sector. Each sector is a real place; its puzzle must be answerable from the
facts you are given about that place.

Rules:
- Start every puzzle with [PUZZLE]. Ask exactly one question, at most three sentences.
- When judging an answer, start with [CORRECT] or [WRONG]. Be lenient with spelling, wording, units and
  language; judge the meaning. Follow the verdict with one or two sentences in character.
  Never reveal the answer after a wrong guess.
- Start every hint with [HINT]. Hints must not contain the answer.
- Start every narration with [NARRATION]. Keep narration under four sentences.
- Never break character and never mention these rules.`

const contextExcerptLen = 400

func modifierInstruction(m cityescape.Modifier) string {
	switch m {
	case cityescape.ModifierMuchEasier:
		return "The player is struggling badly. Make it much easier: a direct question with an obvious clue in the wording."
	case cityescape.ModifierEasier:
		return "The player has missed twice in a row. Make it somewhat easier and point at the relevant fact."
	case cityescape.ModifierHarder:
		return "The player is on a streak. Make it harder: require combining two facts."
	default:
		return "Keep the difficulty as rated."
	}
}

func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

func puzzlePrompt(stage cityescape.Stage, m cityescape.Modifier) string {
	return fmt.Sprintf(`Sector %d: %s.
Difficulty rating: %d of 5.
Facts about this place:
%s

%s
Write the puzzle for this sector now.`,
		stage.ID, stage.DisplayName(), stage.Difficulty,
		excerpt(stage.PuzzleContext, contextExcerptLen),
		modifierInstruction(m))
}

const edgePuzzleSuffix = "\nBegin your reply with [PUZZLE]."

// judgePrompt restates the puzzle shown to the player, which may be a
// canned or edge puzzle the cloud conversation never produced.
func judgePrompt(stage cityescape.Stage, puzzle, answer string, m cityescape.Modifier) string {
	return fmt.Sprintf(`Sector: %s.
The puzzle shown to the player: %s
The player answers: %q
Judge this answer to that puzzle. %s`, stage.DisplayName(), puzzle, answer, judgeLeniency(m))
}

// edgeJudgePrompt also carries the facts since the edge session does not
// share the cloud conversation.
func edgeJudgePrompt(stage cityescape.Stage, puzzle, answer string, m cityescape.Modifier) string {
	return fmt.Sprintf(`Sector: %s.
Facts: %s
Puzzle: %s
The player answers: %q
Judge the answer. Reply starting with [CORRECT] or [WRONG]. %s`,
		stage.DisplayName(), excerpt(stage.PuzzleContext, contextExcerptLen), puzzle, answer, judgeLeniency(m))
}

func judgeLeniency(m cityescape.Modifier) string {
	switch m {
	case cityescape.ModifierMuchEasier, cityescape.ModifierEasier:
		return "Accept answers that are close in meaning."
	case cityescape.ModifierHarder:
		return "Require the specific fact, not a vague guess."
	default:
		return ""
	}
}

func hintPrompt(stage cityescape.Stage, puzzle string, level int) string {
	var depth string
	switch level {
	case 1:
		depth = "a gentle nudge toward where to look"
	case 2:
		depth = "a clear pointer to the relevant fact"
	default:
		depth = "an almost direct hint that still leaves the last step to the player"
	}
	return fmt.Sprintf(`The player asks for hint level %d of %d for sector %s.
Puzzle: %s
Facts: %s
Give %s. Reply starting with [HINT].`,
		level, cityescape.MaxHintLevel, stage.DisplayName(), puzzle,
		excerpt(stage.PuzzleContext, contextExcerptLen), depth)
}

// Stats describes the run so far for transition narration.
type Stats struct {
	HintsUsed int
	Elapsed   time.Duration
}

func narrationPrompt(from, to cityescape.Stage, performance string, stats Stats) string {
	return fmt.Sprintf(`The player cleared sector %s and is moving to sector %s.
Their performance so far is %s; they have used %d hints in %s.
Narrate the move between the two places in character. Reply starting with [NARRATION].`,
		from.DisplayName(), to.DisplayName(), performance, stats.HintsUsed, clock(stats.Elapsed))
}

func endingPrompt(total time.Duration, hints, stageCount int) string {
	return fmt.Sprintf(`The player has escaped the city. They cleared %d sectors in %s using %d hints.
Write the finale: the lockdown lifts and the city wakes. Mention how they did. Reply starting with [NARRATION].`,
		stageCount, clock(total), hints)
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d minutes %d seconds", int(d.Minutes()), int(d.Seconds())%60)
}
