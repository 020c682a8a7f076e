package game

import (
	"time"

	"github.com/playperu/cityescape/internal/cityescape"
)

type MessageKind string

const (
	MessageSystem    MessageKind = "system"
	MessageStage     MessageKind = "stage"
	MessageNarration MessageKind = "narration"
	MessagePuzzle    MessageKind = "puzzle"
	MessagePlayer    MessageKind = "player"
	MessageCorrect   MessageKind = "correct"
	MessageWrong     MessageKind = "wrong"
	MessageHint      MessageKind = "hint"
	MessageBuilding  MessageKind = "building"
	MessageEnding    MessageKind = "ending"
)

// Message is one entry of the append-only message log.
type Message struct {
	Seq  int         `json:"seq"`
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
	At   time.Time   `json:"at"`
}

// Cue names a sound effect.
type Cue string

const (
	CueBoot       Cue = "boot"
	CueStage      Cue = "stage"
	CueCorrect    Cue = "correct"
	CueWrong      Cue = "wrong"
	CueHint       Cue = "hint"
	CueTransition Cue = "transition"
	CueScan       Cue = "scan"
	CueEnding     Cue = "ending"
)

// Hooks observe the orchestrator. Calls are made outside its lock and may
// come from any goroutine running a flow.
type Hooks interface {
	Message(Message)
	Cue(Cue)
	StateChanged(State)
	Finished(cityescape.Summary)
}

type NopHooks struct{}

func (NopHooks) Message(Message) {}
func (NopHooks) Cue(Cue) {}
func (NopHooks) StateChanged(State) {}
func (NopHooks) Finished(cityescape.Summary) {}
