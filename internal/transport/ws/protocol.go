package ws

import (
	"encoding/json"

	"github.com/tatianab/text-engine/internal/turn"
)

// ProtocolVersion is checked in the hello frame.
const ProtocolVersion = "1"

// Frame types.
const (
	TypeHello          = "hello"
	TypeTurn           = "turn"
	TypeDilemma        = "dilemma"
	TypeState          = "state"
	TypeWelcome        = "welcome"
	TypeProgress       = "progress"
	TypeResult         = "result"
	TypeDilemmaOutcome = "dilemma_outcome"
	TypeError          = "error"
)

// Base carries the fields every frame has.
type Base struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// DecodeBase reads the frame type and request id.
func DecodeBase(b []byte) (Base, error) {
	var base Base
	err := json.Unmarshal(b, &base)
	return base, err
}

// HelloMsg opens a session on one story.
type HelloMsg struct {
	Base
	ProtocolVersion string `json:"protocol_version"`
	StoryID         string `json:"story_id"`
}

// TurnMsg submits player input.
type TurnMsg struct {
	Base
	Input string `json:"input"`
}

// DilemmaMsg answers a pending dilemma.
type DilemmaMsg struct {
	Base
	DilemmaID string `json:"dilemma_id"`
	Choice    string `json:"choice"`
	Text      string `json:"text,omitempty"`
}

// WelcomeMsg confirms the session and carries the current state.
type WelcomeMsg struct {
	Base
	StoryID string          `json:"story_id"`
	State   *turn.GameState `json:"state"`
}

// ProgressMsg reports a stage of the turn named by ID.
type ProgressMsg struct {
	Base
	turn.Progress
}

// ResultMsg is the outcome of a turn.
type ResultMsg struct {
	Base
	Result *turn.Result `json:"result"`
}

// DilemmaOutcomeMsg is the outcome of a dilemma answer.
type DilemmaOutcomeMsg struct {
	Base
	Outcome *turn.DilemmaOutcome `json:"outcome"`
}

// StateMsg carries a state snapshot.
type StateMsg struct {
	Base
	State *turn.GameState `json:"state"`
}

// ErrorMsg reports a failed request.
type ErrorMsg struct {
	Base
	Error string `json:"error"`
}
