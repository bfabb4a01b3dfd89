package engine

import (
	"context"
	"strings"

	"github.com/tatianab/text-engine/internal/models"
)

// FallbackNarrative is shown when the generator cannot answer.
const FallbackNarrative = "Nothing seems to happen. Perhaps try something else."

// Kind says what a generator request is for.
type Kind string

const (
	KindFreeform Kind = "freeform"
	KindExamine  Kind = "examine"
	KindTalk     Kind = "talk"
	KindUse      Kind = "use"
	KindSkill    Kind = "skill"
	KindRoom     Kind = "room"
)

// Request is the context handed to the generator for one narrative.
type Request struct {
	Kind      Kind
	StoryID   string
	Room      *models.Room
	Object    *models.GameObject
	Character string
	Topic     string
	Ability   string
	Direction models.Direction
	Input     string
	Inventory []string
	History   []string
}

// Response is the structured answer of the generator.
type Response struct {
	NarrativeText        string                    `json:"narrativeText"`
	ActionType           string                    `json:"actionType,omitempty"`
	PersonalitySignal    *models.PersonalitySignal `json:"personalitySignal,omitempty"`
	SkillCheckDifficulty *int                      `json:"skillCheckDifficulty,omitempty"`
	SuccessNarrative     string                    `json:"successNarrative,omitempty"`
	FailureNarrative     string                    `json:"failureNarrative,omitempty"`
	RoomName             string                    `json:"roomName,omitempty"`
	RoomDescription      string                    `json:"roomDescription,omitempty"`
}

// Generator produces narrative for requests the core cannot answer itself.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Expander adapts a Generator to name and describe rooms created when the
// player walks off the edge of the map.
type Expander struct {
	Gen Generator
}

// DescribeNewRoom asks the generator for the room beyond from in direction d.
func (x Expander) DescribeNewRoom(ctx context.Context, from *models.Room, d models.Direction) (string, string, error) {
	resp, err := x.Gen.Generate(ctx, &Request{Kind: KindRoom, StoryID: from.StoryID, Room: from, Direction: d})
	if err != nil {
		return "", "", err
	}
	name := strings.TrimSpace(resp.RoomName)
	desc := strings.TrimSpace(resp.RoomDescription)
	if desc == "" {
		desc = strings.TrimSpace(resp.NarrativeText)
	}
	if name == "" || desc == "" {
		return "", "", ErrMalformedOutput
	}
	return name, desc, nil
}
