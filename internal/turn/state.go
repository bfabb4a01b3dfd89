package turn

import (
	"context"
	"sort"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/personality"
)

// GameState is a read-only snapshot of a story for display.
type GameState struct {
	StoryID        string                             `json:"story_id"`
	Room           models.Room                        `json:"room"`
	Exits          []models.Direction                 `json:"exits"`
	Objects        []string                           `json:"objects"`
	Inventory      []string                           `json:"inventory"`
	TurnCount      int                                `json:"turn_count"`
	Score          int                                `json:"score"`
	Health         int                                `json:"health"`
	GameOver       bool                               `json:"game_over"`
	Personality    string                             `json:"personality"`
	Traits         map[models.Trait]models.TraitScore `json:"traits"`
	Abilities      []models.Ability                   `json:"abilities"`
	ActiveEvents   []models.TimedEvent                `json:"active_events,omitempty"`
	PendingDilemma *DilemmaPayload                    `json:"pending_dilemma,omitempty"`
}

// GetGameState reads the current state of a story. It does not take the
// story lock, so it is safe to call from a progress callback.
func (o *Orchestrator) GetGameState(ctx context.Context, storyID string) (*GameState, error) {
	player, room, err := o.load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	st := &GameState{
		StoryID:   storyID,
		Room:      *room,
		TurnCount: player.TurnCount,
		Score:     player.Score,
		Health:    player.Health,
		GameOver:  player.GameOver,
	}
	for _, d := range models.Directions {
		if room.ExitVisible(d) {
			st.Exits = append(st.Exits, d)
		}
	}

	here, err := o.objects.InRoom(ctx, storyID, room.ID)
	if err != nil {
		return nil, err
	}
	st.Objects = objectNames(here)
	inv, err := o.objects.Inventory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	st.Inventory = objectNames(inv)

	p, err := o.personality.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	st.Personality = personality.Describe(p)
	st.Traits = p.Traits

	if st.Abilities, err = o.skills.List(ctx, storyID); err != nil {
		return nil, err
	}
	sort.Slice(st.Abilities, func(i, j int) bool { return st.Abilities[i].Name < st.Abilities[j].Name })

	if st.ActiveEvents, err = o.scheduler.Active(ctx, storyID); err != nil {
		return nil, err
	}

	dilemmas, err := o.store.ListDilemmas(ctx, storyID)
	if err != nil {
		return nil, err
	}
	for i := range dilemmas {
		if dilemmas[i].State == models.DilemmaTriggered {
			st.PendingDilemma = payload(&dilemmas[i])
			break
		}
	}
	return st, nil
}
