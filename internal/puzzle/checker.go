// Package puzzle completes puzzle steps when their trigger conditions hold.
package puzzle

import (
	"context"
	"fmt"
	"sort"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Completion is a step finished by the latest turn.
type Completion struct {
	StepID    string
	Name      string
	Narrative string
	Points    int
}

// Checker evaluates puzzle steps after each turn.
type Checker struct {
	store store.Puzzles
}

// NewChecker returns a Checker over s.
func NewChecker(s store.Puzzles) *Checker {
	return &Checker{store: s}
}

// Ready reports whether step can complete in roomID with the given carried
// object ids and already completed step ids.
func Ready(step *models.PuzzleStep, roomID string, carried, done map[string]bool) bool {
	if step.Completed {
		return false
	}
	if step.RoomID != "" && step.RoomID != roomID {
		return false
	}
	for _, id := range step.RequiredObjects {
		if !carried[id] {
			return false
		}
	}
	for _, id := range step.DependsOn {
		if !done[id] {
			return false
		}
	}
	return true
}

// Check completes every ready step and returns them in id order. Steps that
// depend on a step completed in the same pass complete on a later turn.
func (c *Checker) Check(ctx context.Context, storyID, roomID string, inventory []models.GameObject) ([]Completion, error) {
	steps, err := c.store.ListPuzzleSteps(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list puzzle steps: %w", err)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })

	carried := make(map[string]bool, len(inventory))
	for _, o := range inventory {
		carried[o.ID] = true
	}
	done := make(map[string]bool)
	for _, s := range steps {
		if s.Completed {
			done[s.ID] = true
		}
	}

	var out []Completion
	for i := range steps {
		s := &steps[i]
		if !Ready(s, roomID, carried, done) {
			continue
		}
		s.Completed = true
		if err := c.store.SavePuzzleStep(ctx, s); err != nil {
			return out, fmt.Errorf("save puzzle step %s: %w", s.ID, err)
		}
		out = append(out, Completion{StepID: s.ID, Name: s.Name, Narrative: s.Narrative, Points: s.Points})
	}
	return out, nil
}
