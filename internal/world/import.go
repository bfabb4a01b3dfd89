package world

import (
	"context"
	"fmt"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Importer writes a whole world atomically.
type Importer interface {
	ImportWorld(ctx context.Context, w *store.World) error
}

// DefaultHealth is the starting health when a seed does not set one.
const DefaultHealth = 100

// Import validates seed and writes it through imp. Missing reciprocal exits
// are added so every directional edge has its opposite; a seed that links
// two rooms inconsistently is rejected.
func Import(ctx context.Context, imp Importer, seed *models.WorldSeed) error {
	w, err := Build(seed)
	if err != nil {
		return err
	}
	if err := imp.ImportWorld(ctx, w); err != nil {
		return fmt.Errorf("import %s: %w", seed.StoryID, err)
	}
	return nil
}

// Build turns a seed into the records written by Import.
func Build(seed *models.WorldSeed) (*store.World, error) {
	rooms := make(map[string]*models.Room, len(seed.Rooms))
	coords := make(map[models.Coord]string, len(seed.Rooms))
	w := &store.World{Rooms: make([]models.Room, len(seed.Rooms))}
	copy(w.Rooms, seed.Rooms)

	for i := range w.Rooms {
		r := &w.Rooms[i]
		exits := make(map[models.Direction]string, len(r.Exits))
		for d, id := range r.Exits {
			exits[d] = id
		}
		r.Exits = exits
		r.HiddenExits = append([]models.Direction(nil), r.HiddenExits...)
		if r.ID == "" {
			return nil, fmt.Errorf("seed room %q has no id", r.Name)
		}
		if _, dup := rooms[r.ID]; dup {
			return nil, fmt.Errorf("seed room %s is defined twice", r.ID)
		}
		if other, taken := coords[r.Coord]; taken {
			return nil, fmt.Errorf("seed rooms %s and %s share %s: %w", other, r.ID, r.Coord, ErrSlotOccupied)
		}
		rooms[r.ID] = r
		coords[r.Coord] = r.ID
	}

	for i := range w.Rooms {
		r := &w.Rooms[i]
		for _, d := range models.Directions {
			target, ok := r.Neighbor(d)
			if !ok {
				continue
			}
			other, ok := rooms[target]
			if !ok {
				return nil, fmt.Errorf("seed room %s exits %s to unknown room %s", r.ID, d, target)
			}
			back, linked := other.Neighbor(d.Opposite())
			switch {
			case !linked:
				other.Link(d.Opposite(), r.ID)
				if r.IsHidden(d) {
					other.Hide(d.Opposite())
				}
			case back != r.ID:
				return nil, fmt.Errorf("seed room %s exits %s to %s, which leads back to %s", r.ID, d, target, back)
			}
		}
		for _, d := range r.HiddenExits {
			if !d.Valid() {
				return nil, fmt.Errorf("seed room %s hides %q: %w", r.ID, d, ErrInvalidDirection)
			}
		}
	}

	if _, ok := rooms[seed.StartRoom]; !ok {
		return nil, fmt.Errorf("seed start room %q does not exist", seed.StartRoom)
	}
	for _, d := range seed.Dilemmas {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	for _, o := range seed.Objects {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}

	w.Objects = seed.Objects
	w.Abilities = seed.Abilities
	w.TimedEvents = seed.TimedEvents
	w.Dilemmas = seed.Dilemmas
	w.Puzzles = seed.Puzzles

	health := seed.Health
	if health <= 0 {
		health = DefaultHealth
	}
	w.Player = models.PlayerState{
		StoryID: seed.StoryID,
		RoomID:  seed.StartRoom,
		Health:  health,
		Visited: []string{seed.StartRoom},
	}
	w.Personality = *models.NewPersonalityScore(seed.StoryID)
	start := rooms[seed.StartRoom]
	start.VisitCount = 1
	return w, nil
}
