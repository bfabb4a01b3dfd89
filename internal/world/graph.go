// Package world maintains the room graph: grid rooms joined by directional
// exits, portal rooms on a reserved plane, vehicles and the objects placed
// in them.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

var (
	ErrSlotOccupied     = errors.New("world: coordinate slot occupied")
	ErrPortalBand       = errors.New("world: coordinate is inside the portal band")
	ErrNoExit           = errors.New("world: no exit in that direction")
	ErrInvalidDirection = errors.New("world: invalid direction")
	ErrNoPortalSlot     = errors.New("world: no free portal slot")
	ErrNoPortal         = errors.New("world: no such portal")
	ErrNotVehicle       = errors.New("world: room is not a vehicle")
	ErrUnknownDest      = errors.New("world: unknown destination")
	ErrNoPreviousDock   = errors.New("world: vehicle has nowhere to go back to")
	ErrExitTaken        = errors.New("world: exit already leads elsewhere")
)

// DefaultPortalRadius bounds the spiral search for a free portal slot.
const DefaultPortalRadius = 16

// Expander names and describes a room synthesized by moving off the map.
type Expander interface {
	DescribeNewRoom(ctx context.Context, from *models.Room, d models.Direction) (name, description string, err error)
}

// Graph is the world graph over a room store.
type Graph struct {
	rooms        store.Rooms
	log          *slog.Logger
	portalRadius int
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.log = l }
}

// WithPortalRadius sets the spiral search radius for portal placement.
func WithPortalRadius(r int) Option {
	return func(g *Graph) {
		if r > 0 {
			g.portalRadius = r
		}
	}
}

// NewGraph returns a Graph backed by rooms.
func NewGraph(rooms store.Rooms, opts ...Option) *Graph {
	g := &Graph{rooms: rooms, log: slog.Default(), portalRadius: DefaultPortalRadius}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateRoom places a new room on the physical grid.
func (g *Graph) CreateRoom(ctx context.Context, storyID string, c models.Coord, name, description string) (*models.Room, error) {
	if c.InPortalBand() {
		return nil, fmt.Errorf("create room %q at %s: %w", name, c, ErrPortalBand)
	}
	return g.createAt(ctx, storyID, c, name, description)
}

func (g *Graph) createAt(ctx context.Context, storyID string, c models.Coord, name, description string) (*models.Room, error) {
	if _, err := g.rooms.RoomAt(ctx, storyID, c); err == nil {
		return nil, fmt.Errorf("create room %q at %s: %w", name, c, ErrSlotOccupied)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	room := &models.Room{
		ID:          uuid.NewString(),
		StoryID:     storyID,
		Coord:       c,
		Name:        name,
		Description: description,
		Atmosphere:  models.Atmosphere{Version: models.AtmosphereVersion},
	}
	if err := g.rooms.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create room %q at %s: %w", name, c, ErrSlotOccupied)
		}
		return nil, err
	}
	g.log.Debug("room created", "story", storyID, "room", room.ID, "coord", c.String())
	return room, nil
}

// Room looks a room up by id.
func (g *Graph) Room(ctx context.Context, id string) (*models.Room, error) {
	return g.rooms.GetRoom(ctx, id)
}

// RoomAt looks a room up by coordinates.
func (g *Graph) RoomAt(ctx context.Context, storyID string, c models.Coord) (*models.Room, error) {
	return g.rooms.RoomAt(ctx, storyID, c)
}

// Exits lists the exits the player can currently see.
func (g *Graph) Exits(room *models.Room) map[models.Direction]bool {
	return room.VisibleExits()
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// OneWay skips the reciprocal edge.
	OneWay bool
	// Discover marks a hidden exit on either side as discovered.
	Discover bool
}

// Connect links from to to in direction d and, unless one-way, to back to
// from in the opposite direction. Both rooms are persisted and updated in
// place. An exit that already leads to a different room on either side is
// left alone and ErrExitTaken is returned.
func (g *Graph) Connect(ctx context.Context, from, to *models.Room, d models.Direction, opts ConnectOptions) error {
	if !d.Valid() {
		return fmt.Errorf("connect %s: %w", d, ErrInvalidDirection)
	}
	if id, ok := from.Neighbor(d); ok && id != to.ID {
		return fmt.Errorf("connect %s %s: %w", from.ID, d, ErrExitTaken)
	}
	if id, ok := to.Neighbor(d.Opposite()); ok && id != from.ID && !opts.OneWay {
		return fmt.Errorf("connect %s %s: %w", to.ID, d.Opposite(), ErrExitTaken)
	}
	from.Link(d, to.ID)
	if opts.Discover && from.IsHidden(d) {
		from.Discover(d)
	}
	if err := g.rooms.UpdateRoom(ctx, from); err != nil {
		return fmt.Errorf("connect %s: %w", from.ID, err)
	}
	if opts.OneWay {
		return nil
	}

	back := d.Opposite()
	to.Link(back, from.ID)
	if opts.Discover && to.IsHidden(back) {
		to.Discover(back)
	}
	if err := g.rooms.UpdateRoom(ctx, to); err != nil {
		return fmt.Errorf("connect %s: %w", to.ID, err)
	}
	return nil
}

// DiscoverExit reveals a hidden exit on room and on its neighbor's side.
func (g *Graph) DiscoverExit(ctx context.Context, room *models.Room, d models.Direction) (bool, error) {
	id, ok := room.Neighbor(d)
	if !ok || !room.IsHidden(d) || room.IsDiscovered(d) {
		return false, nil
	}
	room.Discover(d)
	if err := g.rooms.UpdateRoom(ctx, room); err != nil {
		return false, err
	}
	other, err := g.rooms.GetRoom(ctx, id)
	if err != nil {
		return true, err
	}
	if other.IsHidden(d.Opposite()) && other.Discover(d.Opposite()) {
		return true, g.rooms.UpdateRoom(ctx, other)
	}
	return true, nil
}

// Move follows the exit in d. When there is no exit and expander is non-nil
// the graph grows: an existing room at the target coordinates is linked,
// otherwise a new room is synthesized there. created reports a new room.
func (g *Graph) Move(ctx context.Context, room *models.Room, d models.Direction, expander Expander) (dest *models.Room, created bool, err error) {
	if !d.Valid() {
		return nil, false, ErrInvalidDirection
	}
	if id, ok := room.Neighbor(d); ok {
		if !room.ExitVisible(d) {
			return nil, false, ErrNoExit
		}
		dest, err := g.rooms.GetRoom(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("follow %s exit: %w", d, err)
		}
		return dest, false, nil
	}
	if expander == nil || room.Coord.InPortalBand() || room.Vehicle != nil {
		return nil, false, ErrNoExit
	}

	target := room.Coord.Add(d.Offset())
	if target.InPortalBand() {
		return nil, false, ErrNoExit
	}
	existing, err := g.rooms.RoomAt(ctx, room.StoryID, target)
	switch {
	case err == nil:
		if err := g.Connect(ctx, room, existing, d, ConnectOptions{}); errors.Is(err, ErrExitTaken) {
			return nil, false, ErrNoExit
		} else if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, err
	}

	name, description, err := expander.DescribeNewRoom(ctx, room, d)
	if err != nil || name == "" {
		g.log.Warn("room description unavailable", "story", room.StoryID, "from", room.ID, "dir", string(d), "err", err)
		name, description = "Uncharted Passage", "The way ahead is unfamiliar and quiet."
	}
	dest, err = g.createAt(ctx, room.StoryID, target, name, description)
	if err != nil {
		return nil, false, err
	}
	if err := g.Connect(ctx, room, dest, d, ConnectOptions{}); err != nil {
		return nil, false, err
	}
	return dest, true, nil
}
