package world

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tatianab/text-engine/internal/models"
)

// PortalOptions describes a portal to open.
type PortalOptions struct {
	Name string
	// TargetRoomID links an existing room. When empty a new room is placed
	// on the portal plane using DestinationName and DestinationDescription.
	TargetRoomID           string
	DestinationName        string
	DestinationDescription string
	OneWay                 bool
	// Turns > 0 makes the portal temporary, closing Turns after CurrentTurn.
	Turns       int
	CurrentTurn int
}

// spiral yields the (x, y) offsets of the square ring at radius r in a fixed
// order, starting from the top-left corner and walking clockwise.
func spiral(r int) [][2]int {
	if r == 0 {
		return [][2]int{{0, 0}}
	}
	out := make([][2]int, 0, 8*r)
	for x := -r; x <= r; x++ {
		out = append(out, [2]int{x, r})
	}
	for y := r - 1; y >= -r; y-- {
		out = append(out, [2]int{r, y})
	}
	for x := r - 1; x >= -r; x-- {
		out = append(out, [2]int{x, -r})
	}
	for y := -r + 1; y <= r-1; y++ {
		out = append(out, [2]int{-r, y})
	}
	return out
}

// PlacePortalRoom creates a room in the first free slot of the portal plane,
// searching outward from the origin in square rings up to the configured
// radius.
func (g *Graph) PlacePortalRoom(ctx context.Context, storyID, name, description string) (*models.Room, error) {
	rooms, err := g.rooms.ListRooms(ctx, storyID)
	if err != nil {
		return nil, err
	}
	taken := make(map[[2]int]bool)
	for _, r := range rooms {
		if r.Coord.Z == models.PortalBandZ {
			taken[[2]int{r.Coord.X, r.Coord.Y}] = true
		}
	}

	for r := 0; r <= g.portalRadius; r++ {
		for _, xy := range spiral(r) {
			if taken[xy] {
				continue
			}
			c := models.Coord{X: xy[0], Y: xy[1], Z: models.PortalBandZ}
			room, err := g.createAt(ctx, storyID, c, name, description)
			if errors.Is(err, ErrSlotOccupied) {
				continue
			}
			return room, err
		}
	}
	return nil, ErrNoPortalSlot
}

// OpenPortal links from to a destination through a named portal. The
// destination receives a reciprocal portal unless the portal is one-way.
func (g *Graph) OpenPortal(ctx context.Context, from *models.Room, opts PortalOptions) (*models.Portal, *models.Room, error) {
	var dest *models.Room
	var err error
	if opts.TargetRoomID != "" {
		dest, err = g.rooms.GetRoom(ctx, opts.TargetRoomID)
	} else {
		name := opts.DestinationName
		if name == "" {
			name = "Between"
		}
		dest, err = g.PlacePortalRoom(ctx, from.StoryID, name, opts.DestinationDescription)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open portal %q: %w", opts.Name, err)
	}

	expires := 0
	if opts.Turns > 0 {
		expires = opts.CurrentTurn + opts.Turns
	}
	portal := models.Portal{
		ID:            uuid.NewString(),
		Name:          opts.Name,
		TargetRoomID:  dest.ID,
		OneWay:        opts.OneWay,
		ExpiresAtTurn: expires,
	}
	from.Portals = append(from.Portals, portal)
	if err := g.rooms.UpdateRoom(ctx, from); err != nil {
		return nil, nil, err
	}
	if !opts.OneWay {
		dest.Portals = append(dest.Portals, models.Portal{
			ID:            uuid.NewString(),
			Name:          opts.Name,
			TargetRoomID:  from.ID,
			ExpiresAtTurn: expires,
		})
		if err := g.rooms.UpdateRoom(ctx, dest); err != nil {
			return nil, nil, err
		}
	}
	return &portal, dest, nil
}

// FindPortal matches an open portal in room by name. A blank name or the
// word "portal" selects the only open portal when there is exactly one.
func FindPortal(room *models.Room, name string, turn int) (*models.Portal, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	var open []*models.Portal
	for i := range room.Portals {
		if !room.Portals[i].Expired(turn) {
			open = append(open, &room.Portals[i])
		}
	}
	for _, p := range open {
		if pn := strings.ToLower(p.Name); pn == name || (name != "" && strings.Contains(pn, name)) {
			return p, true
		}
	}
	if (name == "" || name == "portal") && len(open) == 1 {
		return open[0], true
	}
	return nil, false
}

// EnterPortal follows the named portal out of room.
func (g *Graph) EnterPortal(ctx context.Context, room *models.Room, name string, turn int) (*models.Room, error) {
	p, ok := FindPortal(room, name, turn)
	if !ok {
		return nil, ErrNoPortal
	}
	return g.rooms.GetRoom(ctx, p.TargetRoomID)
}

// PrunePortals removes expired portals across the story and reports how
// many were closed.
func (g *Graph) PrunePortals(ctx context.Context, storyID string, turn int) (int, error) {
	rooms, err := g.rooms.ListRooms(ctx, storyID)
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range rooms {
		room := &rooms[i]
		kept := room.Portals[:0]
		for _, p := range room.Portals {
			if p.Expired(turn) {
				closed++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == len(room.Portals) {
			continue
		}
		room.Portals = kept
		if err := g.rooms.UpdateRoom(ctx, room); err != nil {
			return closed, err
		}
	}
	return closed, nil
}
