package world

import (
	"context"
	"fmt"
	"strings"

	"github.com/tatianab/text-engine/internal/models"
)

// VehiclesAt lists the vehicles docked at roomID.
func (g *Graph) VehiclesAt(ctx context.Context, storyID, roomID string) ([]models.Room, error) {
	rooms, err := g.rooms.ListRooms(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var out []models.Room
	for _, r := range rooms {
		if r.Vehicle != nil && r.Vehicle.DockedAt == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Destinations resolves the known destinations of a vehicle.
func (g *Graph) Destinations(ctx context.Context, vehicle *models.Room) ([]models.Room, error) {
	if vehicle.Vehicle == nil {
		return nil, ErrNotVehicle
	}
	out := make([]models.Room, 0, len(vehicle.Vehicle.Destinations))
	for _, id := range vehicle.Vehicle.Destinations {
		r, err := g.rooms.GetRoom(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", id, err)
		}
		out = append(out, *r)
	}
	return out, nil
}

// ResolveDestination matches a known destination by id or name.
func (g *Graph) ResolveDestination(ctx context.Context, vehicle *models.Room, name string) (*models.Room, error) {
	dests, err := g.Destinations(ctx, vehicle)
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range dests {
		if dests[i].ID == name || strings.ToLower(dests[i].Name) == name {
			return &dests[i], nil
		}
	}
	for i := range dests {
		if name != "" && strings.Contains(strings.ToLower(dests[i].Name), name) {
			return &dests[i], nil
		}
	}
	return nil, ErrUnknownDest
}

// Travel re-docks the vehicle at dest, remembering the previous dock and
// adding dest to the known destinations.
func (g *Graph) Travel(ctx context.Context, vehicle *models.Room, dest *models.Room) error {
	if vehicle.Vehicle == nil {
		return ErrNotVehicle
	}
	if dest.ID == vehicle.ID || dest.StoryID != vehicle.StoryID {
		return ErrUnknownDest
	}
	v := vehicle.Vehicle
	if v.DockedAt != dest.ID {
		v.PreviousDock = v.DockedAt
		v.DockedAt = dest.ID
	}
	if !v.Knows(dest.ID) {
		v.Destinations = append(v.Destinations, dest.ID)
	}
	return g.rooms.UpdateRoom(ctx, vehicle)
}

// GoBack returns the vehicle to its previous dock.
func (g *Graph) GoBack(ctx context.Context, vehicle *models.Room) (*models.Room, error) {
	if vehicle.Vehicle == nil {
		return nil, ErrNotVehicle
	}
	if vehicle.Vehicle.PreviousDock == "" {
		return nil, ErrNoPreviousDock
	}
	dest, err := g.rooms.GetRoom(ctx, vehicle.Vehicle.PreviousDock)
	if err != nil {
		return nil, err
	}
	if err := g.Travel(ctx, vehicle, dest); err != nil {
		return nil, err
	}
	return dest, nil
}

// Dock returns the room a vehicle is docked at.
func (g *Graph) Dock(ctx context.Context, vehicle *models.Room) (*models.Room, error) {
	if vehicle.Vehicle == nil || vehicle.Vehicle.DockedAt == "" {
		return nil, ErrNotVehicle
	}
	return g.rooms.GetRoom(ctx, vehicle.Vehicle.DockedAt)
}
