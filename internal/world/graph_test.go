package world

import (
	"context"
	"errors"
	"testing"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

type stubExpander struct {
	calls int
	err   error
}

func (s *stubExpander) DescribeNewRoom(_ context.Context, _ *models.Room, d models.Direction) (string, string, error) {
	s.calls++
	if s.err != nil {
		return "", "", s.err
	}
	return "Room to the " + string(d), "Freshly imagined.", nil
}

func newGraph(t *testing.T) (*Graph, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewGraph(st), st
}

// TestConnectCellToHall covers the cell/hall scenario: a bidirectional
// connect yields the reciprocal exit.
func TestConnectCellToHall(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)

	cell, err := g.CreateRoom(ctx, "s1", models.Coord{}, "Cell", "")
	if err != nil {
		t.Fatalf("CreateRoom cell: %v", err)
	}
	hall, err := g.CreateRoom(ctx, "s1", models.Coord{X: 1}, "Hall", "")
	if err != nil {
		t.Fatalf("CreateRoom hall: %v", err)
	}
	if err := g.Connect(ctx, cell, hall, models.East, ConnectOptions{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	cell, _ = g.Room(ctx, cell.ID)
	hall, _ = g.Room(ctx, hall.ID)
	if !g.Exits(cell)[models.East] {
		t.Errorf("expected cell exits.east=true, got %v", g.Exits(cell))
	}
	if !g.Exits(hall)[models.West] {
		t.Errorf("expected hall exits.west=true, got %v", g.Exits(hall))
	}
}

func TestConnectOneWay(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{Z: -1}, "B", "")
	if err := g.Connect(ctx, a, b, models.Down, ConnectOptions{OneWay: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	b, _ = g.Room(ctx, b.ID)
	if len(g.Exits(b)) != 0 {
		t.Errorf("expected no reciprocal exit, got %v", g.Exits(b))
	}
}

func TestConnectDiscoversHiddenExit(t *testing.T) {
	ctx := context.Background()
	g, st := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{Z: -1}, "B", "")
	a.Hide(models.Down)
	b.Hide(models.Up)
	_ = st.UpdateRoom(ctx, a)
	_ = st.UpdateRoom(ctx, b)

	if err := g.Connect(ctx, a, b, models.Down, ConnectOptions{Discover: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	a, _ = g.Room(ctx, a.ID)
	b, _ = g.Room(ctx, b.ID)
	if !a.ExitVisible(models.Down) || !b.ExitVisible(models.Up) {
		t.Fatalf("expected both sides discovered, got %v / %v", a.DiscoveredExits, b.DiscoveredExits)
	}
	if !a.IsHidden(models.Down) {
		t.Error("expected hidden flag to stay set after discovery")
	}
}

func TestConnectKeepsExistingExits(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 1}, "B", "")
	c, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 5}, "C", "")
	d, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 6}, "D", "")

	if err := g.Connect(ctx, a, b, models.East, ConnectOptions{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.Connect(ctx, a, b, models.East, ConnectOptions{}); err != nil {
		t.Errorf("expected reconnecting the same rooms to succeed, got %v", err)
	}
	if err := g.Connect(ctx, a, c, models.East, ConnectOptions{}); !errors.Is(err, ErrExitTaken) {
		t.Fatalf("expected ErrExitTaken, got %v", err)
	}
	if err := g.Connect(ctx, d, b, models.East, ConnectOptions{}); !errors.Is(err, ErrExitTaken) {
		t.Fatalf("expected ErrExitTaken for b's west side, got %v", err)
	}

	a, _ = g.Room(ctx, a.ID)
	b, _ = g.Room(ctx, b.ID)
	c, _ = g.Room(ctx, c.ID)
	if id, _ := a.Neighbor(models.East); id != b.ID {
		t.Errorf("expected a.east to stay %s, got %s", b.ID, id)
	}
	if id, _ := b.Neighbor(models.West); id != a.ID {
		t.Errorf("expected b.west to stay %s, got %s", a.ID, id)
	}
	if _, ok := c.Neighbor(models.West); ok {
		t.Errorf("expected c to stay unlinked, got %v", c.Exits)
	}
}

func TestMoveDoesNotStealNeighborExit(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 1}, "B", "")
	far, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 9}, "Far", "")
	if err := g.Connect(ctx, far, b, models.East, ConnectOptions{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, _, err := g.Move(ctx, a, models.East, &stubExpander{}); !errors.Is(err, ErrNoExit) {
		t.Fatalf("expected ErrNoExit, got %v", err)
	}
	b, _ = g.Room(ctx, b.ID)
	if id, _ := b.Neighbor(models.West); id != far.ID {
		t.Errorf("expected b.west to stay %s, got %s", far.ID, id)
	}
}

func TestCreateRoomRejectsOccupiedSlot(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	if _, err := g.CreateRoom(ctx, "s1", models.Coord{X: 3}, "A", ""); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := g.CreateRoom(ctx, "s1", models.Coord{X: 3}, "B", ""); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}
	if _, err := g.CreateRoom(ctx, "s1", models.Coord{Z: models.PortalBandZ}, "P", ""); !errors.Is(err, ErrPortalBand) {
		t.Fatalf("expected ErrPortalBand, got %v", err)
	}
}

func TestMoveFollowsVisibleExitsOnly(t *testing.T) {
	ctx := context.Background()
	g, st := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{Z: -1}, "B", "")
	_ = g.Connect(ctx, a, b, models.Down, ConnectOptions{})
	a.Hide(models.Down)
	_ = st.UpdateRoom(ctx, a)

	if _, _, err := g.Move(ctx, a, models.Down, nil); !errors.Is(err, ErrNoExit) {
		t.Fatalf("expected hidden exit to block movement, got %v", err)
	}
	if ok, err := g.DiscoverExit(ctx, a, models.Down); err != nil || !ok {
		t.Fatalf("DiscoverExit = %v, %v", ok, err)
	}
	dest, created, err := g.Move(ctx, a, models.Down, nil)
	if err != nil || created || dest.ID != b.ID {
		t.Fatalf("Move = %v, %v, %v", dest, created, err)
	}
}

func TestMoveExpandsTheGrid(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	exp := &stubExpander{}
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")

	dest, created, err := g.Move(ctx, a, models.North, exp)
	if err != nil || !created {
		t.Fatalf("Move = %v, %v, %v", dest, created, err)
	}
	if dest.Coord != (models.Coord{Y: 1}) || dest.Name != "Room to the north" {
		t.Errorf("unexpected new room %+v", dest)
	}
	a, _ = g.Room(ctx, a.ID)
	dest, _ = g.Room(ctx, dest.ID)
	if !a.ExitVisible(models.North) || !dest.ExitVisible(models.South) {
		t.Error("expected the new room to be linked both ways")
	}
}

func TestMoveLinksExistingRoomInsteadOfCreating(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	exp := &stubExpander{}
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{X: -1}, "B", "")

	dest, created, err := g.Move(ctx, a, models.West, exp)
	if err != nil || created || dest.ID != b.ID {
		t.Fatalf("Move = %v, %v, %v", dest, created, err)
	}
	if exp.calls != 0 {
		t.Errorf("expected no description request, got %d", exp.calls)
	}
}

func TestMoveFallsBackWhenExpanderFails(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	dest, created, err := g.Move(ctx, a, models.Up, &stubExpander{err: errors.New("offline")})
	if err != nil || !created {
		t.Fatalf("Move = %v, %v, %v", dest, created, err)
	}
	if dest.Name != "Uncharted Passage" {
		t.Errorf("expected fallback name, got %q", dest.Name)
	}
}

func TestPortalPlacementUsesSpiral(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")

	seen := make(map[models.Coord]bool)
	for i := 0; i < 10; i++ {
		_, dest, err := g.OpenPortal(ctx, a, PortalOptions{Name: "shimmer", DestinationName: "Elsewhere"})
		if err != nil {
			t.Fatalf("OpenPortal %d: %v", i, err)
		}
		if !dest.Coord.InPortalBand() {
			t.Fatalf("expected portal room on the portal plane, got %s", dest.Coord)
		}
		if seen[dest.Coord] {
			t.Fatalf("portal room placed twice at %s", dest.Coord)
		}
		seen[dest.Coord] = true
		a, _ = g.Room(ctx, a.ID)
	}
	if !seen[models.Coord{Z: models.PortalBandZ}] {
		t.Error("expected the first portal room at the band origin")
	}
}

func TestPortalPlacementIsBounded(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	g := NewGraph(st, WithPortalRadius(1))
	for i := 0; i < 9; i++ {
		if _, err := g.PlacePortalRoom(ctx, "s1", "P", ""); err != nil {
			t.Fatalf("PlacePortalRoom %d: %v", i, err)
		}
	}
	if _, err := g.PlacePortalRoom(ctx, "s1", "P", ""); !errors.Is(err, ErrNoPortalSlot) {
		t.Fatalf("expected ErrNoPortalSlot once the 3x3 ring is full, got %v", err)
	}
}

func TestPortalsOneWayAndExpiry(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	a, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "A", "")
	b, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 9}, "B", "")

	if _, _, err := g.OpenPortal(ctx, a, PortalOptions{Name: "rift", TargetRoomID: b.ID, OneWay: true}); err != nil {
		t.Fatalf("OpenPortal: %v", err)
	}
	b, _ = g.Room(ctx, b.ID)
	if len(b.Portals) != 0 {
		t.Errorf("expected one-way portal to have no return, got %v", b.Portals)
	}

	a, _ = g.Room(ctx, a.ID)
	if _, _, err := g.OpenPortal(ctx, a, PortalOptions{Name: "gate", TargetRoomID: b.ID, Turns: 2, CurrentTurn: 5}); err != nil {
		t.Fatalf("OpenPortal: %v", err)
	}
	a, _ = g.Room(ctx, a.ID)
	if dest, err := g.EnterPortal(ctx, a, "gate", 6); err != nil || dest.ID != b.ID {
		t.Fatalf("EnterPortal = %v, %v", dest, err)
	}
	if _, err := g.EnterPortal(ctx, a, "gate", 7); !errors.Is(err, ErrNoPortal) {
		t.Fatalf("expected expired portal to be closed, got %v", err)
	}
	closed, err := g.PrunePortals(ctx, "s1", 7)
	if err != nil || closed != 2 {
		t.Fatalf("PrunePortals = %d, %v; want 2 (both ends)", closed, err)
	}
}

func TestVehicleTravelAndGoBack(t *testing.T) {
	ctx := context.Background()
	g, st := newGraph(t)
	dock, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "Dock", "")
	isle, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 10}, "Isle", "")
	boat, _ := g.CreateRoom(ctx, "s1", models.Coord{X: 20}, "Boat", "")
	boat.Vehicle = &models.Vehicle{DockedAt: dock.ID}
	_ = st.UpdateRoom(ctx, boat)

	dest, err := g.ResolveDestination(ctx, boat, "isle")
	if !errors.Is(err, ErrUnknownDest) {
		t.Fatalf("expected isle to be unknown before travel, got %v, %v", dest, err)
	}
	if err := g.Travel(ctx, boat, isle); err != nil {
		t.Fatalf("Travel: %v", err)
	}
	boat, _ = g.Room(ctx, boat.ID)
	if boat.Vehicle.DockedAt != isle.ID || boat.Vehicle.PreviousDock != dock.ID || !boat.Vehicle.Knows(isle.ID) {
		t.Fatalf("unexpected vehicle state %+v", boat.Vehicle)
	}
	docked, _ := g.VehiclesAt(ctx, "s1", isle.ID)
	if len(docked) != 1 {
		t.Errorf("expected boat docked at isle, got %v", docked)
	}

	back, err := g.GoBack(ctx, boat)
	if err != nil || back.ID != dock.ID {
		t.Fatalf("GoBack = %v, %v", back, err)
	}
	if boat.Vehicle.PreviousDock != isle.ID {
		t.Errorf("expected previous dock to flip to isle, got %s", boat.Vehicle.PreviousDock)
	}
}

func TestGoBackWithoutHistory(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t)
	boat, _ := g.CreateRoom(ctx, "s1", models.Coord{}, "Boat", "")
	if _, err := g.GoBack(ctx, boat); !errors.Is(err, ErrNotVehicle) {
		t.Fatalf("expected ErrNotVehicle, got %v", err)
	}
	boat.Vehicle = &models.Vehicle{DockedAt: "x"}
	if _, err := g.GoBack(ctx, boat); !errors.Is(err, ErrNoPreviousDock) {
		t.Fatalf("expected ErrNoPreviousDock, got %v", err)
	}
}
