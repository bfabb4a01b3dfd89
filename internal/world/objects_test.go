package world

import (
	"context"
	"errors"
	"testing"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

func seedObjects(t *testing.T) (*Objects, *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	for _, o := range []models.GameObject{
		{ID: "key", StoryID: "s1", Name: "rusty key", Aliases: []string{"key"}, RoomID: "cell", Takeable: true},
		{ID: "bed", StoryID: "s1", Name: "bed", RoomID: "cell"},
		{ID: "chest", StoryID: "s1", Name: "iron chest", RoomID: "cell", Container: true, State: models.ObjectState{Closable: true}},
		{ID: "lamp", StoryID: "s1", Name: "oil lamp", ContainerID: "chest", Takeable: true},
		{ID: "coin", StoryID: "s1", Name: "coin", RoomID: "hall", Takeable: true},
	} {
		o := o
		if err := st.SaveObject(ctx, &o); err != nil {
			t.Fatalf("SaveObject: %v", err)
		}
	}
	return NewObjects(st), st
}

func TestTakeAndDrop(t *testing.T) {
	ctx := context.Background()
	objs, _ := seedObjects(t)

	if _, err := objs.Take(ctx, "s1", "cell", "key"); err != nil {
		t.Fatalf("Take: %v", err)
	}
	inv, _ := objs.Inventory(ctx, "s1")
	if len(inv) != 1 || inv[0].ID != "key" {
		t.Fatalf("expected key in inventory, got %v", inv)
	}
	if _, err := objs.Take(ctx, "s1", "cell", "key"); !errors.Is(err, ErrAlreadyCarried) {
		t.Errorf("expected ErrAlreadyCarried, got %v", err)
	}
	if _, err := objs.Take(ctx, "s1", "cell", "bed"); !errors.Is(err, ErrNotTakeable) {
		t.Errorf("expected ErrNotTakeable, got %v", err)
	}
	if _, err := objs.Take(ctx, "s1", "cell", "coin"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected coin in another room to be out of reach, got %v", err)
	}

	if _, err := objs.Drop(ctx, "s1", "hall", "key"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	here, _ := objs.InRoom(ctx, "s1", "hall")
	if len(here) != 2 {
		t.Errorf("expected key and coin in hall, got %v", here)
	}
	if _, err := objs.Drop(ctx, "s1", "hall", "key"); !errors.Is(err, ErrNotCarried) {
		t.Errorf("expected ErrNotCarried, got %v", err)
	}
}

func TestContainers(t *testing.T) {
	ctx := context.Background()
	objs, st := seedObjects(t)

	if _, err := objs.Take(ctx, "s1", "cell", "lamp"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected lamp hidden in closed chest, got %v", err)
	}
	if _, err := objs.SetOpen(ctx, "s1", "cell", "chest", true); err != nil {
		t.Fatalf("SetOpen: %v", err)
	}
	if _, err := objs.Take(ctx, "s1", "cell", "lamp"); err != nil {
		t.Fatalf("Take lamp: %v", err)
	}

	if _, _, err := objs.Put(ctx, "s1", "cell", "key", "bed"); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got %v", err)
	}
	if _, _, err := objs.Put(ctx, "s1", "cell", "lamp", "chest"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	lamp, _ := st.GetObject(ctx, "lamp")
	if lamp.ContainerID != "chest" || lamp.RoomID != "" {
		t.Errorf("expected lamp only in chest, got %+v", lamp)
	}

	if _, err := objs.SetOpen(ctx, "s1", "cell", "chest", false); err != nil {
		t.Fatalf("SetOpen: %v", err)
	}
	if _, _, err := objs.Put(ctx, "s1", "cell", "key", "chest"); !errors.Is(err, ErrContainerClosed) {
		t.Errorf("expected ErrContainerClosed, got %v", err)
	}
	if _, err := objs.SetOpen(ctx, "s1", "cell", "bed", true); !errors.Is(err, ErrNotClosable) {
		t.Errorf("expected ErrNotClosable, got %v", err)
	}
	// A box in the room holding an open bag: the box cannot go into the bag.
	for _, o := range []models.GameObject{
		{ID: "box", StoryID: "s1", Name: "box", RoomID: "cell", Container: true, Takeable: true},
		{ID: "bag", StoryID: "s1", Name: "bag", ContainerID: "box", Container: true, Takeable: true},
	} {
		o := o
		_ = st.SaveObject(ctx, &o)
	}
	if _, _, err := objs.Put(ctx, "s1", "cell", "box", "bag"); !errors.Is(err, ErrContainsItself) {
		t.Errorf("expected ErrContainsItself, got %v", err)
	}
	box, _ := st.GetObject(ctx, "box")
	if box.RoomID != "cell" || box.ContainerID != "" {
		t.Errorf("expected box to stay in the cell, got %+v", box)
	}
	if _, err := objs.Find(ctx, "s1", "cell", "bag"); err != nil {
		t.Errorf("expected bag still reachable, got %v", err)
	}
	if _, _, err := objs.Put(ctx, "s1", "cell", "key", "bag"); err != nil {
		t.Errorf("expected key to fit in the nested bag, got %v", err)
	}
}

func TestLoseKeepsStoryCriticalObjects(t *testing.T) {
	ctx := context.Background()
	objs, st := seedObjects(t)
	crit := &models.GameObject{ID: "idol", StoryID: "s1", Name: "idol", StoryCritical: true}
	_ = st.SaveObject(ctx, crit)

	if _, err := objs.Lose(ctx, "idol", "cell"); err != nil {
		t.Fatalf("Lose: %v", err)
	}
	idol, err := st.GetObject(ctx, "idol")
	if err != nil || idol.RoomID != "cell" {
		t.Fatalf("expected idol dropped in cell, got %+v, %v", idol, err)
	}
	if _, err := objs.Lose(ctx, "coin", "cell"); err != nil {
		t.Fatalf("Lose: %v", err)
	}
	if _, err := st.GetObject(ctx, "coin"); err == nil {
		t.Error("expected ordinary object to be destroyed")
	}
}

func TestImportDefaultSeed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed := models.DefaultSeed()
	if err := Import(ctx, st, seed); err != nil {
		t.Fatalf("Import: %v", err)
	}
	p, err := st.GetPlayer(ctx, seed.StoryID)
	if err != nil || p.RoomID != seed.StartRoom {
		t.Fatalf("GetPlayer = %+v, %v", p, err)
	}
	tunnel, err := st.GetRoom(ctx, "tunnel")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if !tunnel.ExitVisible(models.Up) {
		t.Error("expected tunnel to lead back up")
	}
	if err := Import(ctx, st, seed); err == nil {
		t.Error("expected a second import of the same world to conflict")
	}
}

func TestBuildRejectsUnknownDilemmaTrait(t *testing.T) {
	seed := models.DefaultSeed()
	seed.Dilemmas[0].Options[0].Implication.Trait = "kindness"
	if _, err := Build(seed); err == nil {
		t.Fatal("expected a dilemma with an unknown trait to be rejected")
	}
}

func TestBuildAddsReciprocalsAndRejectsConflicts(t *testing.T) {
	seed := &models.WorldSeed{
		StoryID:   "s1",
		StartRoom: "a",
		Rooms: []models.Room{
			{ID: "a", StoryID: "s1", Exits: map[models.Direction]string{models.North: "b"}, HiddenExits: []models.Direction{models.North}},
			{ID: "b", StoryID: "s1", Coord: models.Coord{Y: 1}},
		},
	}
	w, err := Build(seed)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b := w.Rooms[1]
	if b.Exits[models.South] != "a" || !b.IsHidden(models.South) {
		t.Fatalf("expected hidden reciprocal south exit, got %+v", b)
	}
	if _, ok := seed.Rooms[1].Exits[models.South]; ok {
		t.Error("expected Build to leave the seed untouched")
	}

	seed.Rooms = append(seed.Rooms, models.Room{ID: "c", StoryID: "s1", Coord: models.Coord{Y: 1}})
	if _, err := Build(seed); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied for shared coordinates, got %v", err)
	}
}
