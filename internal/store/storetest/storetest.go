// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("RoomCoordinatesAreUnique", func(t *testing.T) {
		testRoomCoordinatesAreUnique(t, open(t))
	})
	t.Run("RoomLookup", func(t *testing.T) {
		testRoomLookup(t, open(t))
	})
	t.Run("ObjectsRoundTrip", func(t *testing.T) {
		testObjects(t, open(t))
	})
	t.Run("AbilitiesAndCache", func(t *testing.T) {
		testAbilitiesAndCache(t, open(t))
	})
	t.Run("Transcript", func(t *testing.T) {
		testTranscript(t, open(t))
	})
	t.Run("ImportWorldIsAtomic", func(t *testing.T) {
		testImportWorldIsAtomic(t, open(t))
	})
}

func testRoomCoordinatesAreUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.CreateRoom(ctx, &models.Room{ID: "a", StoryID: "s1", Name: "A"}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	err := s.CreateRoom(ctx, &models.Room{ID: "b", StoryID: "s1", Name: "B"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for occupied slot, got %v", err)
	}
	if err := s.CreateRoom(ctx, &models.Room{ID: "c", StoryID: "s2", Name: "C"}); err != nil {
		t.Fatalf("expected same coordinates in another story to be allowed, got %v", err)
	}
}

func testRoomLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	room := &models.Room{
		ID:          "cell",
		StoryID:     "s1",
		Coord:       models.Coord{X: 1, Y: -2, Z: 0},
		Name:        "Cell",
		Exits:       map[models.Direction]string{models.East: "hall"},
		HiddenExits: []models.Direction{models.Down},
	}
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	got, err := s.RoomAt(ctx, "s1", models.Coord{X: 1, Y: -2})
	if err != nil {
		t.Fatalf("RoomAt: %v", err)
	}
	if got.ID != "cell" || got.Exits[models.East] != "hall" || !got.IsHidden(models.Down) {
		t.Fatalf("unexpected room %+v", got)
	}
	if got.Atmosphere.Version != models.AtmosphereVersion {
		t.Errorf("expected atmosphere migrated on read, got version %d", got.Atmosphere.Version)
	}

	got.Name = "Old Cell"
	if err := s.UpdateRoom(ctx, got); err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	again, err := s.GetRoom(ctx, "cell")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if again.Name != "Old Cell" {
		t.Errorf("expected updated name, got %q", again.Name)
	}

	if _, err := s.GetRoom(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateRoom(ctx, &models.Room{ID: "missing", StoryID: "s1", Coord: models.Coord{X: 9}}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
	rooms, err := s.ListRooms(ctx, "s1")
	if err != nil || len(rooms) != 1 {
		t.Fatalf("ListRooms = %v, %v", rooms, err)
	}
}

func testObjects(t *testing.T, s store.Store) {
	ctx := context.Background()
	obj := &models.GameObject{ID: "key", StoryID: "s1", Name: "key", RoomID: "cell", Takeable: true}
	if err := s.SaveObject(ctx, obj); err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	obj.MoveToInventory()
	if err := s.SaveObject(ctx, obj); err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	got, err := s.GetObject(ctx, "key")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if !got.InInventory() {
		t.Fatalf("expected key in inventory, got %+v", got)
	}

	bad := &models.GameObject{ID: "x", StoryID: "s1", RoomID: "cell", ContainerID: "chest"}
	if err := s.SaveObject(ctx, bad); err == nil {
		t.Fatal("expected double-location object to be rejected")
	}

	if err := s.DeleteObject(ctx, "key"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	objs, err := s.ListObjects(ctx, "s1")
	if err != nil || len(objs) != 0 {
		t.Fatalf("ListObjects = %v, %v", objs, err)
	}
}

func testAbilitiesAndCache(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := &models.Ability{StoryID: "s1", Key: "athletics", Name: "Athletics", Level: 4}
	if err := s.SaveAbility(ctx, a); err != nil {
		t.Fatalf("SaveAbility: %v", err)
	}
	got, err := s.GetAbility(ctx, "s1", "athletics")
	if err != nil {
		t.Fatalf("GetAbility: %v", err)
	}
	if got.Level != 4 {
		t.Errorf("expected level 4, got %v", got.Level)
	}
	if _, err := s.GetAbility(ctx, "s2", "athletics"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected abilities to be story scoped, got %v", err)
	}

	entry := &models.CacheEntry{Key: "k", Kind: models.CacheExact, StoryID: "s1", RoomID: "cell", Response: "hello"}
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}
	cached, err := s.GetCacheEntry(ctx, "k")
	if err != nil || cached.Response != "hello" {
		t.Fatalf("GetCacheEntry = %+v, %v", cached, err)
	}
}

func testTranscript(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range []string{"look", "A cell.", "east", "A hall."} {
		role := "player"
		if i%2 == 1 {
			role = "narrator"
		}
		if err := s.AppendTranscript(ctx, &models.TranscriptEntry{StoryID: "s1", Turn: i / 2, Role: role, Text: text, At: at}); err != nil {
			t.Fatalf("AppendTranscript: %v", err)
		}
	}
	last, err := s.ListTranscript(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("ListTranscript: %v", err)
	}
	if len(last) != 2 || last[0].Text != "east" || last[1].Text != "A hall." {
		t.Fatalf("unexpected tail %+v", last)
	}
}

func testImportWorldIsAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.CreateRoom(ctx, &models.Room{ID: "taken", StoryID: "s1", Coord: models.Coord{X: 5}}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	w := &store.World{
		Rooms: []models.Room{
			{ID: "a", StoryID: "s1", Coord: models.Coord{X: 0}},
			{ID: "b", StoryID: "s1", Coord: models.Coord{X: 5}},
		},
		Player:      models.PlayerState{StoryID: "s1", RoomID: "a"},
		Personality: *models.NewPersonalityScore("s1"),
	}
	if err := s.ImportWorld(ctx, w); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetRoom(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected failed import to leave no rooms, got %v", err)
	}
	if _, err := s.GetPlayer(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected failed import to leave no player, got %v", err)
	}

	w.Rooms[1].Coord = models.Coord{X: 6}
	if err := s.ImportWorld(ctx, w); err != nil {
		t.Fatalf("ImportWorld: %v", err)
	}
	p, err := s.GetPersonality(ctx, "s1")
	if err != nil || p.Traits[models.Openness].Score != 50 {
		t.Fatalf("GetPersonality = %+v, %v", p, err)
	}
}
