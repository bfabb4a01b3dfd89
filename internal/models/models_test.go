package models

import (
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestWorldSeedYAML(t *testing.T) {
	seed := &WorldSeed{
		StoryID:   "hidden-manor",
		Title:     "The Hidden Manor",
		StartRoom: "entrance",
		Rooms: []Room{
			{
				ID:    "entrance",
				Name:  "Entrance",
				Coord: Coord{X: 0, Y: 0, Z: 0},
				Exits: map[Direction]string{North: "study"},
			},
			{
				ID:    "study",
				Name:  "Study",
				Coord: Coord{X: 0, Y: 1, Z: 0},
				Exits: map[Direction]string{South: "entrance"},
			},
		},
		TimedEvents: []TimedEvent{
			{ID: "fire", Name: "fire", TotalTurns: 3, Progress: map[int]string{1: "Smoke pours in."}},
		},
	}

	data, err := yaml.Marshal(seed)
	if err != nil {
		t.Fatalf("Failed to marshal seed: %v", err)
	}

	seed2, err := ParseSeed(data)
	if err != nil {
		t.Fatalf("Failed to parse seed: %v", err)
	}

	if seed2.Rooms[0].Exits[North] != "study" {
		t.Errorf("Expected north exit to study, got %q", seed2.Rooms[0].Exits[North])
	}
	if seed2.Rooms[1].StoryID != "hidden-manor" {
		t.Errorf("Expected story id to be stamped, got %q", seed2.Rooms[1].StoryID)
	}
	if seed2.TimedEvents[0].RemainingTurns != 3 {
		t.Errorf("Expected remaining turns 3, got %d", seed2.TimedEvents[0].RemainingTurns)
	}
	if seed2.TimedEvents[0].Progress[1] != "Smoke pours in." {
		t.Errorf("Expected progress narrative to survive, got %v", seed2.TimedEvents[0].Progress)
	}
}

func TestParseSeedRequiresStoryID(t *testing.T) {
	if _, err := ParseSeed([]byte("title: nothing\n")); err == nil {
		t.Fatal("Expected an error for a seed without story_id")
	}
}

func TestDefaultSeed(t *testing.T) {
	seed := DefaultSeed()
	if seed.StartRoom == "" || len(seed.Rooms) == 0 {
		t.Fatalf("Expected a playable default seed, got %+v", seed)
	}
	for _, a := range seed.Abilities {
		if a.Key != AbilityKey(a.Name) {
			t.Errorf("Expected ability key %q, got %q", AbilityKey(a.Name), a.Key)
		}
		if a.Triggers.Version != TriggersVersion {
			t.Errorf("Expected triggers to be migrated for %s", a.Name)
		}
	}
	for _, d := range seed.Dilemmas {
		if err := d.Validate(); err != nil {
			t.Error(err)
		}
		if d.State != DilemmaUntriggered {
			t.Errorf("Expected dilemma %s to start untriggered, got %s", d.ID, d.State)
		}
	}
}

func TestSeedSaveRoundTrip(t *testing.T) {
	old := SaveDir
	SaveDir = t.TempDir()
	defer func() { SaveDir = old }()

	seed := DefaultSeed()
	if err := seed.Save("starter"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saves, err := ListSaves()
	if err != nil {
		t.Fatalf("ListSaves: %v", err)
	}
	if len(saves) != 1 || saves[0] != "starter" {
		t.Fatalf("Expected [starter], got %v", saves)
	}
	loaded, err := LoadSeed(filepath.Join(SaveDir, "starter", "world.yaml"))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(loaded.Rooms) != len(seed.Rooms) {
		t.Errorf("Expected %d rooms, got %d", len(seed.Rooms), len(loaded.Rooms))
	}
}

func TestDirectionOpposites(t *testing.T) {
	for _, d := range Directions {
		if d.Opposite().Opposite() != d {
			t.Errorf("Expected %s to be its opposite's opposite", d)
		}
		if d.Offset().Add(d.Opposite().Offset()) != (Coord{}) {
			t.Errorf("Expected offsets of %s and %s to cancel", d, d.Opposite())
		}
	}
	if d, ok := ParseDirection("E"); !ok || d != East {
		t.Errorf("Expected E to parse as east, got %q", d)
	}
	if _, ok := ParseDirection("sideways"); ok {
		t.Error("Expected sideways to be rejected")
	}
}

func TestHiddenAndDiscoveredAreIndependent(t *testing.T) {
	r := &Room{Exits: map[Direction]string{Down: "tunnel"}, HiddenExits: []Direction{Down}}
	if r.ExitVisible(Down) {
		t.Fatal("Expected hidden exit to be invisible")
	}
	if _, ok := r.Neighbor(Down); !ok {
		t.Fatal("Expected hidden exit to still have a neighbor")
	}
	r.Discover(Down)
	if !r.ExitVisible(Down) || !r.IsHidden(Down) {
		t.Fatal("Expected discovered exit to be visible while staying in the hidden set")
	}
	if got := r.VisibleExits(); !got[Down] || len(got) != 1 {
		t.Errorf("Expected only down to be visible, got %v", got)
	}
}

func TestObjectLocation(t *testing.T) {
	o := &GameObject{ID: "key", RoomID: "cell"}
	o.MoveToContainer("chest")
	if o.RoomID != "" || o.ContainerID != "chest" {
		t.Fatalf("Expected object only in container, got %+v", o)
	}
	o.MoveToInventory()
	if !o.InInventory() {
		t.Fatal("Expected object in inventory")
	}
	o.RoomID, o.ContainerID = "cell", "chest"
	if err := o.Validate(); err == nil {
		t.Fatal("Expected validation error for double location")
	}
}

func TestDilemmaOption(t *testing.T) {
	d := &Dilemma{Options: []DilemmaOption{{ID: "a", Text: "Run"}, {ID: "b", Text: "Hide"}}}
	if o, ok := d.Option("b"); !ok || o.Text != "Hide" {
		t.Errorf("Expected option b, got %+v", o)
	}
	if o, ok := d.Option("1"); !ok || o.ID != "a" {
		t.Errorf("Expected first option by index, got %+v", o)
	}
	if _, ok := d.Option("4"); ok {
		t.Error("Expected out-of-range index to miss")
	}
	if o, ok := d.Option(" 2 "); !ok || o.ID != "b" {
		t.Errorf("Expected padded index to pick option b, got %+v", o)
	}
	if o, ok := d.Option("2abc"); ok {
		t.Errorf("Expected trailing junk to miss, got %+v", o)
	}
}

func TestDilemmaValidateTraits(t *testing.T) {
	d := &Dilemma{ID: "d1", Options: []DilemmaOption{
		{ID: "a", Implication: Implication{Trait: Agreeableness, Delta: 10}},
		{ID: "b", Implication: Implication{Trait: Neuroticism, Delta: -5, Secondary: Openness}},
	}}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	d.Options[0].Implication.Trait = "agreeablenes"
	if err := d.Validate(); err == nil {
		t.Error("Expected misspelled trait to fail validation")
	}
	d.Options[0].Implication.Trait = Agreeableness
	d.Options[1].Implication.Secondary = "grit"
	if err := d.Validate(); err == nil {
		t.Error("Expected unknown secondary trait to fail validation")
	}
}

func TestMigrate(t *testing.T) {
	a := Atmosphere{Tags: []string{" Damp", "damp", "COLD"}}
	a.Migrate()
	if a.Version != AtmosphereVersion || len(a.Tags) != 2 || a.Tags[0] != "cold" {
		t.Errorf("Unexpected migrated atmosphere: %+v", a)
	}
	s := ObjectState{Open: true, Locked: true}
	s.Migrate()
	if s.Open {
		t.Error("Expected locked object to be closed after migration")
	}
	ab := Ability{Level: 0}
	ab.Migrate()
	if ab.Level != 1 {
		t.Errorf("Expected level floor of 1, got %v", ab.Level)
	}
}

func TestAbilityKey(t *testing.T) {
	if AbilityKey("  Sleight   of HAND ") != "sleight of hand" {
		t.Errorf("Unexpected key %q", AbilityKey("  Sleight   of HAND "))
	}
	if AbilityDisplayName("sleight of hand") != "Sleight Of Hand" {
		t.Errorf("Unexpected display name %q", AbilityDisplayName("sleight of hand"))
	}
}
