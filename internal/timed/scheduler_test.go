package timed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

// TestTriggersOnExactTick ensures a three-turn event fires on the third tick.
func TestTriggersOnExactTick(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	s := New(st)
	ev := &models.TimedEvent{
		StoryID: "s1", Name: "flood", TotalTurns: 3,
		TriggerNarrative: "Water fills the cell.",
		Consequence:      models.Consequence{Type: models.ConsequenceGameOver},
	}
	if err := s.Start(ctx, ev); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for tick := 1; tick <= 4; tick++ {
		ups, err := s.Tick(ctx, "s1", "cell")
		if err != nil {
			t.Fatalf("Tick %d: %v", tick, err)
		}
		switch tick {
		case 1, 2:
			if len(ups) != 1 || ups[0].Triggered {
				t.Fatalf("tick %d: expected a countdown update, got %+v", tick, ups)
			}
		case 3:
			if len(ups) != 1 || !ups[0].Triggered {
				t.Fatalf("tick 3: expected trigger, got %+v", ups)
			}
			if ups[0].Narrative != "Water fills the cell." || ups[0].Consequence.Type != models.ConsequenceGameOver {
				t.Errorf("unexpected trigger update %+v", ups[0])
			}
		case 4:
			if len(ups) != 0 {
				t.Fatalf("tick 4: expected no updates after triggering, got %+v", ups)
			}
		}
	}
	evs, _ := st.ListTimedEvents(ctx, "s1")
	if evs[0].Active || !evs[0].Triggered {
		t.Errorf("expected triggered inactive event, got %+v", evs[0])
	}
}

func TestProgressAndUrgency(t *testing.T) {
	ev := &models.TimedEvent{
		ID: "patrol", Name: "patrol", TotalTurns: 5, RemainingTurns: 5, Active: true,
		Progress:    map[int]string{4: "Boots on stone."},
		Preventable: true, PreventionHint: "Hide.",
	}
	u, _ := Step(ev, DefaultUrgency)
	if u.Narrative != "Boots on stone." {
		t.Errorf("Expected progress line, got %q", u.Narrative)
	}
	u, _ = Step(ev, DefaultUrgency)
	if u.Narrative != "" {
		t.Errorf("Expected silence at 3 turns, got %q", u.Narrative)
	}
	u, _ = Step(ev, DefaultUrgency)
	if !strings.Contains(u.Narrative, "2 turns") || !strings.HasSuffix(u.Narrative, "Hide.") {
		t.Errorf("Expected urgency line with hint, got %q", u.Narrative)
	}
}

func TestTickScope(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for _, ev := range []models.TimedEvent{
		{ID: "b", StoryID: "s1", Name: "b-room", RoomID: "hall", TotalTurns: 5, RemainingTurns: 5, Active: true},
		{ID: "a", StoryID: "s1", Name: "z-global", TotalTurns: 5, RemainingTurns: 5, Active: true},
		{ID: "c", StoryID: "s1", Name: "c-room", RoomID: "cell", TotalTurns: 5, RemainingTurns: 5, Active: true},
		{ID: "d", StoryID: "s2", Name: "other", TotalTurns: 5, RemainingTurns: 5, Active: true},
	} {
		ev := ev
		_ = st.SaveTimedEvent(ctx, &ev)
	}
	ups, err := New(st).Tick(ctx, "s1", "hall")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(ups) != 2 || ups[0].EventID != "a" || ups[1].EventID != "b" {
		t.Fatalf("expected global then hall event, got %+v", ups)
	}
}

func TestExtendAndCancel(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	s := New(st)
	ev := &models.TimedEvent{ID: "tide", StoryID: "s1", Name: "tide", TotalTurns: 1}
	_ = s.Start(ctx, ev)

	got, err := s.Extend(ctx, "s1", "tide", 2)
	if err != nil || got.RemainingTurns != 3 {
		t.Fatalf("Extend = %+v, %v", got, err)
	}
	if _, err := s.Extend(ctx, "s1", "tide", 0); !errors.Is(err, ErrBadDuration) {
		t.Errorf("Expected ErrBadDuration, got %v", err)
	}
	if _, err := s.Cancel(ctx, "s1", "tide"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := s.Cancel(ctx, "s1", "tide"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive, got %v", err)
	}
	if _, err := s.Extend(ctx, "s1", "nope", 1); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
	active, _ := s.Active(ctx, "s1")
	if len(active) != 0 {
		t.Errorf("Expected no active events, got %v", active)
	}
	ups, _ := s.Tick(ctx, "s1", "")
	if len(ups) != 0 {
		t.Errorf("Expected cancelled event not to tick, got %v", ups)
	}
}
