package puzzle

import (
	"context"
	"testing"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for _, s := range []models.PuzzleStep{
		{ID: "armed", StoryID: "s1", RequiredObjects: []string{"key"}, Narrative: "Armed.", Points: 10},
		{ID: "escape", StoryID: "s1", RoomID: "islet", DependsOn: []string{"armed"}, Narrative: "Free.", Points: 50},
	} {
		s := s
		_ = st.SavePuzzleStep(ctx, &s)
	}
	c := NewChecker(st)

	got, err := c.Check(ctx, "s1", "islet", nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected nothing without the key, got %v, %v", got, err)
	}
	key := []models.GameObject{{ID: "key"}}
	got, _ = c.Check(ctx, "s1", "islet", key)
	if len(got) != 1 || got[0].StepID != "armed" || got[0].Points != 10 {
		t.Fatalf("expected armed to complete alone, got %v", got)
	}
	got, _ = c.Check(ctx, "s1", "islet", key)
	if len(got) != 1 || got[0].StepID != "escape" {
		t.Fatalf("expected escape on the next turn, got %v", got)
	}
	got, _ = c.Check(ctx, "s1", "islet", key)
	if len(got) != 0 {
		t.Errorf("expected completed steps not to fire again, got %v", got)
	}
}
