package skill

import (
	"context"
	"math"
	"testing"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestResolveAthletics ensures a level 4 ability beating difficulty 15 with a
// 14 gains margin/20.
func TestResolveAthletics(t *testing.T) {
	o := Resolve(4.0, 14, 15)
	if !o.Success {
		t.Fatal("expected success")
	}
	if !near(o.Total, 18) || !near(o.Margin, 3) {
		t.Errorf("Expected total 18 margin 3, got %v %v", o.Total, o.Margin)
	}
	if !near(o.NewLevel, 4.15) {
		t.Errorf("Expected level 4.15, got %v", o.NewLevel)
	}
}

func TestResolveForcedRolls(t *testing.T) {
	if o := Resolve(10, 1, 5); o.Success || !o.Forced {
		t.Errorf("expected natural 1 to fail despite total 11, got %+v", o)
	}
	if o := Resolve(10, 1, 5); o.NewLevel != 10 {
		t.Errorf("expected no gain on failure, got %v", o.NewLevel)
	}
	o := Resolve(1, 20, 40)
	if !o.Success || !o.Forced {
		t.Errorf("expected natural 20 to succeed, got %+v", o)
	}
	if o.NewLevel != 1 {
		t.Errorf("expected no gain on a negative margin, got %v", o.NewLevel)
	}
}

func TestResolveProperties(t *testing.T) {
	for roll := 1; roll <= Sides; roll++ {
		for _, level := range []float64{1, 3.5, 12} {
			for d := -5; d <= 45; d += 5 {
				o := Resolve(level, roll, d)
				want := roll == 20 || (roll != 1 && o.Total >= float64(o.Difficulty))
				if o.Success != want {
					t.Fatalf("Resolve(%v, %d, %d).Success = %v, expected %v", level, roll, d, o.Success, want)
				}
				if o.Difficulty < MinDifficulty || o.Difficulty > MaxDifficulty {
					t.Fatalf("difficulty %d not clamped", o.Difficulty)
				}
				if o.NewLevel < level {
					t.Fatalf("level decreased: %v -> %v", level, o.NewLevel)
				}
				if o.Success && o.Margin > 0 && !near(o.NewLevel-level, o.Margin/20) {
					t.Fatalf("gain %v, expected %v", o.NewLevel-level, o.Margin/20)
				}
			}
		}
	}
}

func TestRandRollerRange(t *testing.T) {
	r := NewRandRoller(42)
	for i := 0; i < 1000; i++ {
		if v := r.Roll(); v < 1 || v > Sides {
			t.Fatalf("roll %d out of range", v)
		}
	}
}

func seedAbilities(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	a := &models.Ability{
		StoryID: "s1", Key: models.AbilityKey("Athletics"), Name: "Athletics", Level: 4, Authored: true,
		Triggers: models.AbilityTriggers{Verbs: []string{"climb"}, Nouns: []string{"wall"}},
	}
	if err := st.SaveAbility(context.Background(), a); err != nil {
		t.Fatalf("SaveAbility: %v", err)
	}
	return st
}

func TestMatchOrder(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(seedAbilities(t), NewSequence(10))
	tests := []struct {
		text   string
		name   string
		source MatchSource
	}{
		{"climb the tower", "Athletics", MatchVerb},
		{"scale the wall", "Athletics", MatchNoun},
		{"show off my athletic prowess", "Athletics", MatchName},
		{"sneak past the guard", "Stealth", MatchDefault},
	}
	for _, tt := range tests {
		m, ok, err := e.Match(ctx, "s1", tt.text)
		if err != nil || !ok {
			t.Fatalf("Match(%q) = %v, %v", tt.text, ok, err)
		}
		if m.Ability.Name != tt.name || m.Source != tt.source {
			t.Errorf("Match(%q) = %s via %s, expected %s via %s", tt.text, m.Ability.Name, m.Source, tt.name, tt.source)
		}
	}
	if _, ok, _ := e.Match(ctx, "s1", "hum a tune"); ok {
		t.Error("expected no match")
	}
	if _, ok, _ := e.Match(ctx, "other", "climb the tower"); !ok {
		t.Error("expected the default table to serve stories without abilities")
	}
}

func TestCheckCreatesAndGrows(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := NewEngine(st, NewSequence(14, 1))

	m, ok, err := e.Match(ctx, "s1", "sneak along the wall")
	if err != nil || !ok || !m.New {
		t.Fatalf("expected a new default ability, got %+v, %v, %v", m, ok, err)
	}
	res, err := e.Check(ctx, m.Ability, 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Success || !near(res.Ability.Level, 1.25) || res.Mastery != 100 {
		t.Errorf("unexpected result %+v", res)
	}

	a, err := st.GetAbility(ctx, "s1", "stealth")
	if err != nil {
		t.Fatalf("expected ability to be saved: %v", err)
	}
	res, err = e.Check(ctx, a, 0)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Success || res.Ability.Uses != 2 || res.Ability.Successes != 1 || res.Mastery != 50 {
		t.Errorf("expected a forced failure at 50%% mastery, got %+v", res)
	}
	if !near(res.Ability.Level, 1.25) {
		t.Errorf("expected level unchanged on failure, got %v", res.Ability.Level)
	}
}
