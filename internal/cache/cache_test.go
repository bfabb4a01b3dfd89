package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tatianab/text-engine/internal/command"
	"github.com/tatianab/text-engine/internal/store/memstore"
)

func TestSignature(t *testing.T) {
	got := Signature("What is the GUARD doing, with the guard's keys?")
	want := []string{"doing", "guard", "keys", "s"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Signature mismatch (-want +got):\n%s", diff)
	}
}

func TestSemanticKeyMergesParaphrases(t *testing.T) {
	a := SemanticKey("s1", "hall", "Where does the tunnel lead?")
	b := SemanticKey("s1", "hall", "tunnel lead where")
	if a != b {
		t.Error("expected paraphrases in the same room to share a key")
	}
	if c := SemanticKey("s1", "cell", "tunnel lead where"); c == a {
		t.Error("expected a different room to get a different key")
	}
	if d := SemanticKey("s2", "hall", "tunnel lead where"); d == a {
		t.Error("expected a different story to get a different key")
	}
}

func TestExactKey(t *testing.T) {
	k1 := ExactKey("s1", "cell", command.Examine, "key", "")
	k2 := ExactKey("s1", "cell", command.Examine, "key", "")
	if k1 != k2 {
		t.Fatal("expected identical signatures to hash identically")
	}
	if k3 := ExactKey("s1", "cell", command.Examine, "ke", "y"); k3 == k1 {
		t.Error("expected field boundaries to matter")
	}
}

// TestResolveCallsProducerOnce ensures repeated identical commands are served
// from the cache without producing again.
func TestResolveCallsProducerOnce(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := New(st)
	k := Exact("s1", "cell", command.Command{Type: command.Examine, Target: "straw"})

	calls := 0
	produce := func(context.Context) (string, bool, error) {
		calls++
		return "Damp, mouldy straw.", true, nil
	}
	for i := 0; i < 3; i++ {
		got, hit, err := c.Resolve(ctx, k, produce)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "Damp, mouldy straw." {
			t.Errorf("Expected cached narrative, got %q", got)
		}
		if hit != (i > 0) {
			t.Errorf("call %d: expected hit=%v", i, i > 0)
		}
	}
	if calls != 1 {
		t.Errorf("Expected 1 producer call, got %d", calls)
	}
	e, err := st.GetCacheEntry(ctx, k.Value)
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if e.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", e.Hits)
	}
}

func TestResolveSkipsUncacheable(t *testing.T) {
	ctx := context.Background()
	c := New(memstore.New())
	k := Semantic("s1", "cell", "sing a song")

	calls := 0
	produce := func(context.Context) (string, bool, error) {
		calls++
		return "fallback", false, nil
	}
	for i := 0; i < 2; i++ {
		if _, hit, err := c.Resolve(ctx, k, produce); err != nil || hit {
			t.Fatalf("Resolve = hit %v, err %v", hit, err)
		}
	}
	if calls != 2 {
		t.Errorf("Expected uncacheable responses to be produced each time, got %d calls", calls)
	}

	boom := errors.New("boom")
	_, _, err := c.Resolve(ctx, k, func(context.Context) (string, bool, error) { return "", false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("Expected producer error, got %v", err)
	}
}
