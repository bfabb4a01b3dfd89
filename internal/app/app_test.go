package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tatianab/text-engine/internal/config"
)

func TestStoryImportsThenResumes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:        filepath.Join(dir, "game.db"),
		SaveDir:       filepath.Join(dir, "saves"),
		TranscriptDir: filepath.Join(dir, "transcripts"),
		Seed:          7,
		ExpandWorld:   true,
	}
	a, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close(ctx)

	id, intro, err := a.Story(ctx, "")
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if id != "cell-escape" || !strings.Contains(intro, "You wake on damp straw") {
		t.Fatalf("unexpected story %q: %q", id, intro)
	}

	res, err := a.Orchestrator.ProcessTurn(ctx, id, "east")
	if err != nil || res.NewRoomID != "hall" {
		t.Fatalf("ProcessTurn = %+v, %v", res, err)
	}

	_, intro, err = a.Story(ctx, "")
	if err != nil {
		t.Fatalf("Story on resume: %v", err)
	}
	if !strings.Contains(intro, "Welcome back") || !strings.Contains(intro, "Hall") {
		t.Errorf("Expected to resume in the hall, got %q", intro)
	}

	if _, _, err := a.Story(ctx, "a sunken library"); err == nil {
		t.Error("Expected world generation to need an API key")
	}
}
