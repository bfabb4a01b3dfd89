// Package app wires configuration, storage, the generator and the turn
// orchestrator together for the command-line binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tatianab/text-engine/internal/config"
	"github.com/tatianab/text-engine/internal/engine"
	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/skill"
	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/store/sqlite"
	"github.com/tatianab/text-engine/internal/telemetry"
	"github.com/tatianab/text-engine/internal/transcript"
	"github.com/tatianab/text-engine/internal/turn"
	"github.com/tatianab/text-engine/internal/world"
)

// App owns the long-lived resources of one process.
type App struct {
	Config       *config.Config
	Log          *slog.Logger
	Store        store.Store
	Engine       *engine.Engine
	Orchestrator *turn.Orchestrator

	archive  *transcript.Archive
	shutdown func(context.Context) error
}

// Open builds an App from cfg. The generator is optional: without an API
// key the game runs on authored content and fallback narrative.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, serviceName string) (*App, error) {
	models.SaveDir = cfg.SaveDir

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a := &App{Config: cfg, Log: log, shutdown: shutdown}

	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st

	var gen engine.Generator
	if cfg.GeminiAPIKey != "" {
		eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey, engine.WithModel(cfg.GeminiModel), engine.WithLogger(log))
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("create engine: %w", err)
		}
		a.Engine = eng
		gen = eng
	} else {
		log.Warn("GEMINI_API_KEY not set, narrative generation disabled")
	}

	seed := cfg.Seed
	if seed == 0 {
		if seed, err = skill.NewSeed(); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	log.Debug("dice seeded", "seed", seed)

	opts := []turn.Option{
		turn.WithLogger(log),
		turn.WithTuning(tuning),
		turn.WithRoller(skill.NewRandRoller(seed)),
		turn.WithGeneratorTimeout(cfg.GeneratorTimeout),
		turn.WithExpansion(cfg.ExpandWorld),
	}
	if cfg.TranscriptDir != "" {
		a.archive = transcript.NewArchive(cfg.TranscriptDir)
		opts = append(opts, turn.WithArchive(a.archive))
	}
	a.Orchestrator = turn.New(st, gen, opts...)
	return a, nil
}

// Story loads or creates the story for hint and returns its id and opening
// text. A blank hint plays the bundled world, "file:<path>" imports a seed
// file and anything else asks the generator for a new world.
func (a *App) Story(ctx context.Context, hint string) (string, string, error) {
	hint = strings.TrimSpace(hint)
	var (
		seed *models.WorldSeed
		err  error
	)
	switch {
	case hint == "":
		seed = models.DefaultSeed()
	case strings.HasPrefix(hint, "file:"):
		if seed, err = models.LoadSeed(strings.TrimPrefix(hint, "file:")); err != nil {
			return "", "", err
		}
	default:
		if a.Engine == nil {
			return "", "", errors.New("generating a world needs GEMINI_API_KEY")
		}
		if seed, err = a.Engine.GenerateSeed(ctx, hint); err != nil {
			return "", "", err
		}
		if err := seed.Save(seed.StoryID); err != nil {
			a.Log.Warn("generated world not saved", "story", seed.StoryID, "err", err)
		}
	}

	_, err = a.Store.GetPlayer(ctx, seed.StoryID)
	switch {
	case err == nil:
		st, err := a.Orchestrator.GetGameState(ctx, seed.StoryID)
		if err != nil {
			return "", "", err
		}
		a.Log.Info("story resumed", "story", seed.StoryID, "turn", st.TurnCount)
		return seed.StoryID, fmt.Sprintf("%s\n\nWelcome back.\n\n%s\n%s", seed.Title, st.Room.Name, st.Room.Describe(true)), nil
	case !errors.Is(err, store.ErrNotFound):
		return "", "", err
	}

	if err := world.Import(ctx, a.Store, seed); err != nil {
		return "", "", err
	}
	a.Log.Info("story imported", "story", seed.StoryID, "rooms", len(seed.Rooms))
	start, err := a.Store.GetRoom(ctx, seed.StartRoom)
	if err != nil {
		return "", "", err
	}
	return seed.StoryID, strings.TrimSpace(fmt.Sprintf("%s\n\n%s\n\n%s\n%s", seed.Title, seed.Intro, start.Name, start.Description)), nil
}

// Close releases everything Open acquired.
func (a *App) Close(ctx context.Context) {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.Log.Warn("transcript archive close", "err", err)
		}
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("store close", "err", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.Log.Warn("telemetry shutdown", "err", err)
		}
	}
}
