// Package turn sequences one player turn across the world graph, the skill
// engine, the timed-event scheduler, the personality model and the narrative
// generator.
//
// Every turn runs the same fixed pipeline under a per-story lock: the input
// is logged and interpreted, the command is executed, authoritative player
// and room state are re-read, the response is logged, any personality signal
// is recorded, puzzle steps are checked, timed events tick and finally a
// dilemma bound to the room may trigger. The narrative returned to the
// caller is the command's response followed by puzzle and then timed-event
// narratives.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tatianab/text-engine/internal/cache"
	"github.com/tatianab/text-engine/internal/command"
	"github.com/tatianab/text-engine/internal/config"
	"github.com/tatianab/text-engine/internal/engine"
	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/personality"
	"github.com/tatianab/text-engine/internal/puzzle"
	"github.com/tatianab/text-engine/internal/skill"
	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/timed"
	"github.com/tatianab/text-engine/internal/transcript"
	"github.com/tatianab/text-engine/internal/world"
)

// ErrMissingState is returned when the player or their room cannot be
// loaded. It means the stored world is damaged, not that the player erred.
var ErrMissingState = errors.New("turn: missing world state")

var tracer = otel.Tracer("github.com/tatianab/text-engine/internal/turn")

// Result is the outcome of one turn.
type Result struct {
	Success     bool            `json:"success"`
	Narrative   string          `json:"narrative"`
	Command     command.Type    `json:"command"`
	RoomChanged bool            `json:"room_changed"`
	NewRoomID   string          `json:"new_room_id,omitempty"`
	TurnCount   int             `json:"turn_count"`
	Score       int             `json:"score"`
	Health      int             `json:"health"`
	Cached      bool            `json:"cached,omitempty"`
	Dilemma     *DilemmaPayload `json:"dilemma,omitempty"`
	TimedEvents []EventSummary  `json:"timed_events,omitempty"`
	GameOver    *GameOver       `json:"game_over,omitempty"`
}

// DilemmaPayload is a dilemma the player has to answer.
type DilemmaPayload struct {
	ID      string          `json:"id"`
	Prompt  string          `json:"prompt"`
	Options []DilemmaChoice `json:"options"`
}

// DilemmaChoice is one answer to a dilemma.
type DilemmaChoice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// EventSummary reports what a tick did to one timed event.
type EventSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RemainingTurns int    `json:"remaining_turns"`
	Triggered      bool   `json:"triggered"`
	Narrative      string `json:"narrative,omitempty"`
}

// GameOver ends the story.
type GameOver struct {
	Reason    string `json:"reason"`
	Narrative string `json:"narrative"`
}

// Orchestrator processes turns for any number of stories.
type Orchestrator struct {
	store       store.Store
	gen         engine.Generator
	interp      *command.Interpreter
	graph       *world.Graph
	objects     *world.Objects
	skills      *skill.Engine
	scheduler   *timed.Scheduler
	personality *personality.Model
	puzzles     *puzzle.Checker
	cache       *cache.Cache
	transcript  *transcript.Log
	locks       *StoryLocks

	log        *slog.Logger
	tuning     config.Tuning
	roller     skill.Roller
	archive    *transcript.Archive
	genTimeout time.Duration
	expand     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithRoller sets the die used for skill checks.
func WithRoller(r skill.Roller) Option {
	return func(o *Orchestrator) { o.roller = r }
}

// WithTuning replaces the default tuning.
func WithTuning(t config.Tuning) Option {
	return func(o *Orchestrator) { o.tuning = t }
}

// WithArchive mirrors the transcript into a compressed archive.
func WithArchive(a *transcript.Archive) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithGeneratorTimeout bounds each generator call. A call that times out
// yields the fallback narrative.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.genTimeout = d }
}

// WithExpansion enables growing the map when the player walks off its edge.
func WithExpansion(enabled bool) Option {
	return func(o *Orchestrator) { o.expand = enabled }
}

// WithInterpreter replaces the command grammar.
func WithInterpreter(in *command.Interpreter) Option {
	return func(o *Orchestrator) { o.interp = in }
}

// New returns an Orchestrator over st. gen may be nil, in which case every
// narrative the core cannot produce itself is the fallback line.
func New(st store.Store, gen engine.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  st,
		log:    slog.Default(),
		tuning: config.DefaultTuning(),
		expand: true,
		locks:  NewStoryLocks(),
	}
	for _, fn := range opts {
		fn(o)
	}
	if o.roller == nil {
		seed, err := skill.NewSeed()
		if err != nil {
			seed = time.Now().UnixNano()
		}
		o.roller = skill.NewRandRoller(seed)
	}
	if o.interp == nil {
		o.interp = command.NewInterpreter()
	}
	if gen != nil {
		o.gen = timeoutGenerator{gen: gen, timeout: o.genTimeout}
	}
	o.graph = world.NewGraph(st, world.WithLogger(o.log), world.WithPortalRadius(o.tuning.PortalRadius))
	o.objects = world.NewObjects(st)
	o.skills = skill.NewEngine(st, o.roller, skill.WithLogger(o.log))
	o.scheduler = timed.New(st, timed.WithUrgency(o.tuning.UrgencyTurns), timed.WithLogger(o.log))
	o.personality = personality.New(st)
	o.puzzles = puzzle.NewChecker(st)
	o.cache = cache.New(st, cache.WithLogger(o.log))
	o.transcript = transcript.NewLog(st, o.archive)
	return o
}

// Graph exposes the world graph, for authoring tools and tests.
func (o *Orchestrator) Graph() *world.Graph { return o.graph }

// Scheduler exposes the timed-event scheduler.
func (o *Orchestrator) Scheduler() *timed.Scheduler { return o.scheduler }

type timeoutGenerator struct {
	gen     engine.Generator
	timeout time.Duration
}

func (t timeoutGenerator) Generate(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.gen.Generate(ctx, req)
}

// turnState carries one turn through the pipeline.
type turnState struct {
	storyID  string
	turn     int
	input    string
	cmd      command.Command
	player   *models.PlayerState
	room     *models.Room
	progress ProgressFunc

	narrative string
	success   bool
	cached    bool
	signal    *models.PersonalitySignal
}

func (ts *turnState) report(stage Stage, detail string) {
	if ts.progress != nil {
		ts.progress(Progress{StoryID: ts.storyID, Turn: ts.turn, Stage: stage, Detail: detail})
	}
}

func (ts *turnState) say(success bool, format string, args ...any) {
	ts.success = success
	ts.narrative = fmt.Sprintf(format, args...)
}

// ProcessTurn runs one player turn.
func (o *Orchestrator) ProcessTurn(ctx context.Context, storyID, input string) (*Result, error) {
	return o.ProcessTurnStream(ctx, storyID, input, nil)
}

// ProcessTurnStream runs one player turn, reporting each stage to progress.
func (o *Orchestrator) ProcessTurnStream(ctx context.Context, storyID, input string, progress ProgressFunc) (*Result, error) {
	ctx, span := tracer.Start(ctx, "turn.ProcessTurn", trace.WithAttributes(attribute.String("story", storyID)))
	defer span.End()

	release, err := o.locks.Acquire(ctx, storyID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := o.processTurn(ctx, storyID, input, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("command", string(res.Command)), attribute.Int("turn", res.TurnCount))
	return res, nil
}

func (o *Orchestrator) processTurn(ctx context.Context, storyID, input string, progress ProgressFunc) (*Result, error) {
	player, room, err := o.load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if player.GameOver {
		return &Result{
			Narrative: "The story has ended.",
			TurnCount: player.TurnCount,
			Score:     player.Score,
			Health:    player.Health,
			GameOver:  &GameOver{Reason: "ended", Narrative: "The story has ended."},
		}, nil
	}

	ts := &turnState{
		storyID:  storyID,
		turn:     player.TurnCount + 1,
		input:    input,
		player:   player,
		room:     room,
		progress: progress,
	}
	startRoom := room.ID
	o.record(ctx, ts, transcript.RolePlayer, input)

	ts.report(StageInterpreting, "")
	ts.cmd = o.interp.Interpret(input)

	ts.report(StageExecuting, string(ts.cmd.Type))
	if err := o.execute(ctx, ts); err != nil {
		return nil, fmt.Errorf("execute %s: %w", ts.cmd.Type, err)
	}
	if err := o.store.SavePlayer(ctx, ts.player); err != nil {
		return nil, fmt.Errorf("save player: %w", err)
	}

	if ts.player, ts.room, err = o.load(ctx, storyID); err != nil {
		return nil, err
	}
	o.record(ctx, ts, transcript.RoleNarrator, ts.narrative)

	if ts.signal != nil {
		if _, err := o.personality.Record(ctx, storyID, *ts.signal); err != nil {
			o.log.Warn("personality signal dropped", "story", storyID, "trait", ts.signal.Trait, "err", err)
		}
	}

	puzzleNarratives, err := o.checkPuzzles(ctx, ts)
	if err != nil {
		return nil, err
	}

	ts.report(StageTicking, "")
	updates, err := o.scheduler.Tick(ctx, storyID, ts.player.RoomID)
	if err != nil {
		return nil, err
	}
	if n, err := o.graph.PrunePortals(ctx, storyID, ts.turn); err != nil {
		return nil, fmt.Errorf("prune portals: %w", err)
	} else if n > 0 {
		o.log.Debug("portals closed", "story", storyID, "count", n)
	}
	timedNarratives, over, err := o.applyUpdates(ctx, ts, updates)
	if err != nil {
		return nil, err
	}

	var dilemma *DilemmaPayload
	if over == nil {
		if dilemma, err = o.triggerDilemma(ctx, storyID, ts.player.RoomID); err != nil {
			return nil, err
		}
	}

	ts.player.TurnCount = ts.turn
	if err := o.store.SavePlayer(ctx, ts.player); err != nil {
		return nil, fmt.Errorf("save player: %w", err)
	}

	parts := []string{ts.narrative}
	parts = append(parts, puzzleNarratives...)
	parts = append(parts, timedNarratives...)
	res := &Result{
		Success:     ts.success,
		Narrative:   joinNonEmpty(parts),
		Command:     ts.cmd.Type,
		RoomChanged: ts.player.RoomID != startRoom,
		TurnCount:   ts.player.TurnCount,
		Score:       ts.player.Score,
		Health:      ts.player.Health,
		Cached:      ts.cached,
		Dilemma:     dilemma,
		GameOver:    over,
	}
	if res.RoomChanged {
		res.NewRoomID = ts.player.RoomID
	}
	for _, u := range updates {
		res.TimedEvents = append(res.TimedEvents, EventSummary{
			ID: u.EventID, Name: u.Name, RemainingTurns: u.RemainingTurns, Triggered: u.Triggered, Narrative: u.Narrative,
		})
	}

	ts.report(StageDone, "")
	o.log.Info("turn processed", "story", storyID, "turn", ts.turn, "command", string(ts.cmd.Type),
		"room", ts.player.RoomID, "success", res.Success, "cached", res.Cached)
	return res, nil
}

func (o *Orchestrator) load(ctx context.Context, storyID string) (*models.PlayerState, *models.Room, error) {
	player, err := o.store.GetPlayer(ctx, storyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("player for story %s: %w", storyID, ErrMissingState)
		}
		return nil, nil, err
	}
	room, err := o.store.GetRoom(ctx, player.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("room %s for story %s: %w", player.RoomID, storyID, ErrMissingState)
		}
		return nil, nil, err
	}
	return player, room, nil
}

func (o *Orchestrator) record(ctx context.Context, ts *turnState, role, text string) {
	if err := o.transcript.Record(ctx, ts.storyID, ts.turn, role, text); err != nil {
		o.log.Warn("transcript not recorded", "story", ts.storyID, "turn", ts.turn, "err", err)
	}
}

func (o *Orchestrator) checkPuzzles(ctx context.Context, ts *turnState) ([]string, error) {
	inv, err := o.objects.Inventory(ctx, ts.storyID)
	if err != nil {
		return nil, err
	}
	done, err := o.puzzles.Check(ctx, ts.storyID, ts.player.RoomID, inv)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range done {
		ts.player.Score += c.Points
		out = append(out, c.Narrative)
	}
	return out, nil
}

func (o *Orchestrator) triggerDilemma(ctx context.Context, storyID, roomID string) (*DilemmaPayload, error) {
	dilemmas, err := o.store.ListDilemmas(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list dilemmas: %w", err)
	}
	for i := range dilemmas {
		d := &dilemmas[i]
		if d.RoomID != roomID || d.State != models.DilemmaUntriggered {
			continue
		}
		d.State = models.DilemmaTriggered
		if err := o.store.SaveDilemma(ctx, d); err != nil {
			return nil, fmt.Errorf("save dilemma %s: %w", d.ID, err)
		}
		return payload(d), nil
	}
	return nil, nil
}

func payload(d *models.Dilemma) *DilemmaPayload {
	p := &DilemmaPayload{ID: d.ID, Prompt: d.Prompt}
	for _, opt := range d.Options {
		p.Options = append(p.Options, DilemmaChoice{ID: opt.ID, Text: opt.Text})
	}
	return p
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
