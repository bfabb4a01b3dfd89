// Package timed runs per-story countdown events.
//
// Tick is called once per turn. Every active, untriggered event in scope
// loses one turn; an event reaching zero becomes triggered and inactive and
// reports its consequence. Ticking never rewinds an event: only Extend and
// Cancel change a countdown otherwise.
package timed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// DefaultUrgency is the remaining-turn count at or below which an event with
// no authored progress line gets a generic warning.
const DefaultUrgency = 2

var (
	ErrUnknownEvent = errors.New("timed: unknown event")
	ErrNotActive    = errors.New("timed: event is not active")
	ErrBadDuration  = errors.New("timed: duration must be positive")
)

// Update is what one tick did to one event.
type Update struct {
	EventID        string
	Name           string
	RemainingTurns int
	Narrative      string
	Triggered      bool
	Consequence    *models.Consequence
}

// Scheduler ticks the timed events of a story.
type Scheduler struct {
	store   store.TimedEvents
	urgency int
	log     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithUrgency sets the generic warning threshold.
func WithUrgency(turns int) Option {
	return func(s *Scheduler) { s.urgency = turns }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New returns a Scheduler over st.
func New(st store.TimedEvents, opts ...Option) *Scheduler {
	s := &Scheduler{store: st, urgency: DefaultUrgency, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Step advances one event by one turn. It reports false when the event is
// not eligible to tick.
func Step(ev *models.TimedEvent, urgency int) (Update, bool) {
	if !ev.Active || ev.Triggered {
		return Update{}, false
	}
	ev.RemainingTurns--
	u := Update{EventID: ev.ID, Name: ev.Name, RemainingTurns: ev.RemainingTurns}
	if ev.RemainingTurns <= 0 {
		ev.RemainingTurns = 0
		ev.Active = false
		ev.Triggered = true
		c := ev.Consequence
		u.RemainingTurns = 0
		u.Triggered = true
		u.Narrative = ev.TriggerNarrative
		u.Consequence = &c
		return u, true
	}
	if line, ok := ev.Progress[ev.RemainingTurns]; ok {
		u.Narrative = line
	} else if ev.RemainingTurns <= urgency {
		u.Narrative = urgencyLine(ev)
	}
	return u, true
}

func urgencyLine(ev *models.TimedEvent) string {
	turns := "turns"
	if ev.RemainingTurns == 1 {
		turns = "turn"
	}
	line := fmt.Sprintf("Time is running out: %s in %d %s.", ev.Name, ev.RemainingTurns, turns)
	if ev.Preventable && ev.PreventionHint != "" {
		line += " " + ev.PreventionHint
	}
	return line
}

// Tick advances every eligible event visible from roomID. Updates are
// returned in a stable order: global events first, then by name and id.
func (s *Scheduler) Tick(ctx context.Context, storyID, roomID string) ([]Update, error) {
	events, err := s.store.ListTimedEvents(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list timed events: %w", err)
	}
	sortEvents(events)
	var updates []Update
	for i := range events {
		ev := &events[i]
		if !ev.InScope(roomID) {
			continue
		}
		u, ok := Step(ev, s.urgency)
		if !ok {
			continue
		}
		if err := s.store.SaveTimedEvent(ctx, ev); err != nil {
			return updates, fmt.Errorf("save timed event %s: %w", ev.ID, err)
		}
		if u.Triggered {
			s.log.Info("timed event triggered", "story", storyID, "event", ev.ID, "consequence", ev.Consequence.Type)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func sortEvents(events []models.TimedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		gi, gj := events[i].RoomID == "", events[j].RoomID == ""
		if gi != gj {
			return gi
		}
		if events[i].Name != events[j].Name {
			return events[i].Name < events[j].Name
		}
		return events[i].ID < events[j].ID
	})
}

// Start creates and activates an event. A blank ID is generated.
func (s *Scheduler) Start(ctx context.Context, ev *models.TimedEvent) error {
	if ev.TotalTurns <= 0 {
		return ErrBadDuration
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.RemainingTurns = ev.TotalTurns
	ev.Active = true
	ev.Triggered = false
	return s.store.SaveTimedEvent(ctx, ev)
}

// Extend adds turns to an active event.
func (s *Scheduler) Extend(ctx context.Context, storyID, eventID string, turns int) (*models.TimedEvent, error) {
	if turns <= 0 {
		return nil, ErrBadDuration
	}
	ev, err := s.find(ctx, storyID, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Active || ev.Triggered {
		return ev, ErrNotActive
	}
	ev.RemainingTurns += turns
	ev.TotalTurns += turns
	return ev, s.store.SaveTimedEvent(ctx, ev)
}

// Cancel deactivates an event without triggering it.
func (s *Scheduler) Cancel(ctx context.Context, storyID, eventID string) (*models.TimedEvent, error) {
	ev, err := s.find(ctx, storyID, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Active || ev.Triggered {
		return ev, ErrNotActive
	}
	ev.Active = false
	return ev, s.store.SaveTimedEvent(ctx, ev)
}

// Active lists the story's running events in tick order.
func (s *Scheduler) Active(ctx context.Context, storyID string) ([]models.TimedEvent, error) {
	events, err := s.store.ListTimedEvents(ctx, storyID)
	if err != nil {
		return nil, err
	}
	sortEvents(events)
	var out []models.TimedEvent
	for _, ev := range events {
		if ev.Active && !ev.Triggered {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Scheduler) find(ctx context.Context, storyID, eventID string) (*models.TimedEvent, error) {
	events, err := s.store.ListTimedEvents(ctx, storyID)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID == eventID {
			return &events[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", eventID, ErrUnknownEvent)
}
