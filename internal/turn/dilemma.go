package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/personality"
	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/transcript"
)

var (
	ErrUnknownDilemma    = errors.New("turn: unknown dilemma")
	ErrDilemmaNotPending = errors.New("turn: dilemma is not awaiting an answer")
	ErrUnknownOption     = errors.New("turn: unknown dilemma option")
)

// DilemmaOutcome is the result of answering a dilemma.
type DilemmaOutcome struct {
	DilemmaID   string `json:"dilemma_id"`
	OptionID    string `json:"option_id"`
	Narrative   string `json:"narrative"`
	Personality string `json:"personality"`
}

// HandleDilemmaResponse resolves a triggered dilemma with the chosen option.
// choice may be an option id, a 1-based index or the option text. text is
// what the player typed, kept for the transcript.
func (o *Orchestrator) HandleDilemmaResponse(ctx context.Context, storyID, dilemmaID, choice, text string) (*DilemmaOutcome, error) {
	ctx, span := tracer.Start(ctx, "turn.HandleDilemmaResponse")
	defer span.End()

	release, err := o.locks.Acquire(ctx, storyID)
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := o.store.GetDilemma(ctx, dilemmaID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && d.StoryID != storyID) {
		return nil, fmt.Errorf("%s: %w", dilemmaID, ErrUnknownDilemma)
	} else if err != nil {
		return nil, err
	}
	if d.State != models.DilemmaTriggered {
		return nil, fmt.Errorf("%s is %s: %w", dilemmaID, d.State, ErrDilemmaNotPending)
	}
	opt, ok := d.Option(choice)
	if !ok {
		return nil, fmt.Errorf("%q: %w", choice, ErrUnknownOption)
	}

	p, err := o.personality.RecordDilemma(ctx, storyID, opt.Implication)
	if err != nil {
		return nil, err
	}
	d.State = models.DilemmaResolved
	d.ChosenOption = opt.ID
	if err := o.store.SaveDilemma(ctx, d); err != nil {
		return nil, fmt.Errorf("save dilemma %s: %w", d.ID, err)
	}

	turn := 0
	if player, err := o.store.GetPlayer(ctx, storyID); err == nil {
		turn = player.TurnCount
	}
	if text == "" {
		text = opt.Text
	}
	for _, line := range []struct{ role, text string }{
		{transcript.RolePlayer, text},
		{transcript.RoleNarrator, opt.Outcome},
	} {
		if err := o.transcript.Record(ctx, storyID, turn, line.role, line.text); err != nil {
			o.log.Warn("transcript not recorded", "story", storyID, "err", err)
		}
	}

	o.log.Info("dilemma resolved", "story", storyID, "dilemma", d.ID, "option", opt.ID)
	return &DilemmaOutcome{
		DilemmaID:   d.ID,
		OptionID:    opt.ID,
		Narrative:   opt.Outcome,
		Personality: personality.Describe(p),
	}, nil
}
