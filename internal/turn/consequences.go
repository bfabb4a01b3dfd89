package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/timed"
)

// applyUpdates turns tick updates into narrative and applies the
// consequences of events that fired.
func (o *Orchestrator) applyUpdates(ctx context.Context, ts *turnState, updates []timed.Update) ([]string, *GameOver, error) {
	var (
		out  []string
		over *GameOver
	)
	for _, u := range updates {
		if u.Narrative != "" {
			out = append(out, u.Narrative)
		}
		if !u.Triggered || u.Consequence == nil {
			continue
		}
		line, ended, err := o.apply(ctx, ts, u)
		if err != nil {
			return nil, nil, fmt.Errorf("consequence of %s: %w", u.EventID, err)
		}
		if line != "" {
			out = append(out, line)
		}
		if ended != nil && over == nil {
			over = ended
		}
	}
	return out, over, nil
}

func (o *Orchestrator) apply(ctx context.Context, ts *turnState, u timed.Update) (string, *GameOver, error) {
	c := u.Consequence
	o.log.Debug("applying consequence", "story", ts.storyID, "event", u.EventID, "consequence", string(c.Type))

	switch c.Type {
	case models.ConsequenceGameOver:
		ts.player.GameOver = true
		return c.Description, &GameOver{Reason: u.Name, Narrative: u.Narrative}, nil

	case models.ConsequenceDamage:
		amount := c.Amount
		if amount <= 0 {
			amount = o.tuning.DamageDefault
		}
		ts.player.Health -= amount
		if ts.player.Health <= 0 {
			ts.player.Health = 0
			ts.player.GameOver = true
			return fmt.Sprintf("You lose %d health. Your strength gives out.", amount),
				&GameOver{Reason: "health", Narrative: u.Narrative}, nil
		}
		return fmt.Sprintf("You lose %d health.", amount), nil, nil

	case models.ConsequenceRoomChange:
		if c.RoomID == "" || c.RoomID == ts.player.RoomID {
			return c.Description, nil, nil
		}
		dest, err := o.store.GetRoom(ctx, c.RoomID)
		if errors.Is(err, store.ErrNotFound) {
			o.log.Warn("consequence names unknown room", "story", ts.storyID, "room", c.RoomID)
			return c.Description, nil, nil
		} else if err != nil {
			return "", nil, err
		}
		ts.player.Visit(dest.ID)
		ts.player.RoomID = dest.ID
		ts.room = dest
		return c.Description, nil, nil

	case models.ConsequenceItemLoss:
		return o.loseItem(ctx, ts, c)

	default:
		return c.Description, nil, nil
	}
}

// loseItem removes the named object, or the first carried one when the
// consequence names none. Only carried objects can be lost; story-critical
// ones are left in the room.
func (o *Orchestrator) loseItem(ctx context.Context, ts *turnState, c *models.Consequence) (string, *GameOver, error) {
	id := c.ObjectID
	if id != "" {
		obj, err := o.store.GetObject(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return c.Description, nil, nil
		} else if err != nil {
			return "", nil, err
		}
		if !obj.InInventory() {
			return c.Description, nil, nil
		}
	} else {
		inv, err := o.objects.Inventory(ctx, ts.storyID)
		if err != nil {
			return "", nil, err
		}
		if len(inv) == 0 {
			return c.Description, nil, nil
		}
		id = inv[0].ID
	}
	obj, err := o.objects.Lose(ctx, id, ts.player.RoomID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Description, nil, nil
	} else if err != nil {
		return "", nil, err
	}
	if obj.StoryCritical {
		return joinNonEmpty([]string{c.Description, fmt.Sprintf("The %s falls to the ground.", obj.Name)}), nil, nil
	}
	return joinNonEmpty([]string{c.Description, fmt.Sprintf("The %s is gone.", obj.Name)}), nil, nil
}
