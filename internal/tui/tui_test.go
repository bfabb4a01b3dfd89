package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/text-engine/internal/turn"
)

type fakeGame struct {
	result  *turn.Result
	choices []string
}

func (f *fakeGame) ProcessTurnStream(_ context.Context, _, _ string, progress turn.ProgressFunc) (*turn.Result, error) {
	progress(turn.Progress{Stage: turn.StageExecuting, Detail: "move"})
	return f.result, nil
}

func (f *fakeGame) HandleDilemmaResponse(_ context.Context, _, _, choice, _ string) (*turn.DilemmaOutcome, error) {
	f.choices = append(f.choices, choice)
	return &turn.DilemmaOutcome{Narrative: "He thanks you."}, nil
}

func (f *fakeGame) GetGameState(context.Context, string) (*turn.GameState, error) {
	return &turn.GameState{TurnCount: 1, Health: 100}, nil
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestDilemmaFlow(t *testing.T) {
	game := &fakeGame{result: &turn.Result{
		Success:   true,
		Narrative: "A long guard hall.",
		Dilemma: &turn.DilemmaPayload{ID: "prisoner", Prompt: "Free him?", Options: []turn.DilemmaChoice{
			{ID: "help", Text: "Help"}, {ID: "leave", Text: "Leave"},
		}},
	}}
	setup := func(context.Context, string) (string, string, error) { return "s1", "You wake.", nil }

	m := NewModel(game, setup)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, m.startStory("")())
	if m.state != statePlaying || m.storyID != "s1" {
		t.Fatalf("Expected to be playing s1, got state %d story %q", m.state, m.storyID)
	}

	m.textInput.SetValue("east")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.busy {
		t.Fatal("Expected the model to wait for the turn")
	}
	m = update(t, m, m.processTurn("east")())
	m = update(t, m, m.listenProgress()())
	if m.state != stateDilemma || m.busy {
		t.Fatalf("Expected a pending dilemma, got state %d busy %v", m.state, m.busy)
	}
	if !strings.Contains(m.gameLog, "1. Help") || !strings.Contains(m.gameLog, "2. Leave") {
		t.Errorf("Expected numbered options in the log, got %q", m.gameLog)
	}

	m.textInput.SetValue("1")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = update(t, m, m.answerDilemma("1")())
	if m.state != statePlaying || m.dilemma != nil {
		t.Errorf("Expected the dilemma to be resolved, got state %d", m.state)
	}
	if len(game.choices) != 1 || game.choices[0] != "1" {
		t.Errorf("unexpected choices %v", game.choices)
	}
	if !strings.Contains(m.gameLog, "He thanks you.") {
		t.Errorf("Expected the outcome in the log, got %q", m.gameLog)
	}
}

func TestGameOverStopsInput(t *testing.T) {
	game := &fakeGame{result: &turn.Result{Narrative: "Stones fall.", GameOver: &turn.GameOver{Reason: "health"}}}
	m := NewModel(game, nil)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, storyReadyMsg{storyID: "s1", intro: "Hi."})
	m = update(t, m, m.processTurn("wait")())
	if m.state != stateGameOver {
		t.Fatalf("Expected game over, got state %d", m.state)
	}
	m.textInput.SetValue("look")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.busy {
		t.Error("Expected input to be ignored after game over")
	}

	m.textInput.SetValue("/restart")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateInputHint || m.storyID != "" {
		t.Errorf("Expected /restart to return to the hint prompt, got state %d", m.state)
	}
}
