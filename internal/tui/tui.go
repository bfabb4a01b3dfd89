package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/turn"
)

// Game is the part of the turn orchestrator the terminal UI drives.
type Game interface {
	ProcessTurnStream(ctx context.Context, storyID, input string, progress turn.ProgressFunc) (*turn.Result, error)
	HandleDilemmaResponse(ctx context.Context, storyID, dilemmaID, choice, text string) (*turn.DilemmaOutcome, error)
	GetGameState(ctx context.Context, storyID string) (*turn.GameState, error)
}

// Setup prepares a story from a hint typed by the player and returns its id
// and opening text.
type Setup func(ctx context.Context, hint string) (storyID, intro string, err error)

type sessionState int

const (
	stateInputHint sessionState = iota
	stateLoading
	statePlaying
	stateDilemma
	stateGameOver
	stateError
)

type model struct {
	state     sessionState
	game      Game
	setup     Setup
	storyID   string
	snapshot  *turn.GameState
	dilemma   *turn.DilemmaPayload
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	progress  chan turn.Progress
	stage     string
	busy      bool
	err       error
	gameLog   string
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8787")).
			Italic(true)

	dilemmaStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFA500")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	titleCase = cases.Title(language.English)
)

func NewModel(game Game, setup Setup) model {
	ti := textinput.New()
	ti.Placeholder = "Enter a hint, or leave blank for the Salt Cell..."
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		state:     stateInputHint,
		game:      game,
		setup:     setup,
		textInput: ti,
		spinner:   sp,
		progress:  make(chan turn.Progress, 8),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

type storyReadyMsg struct {
	storyID string
	intro   string
}

type turnProcessedMsg struct {
	result *turn.Result
	err    error
}

type dilemmaResolvedMsg struct {
	outcome *turn.DilemmaOutcome
	err     error
}

type snapshotMsg struct {
	state *turn.GameState
}

type progressMsg turn.Progress

type errMsg struct {
	err error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state == stateInputHint {
				m.state = stateLoading
				return m, m.startStory(strings.TrimSpace(m.textInput.Value()))
			}
			if m.busy || (m.state != statePlaying && m.state != stateDilemma && m.state != stateGameOver) {
				return m, nil
			}
			action := strings.TrimSpace(m.textInput.Value())
			if action == "" {
				return m, nil
			}
			m.textInput.Reset()

			switch action {
			case "/quit":
				return m, tea.Quit
			case "/restart":
				m.state = stateInputHint
				m.gameLog = ""
				m.storyID = ""
				m.snapshot = nil
				m.dilemma = nil
				m.textInput.Placeholder = "Enter a hint, or leave blank for the Salt Cell..."
				return m, nil
			}
			if m.state == stateGameOver {
				return m, nil
			}

			m.appendLog(userStyle.Width(m.logWidth()).Render("> " + action))
			m.busy = true
			if m.state == stateDilemma {
				return m, m.answerDilemma(action)
			}
			return m, tea.Batch(m.processTurn(action), m.listenProgress())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = msg.Height - 6
		m.viewport.SetContent(m.gameLog)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storyReadyMsg:
		m.storyID = msg.storyID
		m.state = statePlaying
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(m.logWidth(), m.height-6)
		}
		m.gameLog = ""
		m.appendLog(gameStyle.Width(m.logWidth()).Render(msg.intro))
		m.textInput.Placeholder = "What do you do?"
		m.textInput.Reset()
		return m, m.refresh()

	case progressMsg:
		if !m.busy {
			return m, nil
		}
		m.stage = string(msg.Stage)
		if msg.Detail != "" {
			m.stage += " " + msg.Detail
		}
		if msg.Stage == turn.StageDone {
			return m, nil
		}
		return m, m.listenProgress()

	case turnProcessedMsg:
		m.busy, m.stage = false, ""
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.showResult(msg.result)
		return m, m.refresh()

	case dilemmaResolvedMsg:
		m.busy = false
		if msg.err != nil {
			m.appendLog(helpStyle.Render(fmt.Sprintf("Choose one of the options by number. (%v)", msg.err)))
			return m, nil
		}
		m.dilemma = nil
		m.state = statePlaying
		m.appendLog(gameStyle.Width(m.logWidth()).Render(msg.outcome.Narrative))
		m.textInput.Placeholder = "What do you do?"
		return m, m.refresh()

	case snapshotMsg:
		m.snapshot = msg.state
		return m, nil

	case errMsg:
		m.err = msg.err
		m.state = stateError
		return m, nil
	}

	if m.state == stateInputHint || m.state == statePlaying || m.state == stateDilemma || m.state == stateGameOver {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) showResult(res *turn.Result) {
	m.appendLog(gameStyle.Width(m.logWidth()).Render(res.Narrative))
	for _, ev := range res.TimedEvents {
		if ev.Triggered {
			m.appendLog(eventStyle.Render(titleCase.String(ev.Name) + " has come to pass."))
		}
	}
	switch {
	case res.GameOver != nil:
		m.state = stateGameOver
		m.appendLog(eventStyle.Render("The story is over. Type /restart to begin again."))
	case res.Dilemma != nil:
		m.state = stateDilemma
		m.dilemma = res.Dilemma
		m.appendLog(renderDilemma(res.Dilemma, m.logWidth()))
		m.textInput.Placeholder = "Choose an option..."
	}
}

func renderDilemma(d *turn.DilemmaPayload, width int) string {
	var b strings.Builder
	b.WriteString(d.Prompt)
	for i, opt := range d.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Text)
	}
	return dilemmaStyle.Width(width - 4).Render(b.String())
}

func (m *model) appendLog(s string) {
	if m.gameLog != "" {
		m.gameLog += "\n\n"
	}
	m.gameLog += s
	m.viewport.SetContent(m.gameLog)
	m.viewport.GotoBottom()
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.75)
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateInputHint:
		s = fmt.Sprintf(
			"Welcome to the Text Engine!\n\n%s\n\n%s",
			"Give me a hint about the world you want to play in:",
			m.textInput.View(),
		)

	case stateLoading:
		s = fmt.Sprintf("\n  %s Preparing your world... please wait.\n", m.spinner.View())

	case statePlaying, stateDilemma, stateGameOver:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)

		help := "Commands: /restart, /quit, help, or just type what you want to do."
		if m.busy {
			help = m.spinner.View() + " " + m.stage
		}

		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+helpStyle.Render(help),
		)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) renderState() string {
	st := m.snapshot
	if st == nil {
		return ""
	}

	location := titleStyle.Render("LOCATION") + "\n" + st.Room.Name + "\n"
	if len(st.Exits) > 0 {
		exits := make([]string, len(st.Exits))
		for i, d := range st.Exits {
			exits[i] = string(d)
		}
		location += "Exits: " + strings.Join(exits, ", ") + "\n"
	}
	location += "\n"

	stats := titleStyle.Render("STATS") + "\n" +
		fmt.Sprintf("Turn: %d\nHealth: %d\nScore: %d\n\n", st.TurnCount, st.Health, st.Score)

	inventory := titleStyle.Render("INVENTORY") + "\n"
	if len(st.Inventory) == 0 {
		inventory += "(empty)\n"
	}
	for _, item := range st.Inventory {
		inventory += "- " + item + "\n"
	}
	inventory += "\n"

	skills := titleStyle.Render("SKILLS") + "\n"
	for _, a := range st.Abilities {
		skills += fmt.Sprintf("%s %.1f (%d%%)\n", a.Name, a.Level, a.Mastery())
	}
	skills += "\n"

	content := location + stats + inventory + skills + renderEvents(st.ActiveEvents) +
		titleStyle.Render("CHARACTER") + "\n" + st.Personality

	stateWidth := int(float64(m.width) * 0.23)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

func renderEvents(events []models.TimedEvent) string {
	if len(events) == 0 {
		return ""
	}
	sort.Slice(events, func(i, j int) bool { return events[i].RemainingTurns < events[j].RemainingTurns })
	out := titleStyle.Render("PRESSURES") + "\n"
	for _, ev := range events {
		out += fmt.Sprintf("%s: %d\n", titleCase.String(ev.Name), ev.RemainingTurns)
	}
	return out + "\n"
}

func (m model) startStory(hint string) tea.Cmd {
	return func() tea.Msg {
		storyID, intro, err := m.setup(context.Background(), hint)
		if err != nil {
			return errMsg{err}
		}
		return storyReadyMsg{storyID: storyID, intro: intro}
	}
}

func (m model) processTurn(action string) tea.Cmd {
	storyID, progress := m.storyID, m.progress
	return func() tea.Msg {
		res, err := m.game.ProcessTurnStream(context.Background(), storyID, action, func(p turn.Progress) {
			select {
			case progress <- p:
			default:
			}
		})
		return turnProcessedMsg{res, err}
	}
}

func (m model) listenProgress() tea.Cmd {
	progress := m.progress
	return func() tea.Msg {
		return progressMsg(<-progress)
	}
}

func (m model) answerDilemma(text string) tea.Cmd {
	storyID, d := m.storyID, m.dilemma
	return func() tea.Msg {
		out, err := m.game.HandleDilemmaResponse(context.Background(), storyID, d.ID, text, text)
		return dilemmaResolvedMsg{out, err}
	}
}

func (m model) refresh() tea.Cmd {
	storyID := m.storyID
	return func() tea.Msg {
		st, err := m.game.GetGameState(context.Background(), storyID)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{st}
	}
}

func Run(game Game, setup Setup) error {
	p := tea.NewProgram(NewModel(game, setup), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
