package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tatianab/text-engine/internal/app"
	"github.com/tatianab/text-engine/internal/config"
	"github.com/tatianab/text-engine/internal/turn"
)

const summarizeEvery = 5

func main() {
	maxTurns := flag.Int("turns", 10, "number of turns to play")
	world := flag.String("world", "", `world to play: blank for the bundled world, "file:<path>", or a generator hint`)
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatal(err)
	}
	if cfg.DBPath == "text-engine.db" {
		cfg.DBPath = "simulation.db"
	}

	a, err := app.Open(ctx, cfg, config.NewLogger(cfg.LogLevel, os.Stderr), "text-engine-sim")
	if err != nil {
		log.Fatalf("Failed to start game: %v", err)
	}
	defer a.Close(ctx)

	// The player is a separate model with no access to the world state.
	playerClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create player client: %v", err)
	}
	defer playerClient.Close()
	playerModel := playerClient.GenerativeModel(cfg.GeminiModel)

	fmt.Println("--- Setting up the story ---")
	storyID, intro, err := a.Story(ctx, *world)
	if err != nil {
		log.Fatalf("Failed to set up story: %v", err)
	}
	fmt.Printf("%s\n\n", intro)

	var (
		summary string
		recent  []string
	)
	for i := 1; i <= *maxTurns; i++ {
		fmt.Printf("--- Turn %d ---\n", i)

		st, err := a.Orchestrator.GetGameState(ctx, storyID)
		if err != nil {
			log.Fatalf("Failed to read state: %v", err)
		}
		action := getPlayerAction(ctx, playerModel, st, summary, recent)
		fmt.Printf("Player Action: %s\n", action)

		res, err := a.Orchestrator.ProcessTurn(ctx, storyID, action)
		if err != nil {
			fmt.Printf("Error processing turn: %v\n", err)
			break
		}
		fmt.Printf("Narrator [%s]: %s\n", res.Command, res.Narrative)
		recent = append(recent, "> "+action, res.Narrative)

		if res.Dilemma != nil {
			choice := chooseOption(ctx, playerModel, res.Dilemma)
			out, err := a.Orchestrator.HandleDilemmaResponse(ctx, storyID, res.Dilemma.ID, choice, choice)
			if err != nil {
				fmt.Printf("Dilemma answer rejected: %v\n", err)
			} else {
				fmt.Printf("Dilemma: chose %s. %s\n", out.OptionID, out.Narrative)
				recent = append(recent, "> "+choice, out.Narrative)
			}
		}

		fmt.Printf("Stats: Health=%d, Score=%d, Room=%s\n\n", res.Health, res.Score, st.Room.Name)
		if res.GameOver != nil {
			fmt.Printf("Game Ended: %s\n", res.GameOver.Reason)
			break
		}

		if i%summarizeEvery == 0 {
			if summary, err = a.Engine.Summarize(ctx, summary, recent); err != nil {
				fmt.Printf("Summary failed: %v\n", err)
			} else {
				recent = nil
			}
		}
	}

	st, err := a.Orchestrator.GetGameState(ctx, storyID)
	if err == nil {
		fmt.Printf("--- Final character ---\n%s\n", st.Personality)
	}
}

func getPlayerAction(ctx context.Context, model *genai.GenerativeModel, st *turn.GameState, summary string, recent []string) string {
	exits := make([]string, len(st.Exits))
	for i, d := range st.Exits {
		exits[i] = string(d)
	}

	prompt := fmt.Sprintf(`You are playing a text-based adventure game.
Current Location: %s
%s
Exits: %s
You see: %s
Inventory: %s
Health: %d

Story so far:
%s

Recent turns:
%s

What is your next action? Short commands like "go north", "take key", "open chest" or "search" work best, but you may try anything. Return ONLY the action string, no extra commentary.`,
		st.Room.Name,
		st.Room.Description,
		strings.Join(exits, ", "),
		strings.Join(st.Objects, ", "),
		strings.Join(st.Inventory, ", "),
		st.Health,
		summary,
		strings.Join(recent, "\n"),
	)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "look"
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "look"
	}
	return strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
}

func chooseOption(ctx context.Context, model *genai.GenerativeModel, d *turn.DilemmaPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You face a choice in a text adventure:\n%s\n", d.Prompt)
	for i, opt := range d.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Text)
	}
	b.WriteString("Answer with the number of your choice only.")

	resp, err := model.GenerateContent(ctx, genai.Text(b.String()))
	if err != nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "1"
	}
	return strings.Trim(strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])), ".")
}
