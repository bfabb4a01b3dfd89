package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/text-engine/internal/app"
	"github.com/tatianab/text-engine/internal/config"
	"github.com/tatianab/text-engine/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := tea.LogToFile("text-engine.log", "")
	if err != nil {
		fmt.Printf("Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := config.NewLogger(cfg.LogLevel, logFile)

	a, err := app.Open(ctx, cfg, log, "text-engine-tui")
	if err != nil {
		fmt.Printf("Error starting game: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(ctx)

	if err := tui.Run(a.Orchestrator, a.Story); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
