package models

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveDir is where exported worlds are written.
var SaveDir = ".saves"

//go:embed seeds/cell.yaml
var defaultSeed []byte

// WorldSeed is an authored world, imported into the store in one transaction.
type WorldSeed struct {
	StoryID     string       `yaml:"story_id"`
	Title       string       `yaml:"title"`
	Intro       string       `yaml:"intro,omitempty"`
	StartRoom   string       `yaml:"start_room"`
	Health      int          `yaml:"health,omitempty"`
	Rooms       []Room       `yaml:"rooms"`
	Objects     []GameObject `yaml:"objects,omitempty"`
	Abilities   []Ability    `yaml:"abilities,omitempty"`
	TimedEvents []TimedEvent `yaml:"timed_events,omitempty"`
	Dilemmas    []Dilemma    `yaml:"dilemmas,omitempty"`
	Puzzles     []PuzzleStep `yaml:"puzzles,omitempty"`
}

// ParseSeed decodes a YAML world and stamps the story id on every record.
func ParseSeed(data []byte) (*WorldSeed, error) {
	var seed WorldSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse world seed: %w", err)
	}
	if strings.TrimSpace(seed.StoryID) == "" {
		return nil, fmt.Errorf("world seed has no story_id")
	}
	seed.stamp()
	return &seed, nil
}

// LoadSeed reads a YAML world from disk.
func LoadSeed(path string) (*WorldSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// DefaultSeed returns the bundled starter world.
func DefaultSeed() *WorldSeed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(err)
	}
	return seed
}

// Save writes the seed to SaveDir/<name>/world.yaml.
func (s *WorldSeed) Save(name string) error {
	dir := filepath.Join(SaveDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "world.yaml"), data, 0644)
}

// ListSaves returns the names of exported worlds under SaveDir.
func ListSaves() ([]string, error) {
	if _, err := os.Stat(SaveDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(SaveDir)
	if err != nil {
		return nil, err
	}

	var saves []string
	for _, entry := range entries {
		if entry.IsDir() {
			// world.yaml marks a valid save
			worldPath := filepath.Join(SaveDir, entry.Name(), "world.yaml")
			if _, err := os.Stat(worldPath); err == nil {
				saves = append(saves, entry.Name())
			}
		}
	}
	return saves, nil
}

func (s *WorldSeed) stamp() {
	for i := range s.Rooms {
		s.Rooms[i].StoryID = s.StoryID
		s.Rooms[i].Migrate()
	}
	for i := range s.Objects {
		s.Objects[i].StoryID = s.StoryID
		s.Objects[i].Migrate()
	}
	for i := range s.Abilities {
		s.Abilities[i].StoryID = s.StoryID
		s.Abilities[i].Key = AbilityKey(s.Abilities[i].Name)
		s.Abilities[i].Name = AbilityDisplayName(s.Abilities[i].Name)
		s.Abilities[i].Authored = true
		s.Abilities[i].Migrate()
	}
	for i := range s.TimedEvents {
		ev := &s.TimedEvents[i]
		ev.StoryID = s.StoryID
		if ev.RemainingTurns == 0 && !ev.Triggered {
			ev.RemainingTurns = ev.TotalTurns
		}
	}
	for i := range s.Dilemmas {
		s.Dilemmas[i].StoryID = s.StoryID
		if s.Dilemmas[i].State == "" {
			s.Dilemmas[i].State = DilemmaUntriggered
		}
	}
	for i := range s.Puzzles {
		s.Puzzles[i].StoryID = s.StoryID
	}
}
