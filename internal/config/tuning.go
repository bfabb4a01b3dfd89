package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the numbers the game core plays by.
type Tuning struct {
	// DefaultDifficulty is used when the generator proposes no difficulty.
	DefaultDifficulty int `yaml:"default_difficulty"`
	SearchDifficulty  int `yaml:"search_difficulty"`
	UrgencyTurns      int `yaml:"urgency_turns"`
	PortalRadius      int `yaml:"portal_radius"`
	HistoryLines      int `yaml:"history_lines"`
	DamageDefault     int `yaml:"damage_default"`
}

// DefaultTuning returns the built-in values.
func DefaultTuning() Tuning {
	return Tuning{
		DefaultDifficulty: 12,
		SearchDifficulty:  12,
		UrgencyTurns:      2,
		PortalRadius:      16,
		HistoryLines:      8,
		DamageDefault:     10,
	}
}

// LoadTuning reads a tuning file over the defaults. Fields the file leaves
// out or sets to zero keep their default.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	var file Tuning
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.merge(file)
	return t, nil
}

func (t *Tuning) merge(o Tuning) {
	set := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	set(&t.DefaultDifficulty, o.DefaultDifficulty)
	set(&t.SearchDifficulty, o.SearchDifficulty)
	set(&t.UrgencyTurns, o.UrgencyTurns)
	set(&t.PortalRadius, o.PortalRadius)
	set(&t.HistoryLines, o.HistoryLines)
	set(&t.DamageDefault, o.DamageDefault)
}
