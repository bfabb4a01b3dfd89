// Package skill resolves randomized ability checks.
//
// A check rolls a d20, adds the ability's level and compares the total with a
// difficulty on a 0-40 scale. A natural 20 always succeeds and a natural 1
// always fails. A success raises the level by max(0, margin)/20, so abilities
// grow continuously with use and never shrink from a failed check.
package skill

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

const (
	// Sides is the die size rolled for every check.
	Sides = 20
	// MinDifficulty and MaxDifficulty bound the difficulty scale.
	MinDifficulty = 0
	MaxDifficulty = 40
	// GainDivisor converts a success margin into a level increase.
	GainDivisor = 20.0
)

// Outcome is the result of one check.
type Outcome struct {
	Roll       int
	Level      float64
	Total      float64
	Difficulty int
	Success    bool
	// Forced is set when a natural 1 or 20 decided the check.
	Forced   bool
	Margin   float64
	Gain     float64
	NewLevel float64
}

// Resolve applies the check rules to a roll. It is pure: the same inputs
// always give the same Outcome.
func Resolve(level float64, roll, difficulty int) Outcome {
	difficulty = ClampDifficulty(difficulty)
	total := float64(roll) + level
	o := Outcome{
		Roll:       roll,
		Level:      level,
		Total:      total,
		Difficulty: difficulty,
		Margin:     total - float64(difficulty),
		NewLevel:   level,
	}
	switch roll {
	case Sides:
		o.Success, o.Forced = true, true
	case 1:
		o.Success, o.Forced = false, true
	default:
		o.Success = total >= float64(difficulty)
	}
	if o.Success && o.Margin > 0 {
		o.Gain = o.Margin / GainDivisor
		o.NewLevel = level + o.Gain
	}
	return o
}

// ClampDifficulty limits d to the difficulty scale.
func ClampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// Roller rolls one d20.
type Roller interface {
	Roll() int
}

// RandRoller rolls with a seeded math/rand source. It is safe for concurrent
// use.
type RandRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandRoller returns a roller seeded with seed.
func NewRandRoller(seed int64) *RandRoller {
	return &RandRoller{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns a uniform value in [1, 20].
func (r *RandRoller) Roll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(Sides) + 1
}

// NewSeed returns a high-entropy seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Sequence replays fixed rolls in order, repeating the last one.
type Sequence struct {
	mu    sync.Mutex
	rolls []int
}

// NewSequence returns a roller that yields rolls in order.
func NewSequence(rolls ...int) *Sequence {
	return &Sequence{rolls: rolls}
}

// Roll returns the next scripted value.
func (s *Sequence) Roll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rolls) == 0 {
		return 10
	}
	v := s.rolls[0]
	if len(s.rolls) > 1 {
		s.rolls = s.rolls[1:]
	}
	return v
}
