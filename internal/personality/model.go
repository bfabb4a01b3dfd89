// Package personality infers Big Five trait scores from weighted signals.
//
// Each update moves a trait by delta * 1/(confidence+1) * signalConfidence/10,
// so the first signals move a score strongly and later ones refine it.
// Scores stay within [0, 100] and a trait's confidence counter only grows.
package personality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
	// DilemmaConfidence is the signal confidence of a dilemma choice.
	DilemmaConfidence = 9.0
	// MaxSignalConfidence caps the confidence a signal may claim.
	MaxSignalConfidence = 10.0
)

var ErrUnknownTrait = errors.New("personality: unknown trait")

// Adjust returns the score after one signal and the confidence to store.
func Adjust(ts models.TraitScore, delta, signalConfidence float64) models.TraitScore {
	signalConfidence = math.Max(0, math.Min(signalConfidence, MaxSignalConfidence))
	weight := 1 / float64(ts.Confidence+1)
	adjusted := delta * weight * (signalConfidence / 10)
	return models.TraitScore{
		Score:      clamp(ts.Score + adjusted),
		Confidence: ts.Confidence + 1,
	}
}

func clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

// Apply folds sig into p.
func Apply(p *models.PersonalityScore, sig models.PersonalitySignal) error {
	if !sig.Trait.Valid() {
		return fmt.Errorf("%q: %w", sig.Trait, ErrUnknownTrait)
	}
	if p.Traits == nil {
		p.Traits = models.NewPersonalityScore(p.StoryID).Traits
	}
	ts, ok := p.Traits[sig.Trait]
	if !ok {
		ts = models.TraitScore{Score: 50}
	}
	p.Traits[sig.Trait] = Adjust(ts, sig.Delta, sig.Confidence)
	return nil
}

// DilemmaSignals converts a dilemma option's implication into signals: the
// primary trait at full delta and, when named, a secondary trait at half.
func DilemmaSignals(im models.Implication) []models.PersonalitySignal {
	sigs := []models.PersonalitySignal{{Trait: im.Trait, Delta: im.Delta, Confidence: DilemmaConfidence}}
	if im.Secondary != "" && im.Secondary != im.Trait {
		sigs = append(sigs, models.PersonalitySignal{Trait: im.Secondary, Delta: im.Delta / 2, Confidence: DilemmaConfidence})
	}
	return sigs
}

// Model loads, updates and saves a story's scores.
type Model struct {
	store store.Personality
}

// New returns a Model over s.
func New(s store.Personality) *Model {
	return &Model{store: s}
}

// Get returns the story's scores, starting neutral when none are stored.
func (m *Model) Get(ctx context.Context, storyID string) (*models.PersonalityScore, error) {
	p, err := m.store.GetPersonality(ctx, storyID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewPersonalityScore(storyID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get personality: %w", err)
	}
	return p, nil
}

// Record applies signals in order and saves the result.
func (m *Model) Record(ctx context.Context, storyID string, sigs ...models.PersonalitySignal) (*models.PersonalityScore, error) {
	p, err := m.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		if err := Apply(p, s); err != nil {
			return p, err
		}
	}
	if err := m.store.SavePersonality(ctx, p); err != nil {
		return p, fmt.Errorf("save personality: %w", err)
	}
	return p, nil
}

// RecordDilemma applies the implication of a chosen dilemma option.
func (m *Model) RecordDilemma(ctx context.Context, storyID string, im models.Implication) (*models.PersonalityScore, error) {
	return m.Record(ctx, storyID, DilemmaSignals(im)...)
}

// Describe summarizes the traits that have moved furthest from neutral.
func Describe(p *models.PersonalityScore) string {
	type dev struct {
		trait models.Trait
		score float64
	}
	var devs []dev
	for _, t := range models.Traits {
		ts, ok := p.Traits[t]
		if !ok || ts.Confidence == 0 || math.Abs(ts.Score-50) < 5 {
			continue
		}
		devs = append(devs, dev{t, ts.Score})
	}
	if len(devs) == 0 {
		return "Your character is still taking shape."
	}
	sort.SliceStable(devs, func(i, j int) bool {
		return math.Abs(devs[i].score-50) > math.Abs(devs[j].score-50)
	})
	if len(devs) > 2 {
		devs = devs[:2]
	}
	parts := make([]string, len(devs))
	for i, d := range devs {
		level := "high"
		if d.score < 50 {
			level = "low"
		}
		parts[i] = fmt.Sprintf("%s %s (%.0f)", level, d.trait, d.score)
	}
	return "You come across as " + strings.Join(parts, " and ") + "."
}
