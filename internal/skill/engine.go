package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Default maps natural-language words to a built-in ability.
type Default struct {
	Name  string
	Verbs []string
	Nouns []string
}

// Defaults is consulted when no ability the player owns matches.
var Defaults = []Default{
	{Name: "Athletics", Verbs: []string{"climb", "jump", "swim", "vault", "lift", "push", "leap"}},
	{Name: "Stealth", Verbs: []string{"sneak", "hide", "creep", "tiptoe"}, Nouns: []string{"shadows"}},
	{Name: "Perception", Verbs: []string{"search", "listen", "spot", "notice", "scan"}, Nouns: []string{"tracks", "footprints"}},
	{Name: "Lockpicking", Verbs: []string{"pick", "jimmy", "unlock"}, Nouns: []string{"lock", "padlock"}},
	{Name: "Persuasion", Verbs: []string{"persuade", "convince", "charm", "bribe", "negotiate"}},
	{Name: "Intimidation", Verbs: []string{"threaten", "intimidate", "scare"}},
	{Name: "Sleight of Hand", Verbs: []string{"pickpocket", "steal", "palm", "pilfer"}},
	{Name: "Medicine", Verbs: []string{"heal", "bandage", "treat"}, Nouns: []string{"wound", "wounds"}},
	{Name: "Survival", Verbs: []string{"track", "forage", "hunt"}},
}

// MatchSource says how free text was mapped to an ability.
type MatchSource string

const (
	MatchVerb    MatchSource = "verb"
	MatchNoun    MatchSource = "noun"
	MatchName    MatchSource = "name"
	MatchDefault MatchSource = "default"
)

// Match is an ability chosen for a piece of free text. Ability is not yet
// persisted when the match created it.
type Match struct {
	Ability *models.Ability
	Source  MatchSource
	Word    string
	New     bool
}

// Result is a completed check against a stored ability.
type Result struct {
	Outcome
	Ability models.Ability
	Mastery int
}

// Engine matches free text to abilities and runs checks that update them.
type Engine struct {
	store    store.Abilities
	roller   Roller
	defaults []Default
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithDefaults replaces the built-in default table.
func WithDefaults(d []Default) Option {
	return func(e *Engine) { e.defaults = d }
}

// NewEngine returns an Engine storing abilities in s and rolling with r.
func NewEngine(s store.Abilities, r Roller, opts ...Option) *Engine {
	e := &Engine{store: s, roller: r, defaults: Defaults, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Match finds the ability text calls for. The story's own abilities are
// tried first by trigger verb, trigger noun and then a stem match against the
// ability name; the default table comes next. ok is false when nothing
// matches.
func (e *Engine) Match(ctx context.Context, storyID, text string) (*Match, bool, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return nil, false, nil
	}
	owned, err := e.store.ListAbilities(ctx, storyID)
	if err != nil {
		return nil, false, fmt.Errorf("list abilities: %w", err)
	}

	for _, src := range []MatchSource{MatchVerb, MatchNoun, MatchName} {
		for i := range owned {
			a := &owned[i]
			var w string
			switch src {
			case MatchVerb:
				w = firstShared(words, a.Triggers.Verbs)
			case MatchNoun:
				w = firstShared(words, a.Triggers.Nouns)
			case MatchName:
				w = stemMatch(words, tokenize(a.Name))
			}
			if w != "" {
				return &Match{Ability: a, Source: src, Word: w}, true, nil
			}
		}
	}

	for _, d := range e.defaults {
		w := firstShared(words, d.Verbs)
		if w == "" {
			w = firstShared(words, d.Nouns)
		}
		if w == "" {
			continue
		}
		a, isNew, err := e.ability(ctx, storyID, d.Name)
		if err != nil {
			return nil, false, err
		}
		return &Match{Ability: a, Source: MatchDefault, Word: w, New: isNew}, true, nil
	}
	return nil, false, nil
}

// Get returns the story's ability called name, creating it at level 1 when
// the story has none yet. The new ability is saved by the first Check.
func (e *Engine) Get(ctx context.Context, storyID, name string) (*models.Ability, error) {
	a, _, err := e.ability(ctx, storyID, name)
	return a, err
}

func (e *Engine) ability(ctx context.Context, storyID, name string) (*models.Ability, bool, error) {
	key := models.AbilityKey(name)
	a, err := e.store.GetAbility(ctx, storyID, key)
	switch {
	case err == nil:
		return a, false, nil
	case errors.Is(err, store.ErrNotFound):
		return &models.Ability{
			StoryID:  storyID,
			Key:      key,
			Name:     models.AbilityDisplayName(name),
			Level:    1,
			Triggers: models.AbilityTriggers{Version: models.TriggersVersion},
		}, true, nil
	default:
		return nil, false, fmt.Errorf("get ability %s: %w", key, err)
	}
}

// Check rolls against difficulty for a, records the attempt and saves the
// ability. The check itself cannot fail; only the save can.
func (e *Engine) Check(ctx context.Context, a *models.Ability, difficulty int) (Result, error) {
	if a.Level < 1 {
		a.Level = 1
	}
	out := Resolve(a.Level, e.roller.Roll(), difficulty)
	a.Uses++
	if out.Success {
		a.Successes++
		a.Level = out.NewLevel
	}
	e.log.Debug("skill check", "story", a.StoryID, "ability", a.Key, "roll", out.Roll,
		"total", out.Total, "difficulty", out.Difficulty, "success", out.Success)
	res := Result{Outcome: out, Ability: *a, Mastery: a.Mastery()}
	if err := e.store.SaveAbility(ctx, a); err != nil {
		return res, fmt.Errorf("save ability %s: %w", a.Key, err)
	}
	return res, nil
}

// List returns the story's abilities.
func (e *Engine) List(ctx context.Context, storyID string) ([]models.Ability, error) {
	return e.store.ListAbilities(ctx, storyID)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func firstShared(words, set []string) string {
	for _, w := range words {
		for _, s := range set {
			if w == strings.ToLower(s) {
				return w
			}
		}
	}
	return ""
}

// stemMatch reports the first word sharing a stem with a word of the
// ability name ("lockpick" and "lockpicking", "climbed" and "climbing").
func stemMatch(words, name []string) string {
	for _, w := range words {
		sw := stem(w)
		if len(sw) < 4 {
			continue
		}
		for _, n := range name {
			if sn := stem(n); sn == sw || (len(sn) >= 4 && strings.HasPrefix(sw, sn)) {
				return w
			}
		}
	}
	return ""
}

func stem(w string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if len(w) > len(suffix)+3 && strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix)
		}
	}
	return w
}
