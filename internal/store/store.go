// Package store defines the durable keyed store the game core reads and
// writes. Implementations live in the memstore and sqlite subpackages.
package store

import (
	"context"
	"errors"

	"github.com/tatianab/text-engine/internal/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write would break a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
)

// Rooms persists world graph nodes. (story, x, y, z) is unique.
type Rooms interface {
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	RoomAt(ctx context.Context, storyID string, c models.Coord) (*models.Room, error)
	ListRooms(ctx context.Context, storyID string) ([]models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
}

// Objects persists game objects.
type Objects interface {
	GetObject(ctx context.Context, id string) (*models.GameObject, error)
	ListObjects(ctx context.Context, storyID string) ([]models.GameObject, error)
	SaveObject(ctx context.Context, obj *models.GameObject) error
	DeleteObject(ctx context.Context, id string) error
}

// Players persists the per-story player record.
type Players interface {
	GetPlayer(ctx context.Context, storyID string) (*models.PlayerState, error)
	SavePlayer(ctx context.Context, p *models.PlayerState) error
}

// Abilities persists skills keyed by (story, case-folded name).
type Abilities interface {
	GetAbility(ctx context.Context, storyID, key string) (*models.Ability, error)
	ListAbilities(ctx context.Context, storyID string) ([]models.Ability, error)
	SaveAbility(ctx context.Context, a *models.Ability) error
}

// TimedEvents persists countdown events.
type TimedEvents interface {
	ListTimedEvents(ctx context.Context, storyID string) ([]models.TimedEvent, error)
	SaveTimedEvent(ctx context.Context, ev *models.TimedEvent) error
}

// Dilemmas persists room-bound choices.
type Dilemmas interface {
	GetDilemma(ctx context.Context, id string) (*models.Dilemma, error)
	ListDilemmas(ctx context.Context, storyID string) ([]models.Dilemma, error)
	SaveDilemma(ctx context.Context, d *models.Dilemma) error
}

// Personality persists the inferred trait scores.
type Personality interface {
	GetPersonality(ctx context.Context, storyID string) (*models.PersonalityScore, error)
	SavePersonality(ctx context.Context, p *models.PersonalityScore) error
}

// Cache persists memoized generator responses.
type Cache interface {
	GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error)
	PutCacheEntry(ctx context.Context, e *models.CacheEntry) error
}

// Transcript persists the play log.
type Transcript interface {
	AppendTranscript(ctx context.Context, e *models.TranscriptEntry) error
	ListTranscript(ctx context.Context, storyID string, limit int) ([]models.TranscriptEntry, error)
}

// Puzzles persists puzzle steps.
type Puzzles interface {
	ListPuzzleSteps(ctx context.Context, storyID string) ([]models.PuzzleStep, error)
	SavePuzzleStep(ctx context.Context, s *models.PuzzleStep) error
}

// World is the bulk content written by a world import.
type World struct {
	Rooms       []models.Room
	Objects     []models.GameObject
	Abilities   []models.Ability
	TimedEvents []models.TimedEvent
	Dilemmas    []models.Dilemma
	Puzzles     []models.PuzzleStep
	Player      models.PlayerState
	Personality models.PersonalityScore
}

// Store is the full set of records the game core needs.
type Store interface {
	Rooms
	Objects
	Players
	Abilities
	TimedEvents
	Dilemmas
	Personality
	Cache
	Transcript
	Puzzles

	// ImportWorld writes w atomically. It is the only transactional write.
	ImportWorld(ctx context.Context, w *World) error
	Close() error
}
