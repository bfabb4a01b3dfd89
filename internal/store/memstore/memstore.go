// Package memstore is an in-process store.Store used by tests and by
// ephemeral games that need no durability.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Store keeps every record in maps guarded by one lock. Records are copied on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	rooms       map[string]models.Room
	coords      map[coordKey]string
	objects     map[string]models.GameObject
	players     map[string]models.PlayerState
	abilities   map[string]models.Ability
	timed       map[string]models.TimedEvent
	dilemmas    map[string]models.Dilemma
	personality map[string]models.PersonalityScore
	cache       map[string]models.CacheEntry
	transcript  map[string][]models.TranscriptEntry
	puzzles     map[string]models.PuzzleStep
}

type coordKey struct {
	story   string
	x, y, z int
}

func keyOf(storyID string, c models.Coord) coordKey {
	return coordKey{story: storyID, x: c.X, y: c.Y, z: c.Z}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:       make(map[string]models.Room),
		coords:      make(map[coordKey]string),
		objects:     make(map[string]models.GameObject),
		players:     make(map[string]models.PlayerState),
		abilities:   make(map[string]models.Ability),
		timed:       make(map[string]models.TimedEvent),
		dilemmas:    make(map[string]models.Dilemma),
		personality: make(map[string]models.PersonalityScore),
		cache:       make(map[string]models.CacheEntry),
		transcript:  make(map[string][]models.TranscriptEntry),
		puzzles:     make(map[string]models.PuzzleStep),
	}
}

func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memstore: clone: %v", err))
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("memstore: clone: %v", err))
	}
	return out
}

func (s *Store) GetRoom(_ context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	r = clone(r)
	return &r, nil
}

func (s *Store) RoomAt(_ context.Context, storyID string, c models.Coord) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.coords[keyOf(storyID, c)]
	if !ok {
		return nil, fmt.Errorf("room at %s: %w", c, store.ErrNotFound)
	}
	r := clone(s.rooms[id])
	return &r, nil
}

func (s *Store) ListRooms(_ context.Context, storyID string) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Room
	for _, r := range s.rooms {
		if r.StoryID == storyID {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRoomLocked(room)
}

func (s *Store) createRoomLocked(room *models.Room) error {
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s: %w", room.ID, store.ErrConflict)
	}
	k := keyOf(room.StoryID, room.Coord)
	if _, ok := s.coords[k]; ok {
		return fmt.Errorf("room at %s: %w", room.Coord, store.ErrConflict)
	}
	s.rooms[room.ID] = clone(*room)
	s.coords[k] = room.ID
	return nil
}

func (s *Store) UpdateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rooms[room.ID]
	if !ok {
		return fmt.Errorf("room %s: %w", room.ID, store.ErrNotFound)
	}
	if old.Coord != room.Coord || old.StoryID != room.StoryID {
		k := keyOf(room.StoryID, room.Coord)
		if _, taken := s.coords[k]; taken {
			return fmt.Errorf("room at %s: %w", room.Coord, store.ErrConflict)
		}
		delete(s.coords, keyOf(old.StoryID, old.Coord))
		s.coords[k] = room.ID
	}
	s.rooms[room.ID] = clone(*room)
	return nil
}

func (s *Store) GetObject(_ context.Context, id string) (*models.GameObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, store.ErrNotFound)
	}
	o = clone(o)
	return &o, nil
}

func (s *Store) ListObjects(_ context.Context, storyID string) ([]models.GameObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.GameObject
	for _, o := range s.objects {
		if o.StoryID == storyID {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveObject(_ context.Context, obj *models.GameObject) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID] = clone(*obj)
	return nil
}

func (s *Store) DeleteObject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("object %s: %w", id, store.ErrNotFound)
	}
	delete(s.objects, id)
	return nil
}

func (s *Store) GetPlayer(_ context.Context, storyID string) (*models.PlayerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[storyID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", storyID, store.ErrNotFound)
	}
	p = clone(p)
	return &p, nil
}

func (s *Store) SavePlayer(_ context.Context, p *models.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.StoryID] = clone(*p)
	return nil
}

func abilityKey(storyID, key string) string { return storyID + "\x00" + key }

func (s *Store) GetAbility(_ context.Context, storyID, key string) (*models.Ability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.abilities[abilityKey(storyID, key)]
	if !ok {
		return nil, fmt.Errorf("ability %s: %w", key, store.ErrNotFound)
	}
	a = clone(a)
	return &a, nil
}

func (s *Store) ListAbilities(_ context.Context, storyID string) ([]models.Ability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Ability
	for _, a := range s.abilities {
		if a.StoryID == storyID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) SaveAbility(_ context.Context, a *models.Ability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abilities[abilityKey(a.StoryID, a.Key)] = clone(*a)
	return nil
}

func (s *Store) ListTimedEvents(_ context.Context, storyID string) ([]models.TimedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TimedEvent
	for _, ev := range s.timed {
		if ev.StoryID == storyID {
			out = append(out, clone(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveTimedEvent(_ context.Context, ev *models.TimedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timed[ev.ID] = clone(*ev)
	return nil
}

func (s *Store) GetDilemma(_ context.Context, id string) (*models.Dilemma, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dilemmas[id]
	if !ok {
		return nil, fmt.Errorf("dilemma %s: %w", id, store.ErrNotFound)
	}
	d = clone(d)
	return &d, nil
}

func (s *Store) ListDilemmas(_ context.Context, storyID string) ([]models.Dilemma, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Dilemma
	for _, d := range s.dilemmas {
		if d.StoryID == storyID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveDilemma(_ context.Context, d *models.Dilemma) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dilemmas[d.ID] = clone(*d)
	return nil
}

func (s *Store) GetPersonality(_ context.Context, storyID string) (*models.PersonalityScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personality[storyID]
	if !ok {
		return nil, fmt.Errorf("personality %s: %w", storyID, store.ErrNotFound)
	}
	p = clone(p)
	return &p, nil
}

func (s *Store) SavePersonality(_ context.Context, p *models.PersonalityScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personality[p.StoryID] = clone(*p)
	return nil
}

func (s *Store) GetCacheEntry(_ context.Context, key string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[key]
	if !ok {
		return nil, fmt.Errorf("cache entry: %w", store.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) PutCacheEntry(_ context.Context, e *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[e.Key] = *e
	return nil
}

func (s *Store) AppendTranscript(_ context.Context, e *models.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript[e.StoryID] = append(s.transcript[e.StoryID], *e)
	return nil
}

func (s *Store) ListTranscript(_ context.Context, storyID string, limit int) ([]models.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.transcript[storyID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.TranscriptEntry(nil), all...), nil
}

func (s *Store) ListPuzzleSteps(_ context.Context, storyID string) ([]models.PuzzleStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PuzzleStep
	for _, p := range s.puzzles {
		if p.StoryID == storyID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SavePuzzleStep(_ context.Context, p *models.PuzzleStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puzzles[p.ID] = clone(*p)
	return nil
}

// ImportWorld applies every record under the lock, validating coordinate
// uniqueness first so a rejected import leaves the store untouched.
func (s *Store) ImportWorld(_ context.Context, w *store.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[coordKey]bool, len(w.Rooms))
	for _, r := range w.Rooms {
		k := keyOf(r.StoryID, r.Coord)
		if _, taken := s.coords[k]; taken || seen[k] {
			return fmt.Errorf("room at %s: %w", r.Coord, store.ErrConflict)
		}
		if _, taken := s.rooms[r.ID]; taken {
			return fmt.Errorf("room %s: %w", r.ID, store.ErrConflict)
		}
		seen[k] = true
	}
	for i := range w.Objects {
		if err := w.Objects[i].Validate(); err != nil {
			return err
		}
	}

	for i := range w.Rooms {
		if err := s.createRoomLocked(&w.Rooms[i]); err != nil {
			return err
		}
	}
	for _, o := range w.Objects {
		s.objects[o.ID] = clone(o)
	}
	for _, a := range w.Abilities {
		s.abilities[abilityKey(a.StoryID, a.Key)] = clone(a)
	}
	for _, ev := range w.TimedEvents {
		s.timed[ev.ID] = clone(ev)
	}
	for _, d := range w.Dilemmas {
		s.dilemmas[d.ID] = clone(d)
	}
	for _, p := range w.Puzzles {
		s.puzzles[p.ID] = clone(p)
	}
	s.players[w.Player.StoryID] = clone(w.Player)
	s.personality[w.Personality.StoryID] = clone(w.Personality)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
