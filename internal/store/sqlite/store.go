// Package sqlite is the durable store.Store backed by modernc.org/sqlite.
//
// Every record is stored as a JSON document next to the columns needed to
// look it up: ids, story ids and, for rooms, the coordinate tuple whose
// uniqueness the schema enforces. Only ImportWorld runs inside a transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/store/sqlite/migrations"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func getDoc[T any](ctx context.Context, q querier, what, query string, args ...any) (*T, error) {
	var data string
	err := q.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return &v, nil
}

func listDocs[T any](ctx context.Context, q querier, what, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", what, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	r, err := getDoc[models.Room](ctx, s.db, "room "+id, `SELECT data FROM rooms WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	r.Migrate()
	return r, nil
}

func (s *Store) RoomAt(ctx context.Context, storyID string, c models.Coord) (*models.Room, error) {
	r, err := getDoc[models.Room](ctx, s.db, "room at "+c.String(),
		`SELECT data FROM rooms WHERE story_id = ? AND x = ? AND y = ? AND z = ?`, storyID, c.X, c.Y, c.Z)
	if err != nil {
		return nil, err
	}
	r.Migrate()
	return r, nil
}

func (s *Store) ListRooms(ctx context.Context, storyID string) ([]models.Room, error) {
	rooms, err := listDocs[models.Room](ctx, s.db, "rooms", `SELECT data FROM rooms WHERE story_id = ? ORDER BY id`, storyID)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Migrate()
	}
	return rooms, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	return createRoom(ctx, s.db, room)
}

func createRoom(ctx context.Context, q querier, room *models.Room) error {
	data, err := encode(room)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO rooms (id, story_id, x, y, z, data) VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.StoryID, room.Coord.X, room.Coord.Y, room.Coord.Z, data)
	if isUnique(err) {
		return fmt.Errorf("room %s at %s: %w", room.ID, room.Coord, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *Store) UpdateRoom(ctx context.Context, room *models.Room) error {
	data, err := encode(room)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET story_id = ?, x = ?, y = ?, z = ?, data = ? WHERE id = ?`,
		room.StoryID, room.Coord.X, room.Coord.Y, room.Coord.Z, data, room.ID)
	if isUnique(err) {
		return fmt.Errorf("room at %s: %w", room.Coord, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %s: %w", room.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, id string) (*models.GameObject, error) {
	o, err := getDoc[models.GameObject](ctx, s.db, "object "+id, `SELECT data FROM objects WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	o.Migrate()
	return o, nil
}

func (s *Store) ListObjects(ctx context.Context, storyID string) ([]models.GameObject, error) {
	objs, err := listDocs[models.GameObject](ctx, s.db, "objects", `SELECT data FROM objects WHERE story_id = ? ORDER BY id`, storyID)
	if err != nil {
		return nil, err
	}
	for i := range objs {
		objs[i].Migrate()
	}
	return objs, nil
}

func (s *Store) SaveObject(ctx context.Context, obj *models.GameObject) error {
	return saveObject(ctx, s.db, obj)
}

func saveObject(ctx context.Context, q querier, obj *models.GameObject) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	data, err := encode(obj)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO objects (id, story_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET story_id = excluded.story_id, data = excluded.data`,
		obj.ID, obj.StoryID, data)
	if err != nil {
		return fmt.Errorf("save object: %w", err)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("object %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, storyID string) (*models.PlayerState, error) {
	return getDoc[models.PlayerState](ctx, s.db, "player "+storyID, `SELECT data FROM players WHERE story_id = ?`, storyID)
}

func (s *Store) SavePlayer(ctx context.Context, p *models.PlayerState) error {
	return savePlayer(ctx, s.db, p)
}

func savePlayer(ctx context.Context, q querier, p *models.PlayerState) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO players (story_id, data) VALUES (?, ?)
		 ON CONFLICT (story_id) DO UPDATE SET data = excluded.data`, p.StoryID, data)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func (s *Store) GetAbility(ctx context.Context, storyID, key string) (*models.Ability, error) {
	a, err := getDoc[models.Ability](ctx, s.db, "ability "+key,
		`SELECT data FROM abilities WHERE story_id = ? AND ability_key = ?`, storyID, key)
	if err != nil {
		return nil, err
	}
	a.Migrate()
	return a, nil
}

func (s *Store) ListAbilities(ctx context.Context, storyID string) ([]models.Ability, error) {
	abilities, err := listDocs[models.Ability](ctx, s.db, "abilities",
		`SELECT data FROM abilities WHERE story_id = ? ORDER BY ability_key`, storyID)
	if err != nil {
		return nil, err
	}
	for i := range abilities {
		abilities[i].Migrate()
	}
	return abilities, nil
}

func (s *Store) SaveAbility(ctx context.Context, a *models.Ability) error {
	return saveAbility(ctx, s.db, a)
}

func saveAbility(ctx context.Context, q querier, a *models.Ability) error {
	data, err := encode(a)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO abilities (story_id, ability_key, data) VALUES (?, ?, ?)
		 ON CONFLICT (story_id, ability_key) DO UPDATE SET data = excluded.data`, a.StoryID, a.Key, data)
	if err != nil {
		return fmt.Errorf("save ability: %w", err)
	}
	return nil
}

func (s *Store) ListTimedEvents(ctx context.Context, storyID string) ([]models.TimedEvent, error) {
	return listDocs[models.TimedEvent](ctx, s.db, "timed events",
		`SELECT data FROM timed_events WHERE story_id = ? ORDER BY id`, storyID)
}

func (s *Store) SaveTimedEvent(ctx context.Context, ev *models.TimedEvent) error {
	return saveTimedEvent(ctx, s.db, ev)
}

func saveTimedEvent(ctx context.Context, q querier, ev *models.TimedEvent) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO timed_events (id, story_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`, ev.ID, ev.StoryID, data)
	if err != nil {
		return fmt.Errorf("save timed event: %w", err)
	}
	return nil
}

func (s *Store) GetDilemma(ctx context.Context, id string) (*models.Dilemma, error) {
	return getDoc[models.Dilemma](ctx, s.db, "dilemma "+id, `SELECT data FROM dilemmas WHERE id = ?`, id)
}

func (s *Store) ListDilemmas(ctx context.Context, storyID string) ([]models.Dilemma, error) {
	return listDocs[models.Dilemma](ctx, s.db, "dilemmas",
		`SELECT data FROM dilemmas WHERE story_id = ? ORDER BY id`, storyID)
}

func (s *Store) SaveDilemma(ctx context.Context, d *models.Dilemma) error {
	return saveDilemma(ctx, s.db, d)
}

func saveDilemma(ctx context.Context, q querier, d *models.Dilemma) error {
	data, err := encode(d)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO dilemmas (id, story_id, room_id, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET room_id = excluded.room_id, data = excluded.data`,
		d.ID, d.StoryID, d.RoomID, data)
	if err != nil {
		return fmt.Errorf("save dilemma: %w", err)
	}
	return nil
}

func (s *Store) GetPersonality(ctx context.Context, storyID string) (*models.PersonalityScore, error) {
	return getDoc[models.PersonalityScore](ctx, s.db, "personality "+storyID,
		`SELECT data FROM personality WHERE story_id = ?`, storyID)
}

func (s *Store) SavePersonality(ctx context.Context, p *models.PersonalityScore) error {
	return savePersonality(ctx, s.db, p)
}

func savePersonality(ctx context.Context, q querier, p *models.PersonalityScore) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO personality (story_id, data) VALUES (?, ?)
		 ON CONFLICT (story_id) DO UPDATE SET data = excluded.data`, p.StoryID, data)
	if err != nil {
		return fmt.Errorf("save personality: %w", err)
	}
	return nil
}

func (s *Store) GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	return getDoc[models.CacheEntry](ctx, s.db, "cache entry", `SELECT data FROM cache_entries WHERE cache_key = ?`, key)
}

func (s *Store) PutCacheEntry(ctx context.Context, e *models.CacheEntry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, story_id, room_id, kind, data) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET data = excluded.data`,
		e.Key, e.StoryID, e.RoomID, string(e.Kind), data)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *Store) AppendTranscript(ctx context.Context, e *models.TranscriptEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (story_id, turn, role, body, at) VALUES (?, ?, ?, ?, ?)`,
		e.StoryID, e.Turn, e.Role, e.Text, e.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (s *Store) ListTranscript(ctx context.Context, storyID string, limit int) ([]models.TranscriptEntry, error) {
	query := `SELECT story_id, turn, role, body, at FROM transcript WHERE story_id = ? ORDER BY seq`
	args := []any{storyID}
	if limit > 0 {
		query = `SELECT story_id, turn, role, body, at FROM (
			SELECT seq, story_id, turn, role, body, at FROM transcript WHERE story_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	defer rows.Close()

	var out []models.TranscriptEntry
	for rows.Next() {
		var e models.TranscriptEntry
		var at int64
		if err := rows.Scan(&e.StoryID, &e.Turn, &e.Role, &e.Text, &at); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.At = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListPuzzleSteps(ctx context.Context, storyID string) ([]models.PuzzleStep, error) {
	return listDocs[models.PuzzleStep](ctx, s.db, "puzzle steps",
		`SELECT data FROM puzzle_steps WHERE story_id = ? ORDER BY id`, storyID)
}

func (s *Store) SavePuzzleStep(ctx context.Context, p *models.PuzzleStep) error {
	return savePuzzleStep(ctx, s.db, p)
}

func savePuzzleStep(ctx context.Context, q querier, p *models.PuzzleStep) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO puzzle_steps (id, story_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`, p.ID, p.StoryID, data)
	if err != nil {
		return fmt.Errorf("save puzzle step: %w", err)
	}
	return nil
}

// ImportWorld writes the whole world in one transaction.
func (s *Store) ImportWorld(ctx context.Context, w *store.World) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range w.Rooms {
		if err = createRoom(ctx, tx, &w.Rooms[i]); err != nil {
			return err
		}
	}
	for i := range w.Objects {
		if err = saveObject(ctx, tx, &w.Objects[i]); err != nil {
			return err
		}
	}
	for i := range w.Abilities {
		if err = saveAbility(ctx, tx, &w.Abilities[i]); err != nil {
			return err
		}
	}
	for i := range w.TimedEvents {
		if err = saveTimedEvent(ctx, tx, &w.TimedEvents[i]); err != nil {
			return err
		}
	}
	for i := range w.Dilemmas {
		if err = saveDilemma(ctx, tx, &w.Dilemmas[i]); err != nil {
			return err
		}
	}
	for i := range w.Puzzles {
		if err = savePuzzleStep(ctx, tx, &w.Puzzles[i]); err != nil {
			return err
		}
	}
	if err = savePlayer(ctx, tx, &w.Player); err != nil {
		return err
	}
	if err = savePersonality(ctx, tx, &w.Personality); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
