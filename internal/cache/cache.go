// Package cache memoizes generator responses so repeated or paraphrased
// player actions in the same room do not call the generator again.
//
// Entries are looked up two ways. The exact path hashes the structured
// command; the semantic path hashes the sorted, de-duplicated set of content
// words in the raw input, which folds paraphrases asked in the same room onto
// one entry. Entries are never invalidated when the world changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/tatianab/text-engine/internal/command"
	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

// Key identifies one cache entry.
type Key struct {
	Kind    models.CacheKind
	Value   string
	StoryID string
	RoomID  string
}

// Exact keys a structured command in a room.
func Exact(storyID, roomID string, cmd command.Command) Key {
	return Key{
		Kind:    models.CacheExact,
		Value:   ExactKey(storyID, roomID, cmd.Type, cmd.Target, cmd.Modifier),
		StoryID: storyID,
		RoomID:  roomID,
	}
}

// Semantic keys free text in a room by its content words.
func Semantic(storyID, roomID, text string) Key {
	return Key{
		Kind:    models.CacheSemantic,
		Value:   SemanticKey(storyID, roomID, text),
		StoryID: storyID,
		RoomID:  roomID,
	}
}

// ExactKey hashes (story, room, type, target, modifier).
func ExactKey(storyID, roomID string, t command.Type, target, modifier string) string {
	return hash("exact", storyID, roomID, string(t), target, modifier)
}

// SemanticKey hashes the semantic signature of text scoped to (story, room).
func SemanticKey(storyID, roomID, text string) string {
	return hash("semantic", storyID, roomID, strings.Join(Signature(text), " "))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"i": true, "me": true, "my": true, "you": true, "your": true, "it": true, "its": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "am": true,
	"do": true, "does": true, "did": true, "can": true, "could": true, "would": true, "should": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true, "with": true, "about": true,
	"this": true, "that": true, "these": true, "those": true, "there": true, "here": true,
	"what": true, "please": true, "just": true, "some": true, "any": true,
}

// Signature lowercases text, strips punctuation, drops stop words and
// returns the remaining words de-duplicated and sorted.
func Signature(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(clean) {
		if stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func hash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache reads and writes entries through a store.
type Cache struct {
	store store.Cache
	group singleflight.Group
	now   func() time.Time
	log   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock sets the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns a Cache over s.
func New(s store.Cache, opts ...Option) *Cache {
	c := &Cache{store: s, now: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached response for k and counts the hit.
func (c *Cache) Get(ctx context.Context, k Key) (string, bool, error) {
	e, err := c.store.GetCacheEntry(ctx, k.Value)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	e.Hits++
	if err := c.store.PutCacheEntry(ctx, e); err != nil {
		c.log.Warn("cache hit count not saved", "key", k.Value, "err", err)
	}
	return e.Response, true, nil
}

// Put stores response under k.
func (c *Cache) Put(ctx context.Context, k Key, response string) error {
	e := &models.CacheEntry{
		Key:       k.Value,
		Kind:      k.Kind,
		StoryID:   k.StoryID,
		RoomID:    k.RoomID,
		Response:  response,
		CreatedAt: c.now(),
	}
	if err := c.store.PutCacheEntry(ctx, e); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Producer computes a response on a cache miss. Only responses it reports as
// cacheable are stored.
type Producer func(ctx context.Context) (response string, cacheable bool, err error)

// Resolve returns the cached response for k, or runs produce and stores its
// result. Concurrent misses on the same key share one produce call.
func (c *Cache) Resolve(ctx context.Context, k Key, produce Producer) (string, bool, error) {
	if resp, ok, err := c.Get(ctx, k); err != nil || ok {
		return resp, ok, err
	}
	v, err, _ := c.group.Do(k.Value, func() (any, error) {
		resp, cacheable, err := produce(ctx)
		if err != nil {
			return "", err
		}
		if cacheable {
			if err := c.Put(ctx, k, resp); err != nil {
				c.log.Warn("response not cached", "key", k.Value, "err", err)
			}
		}
		return resp, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}
