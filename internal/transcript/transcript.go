// Package transcript records what the player typed and what the narrator
// answered, in the store and optionally in a compressed archive on disk.
package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store"
)

const (
	RolePlayer   = "player"
	RoleNarrator = "narrator"
)

// Log writes transcript entries to the store and to an optional archive.
type Log struct {
	store   store.Transcript
	archive *Archive
	now     func() time.Time
}

// NewLog returns a Log over s. archive may be nil.
func NewLog(s store.Transcript, archive *Archive) *Log {
	return &Log{store: s, archive: archive, now: time.Now}
}

// Record appends one line of play.
func (l *Log) Record(ctx context.Context, storyID string, turn int, role, text string) error {
	e := &models.TranscriptEntry{StoryID: storyID, Turn: turn, Role: role, Text: text, At: l.now().UTC()}
	if err := l.store.AppendTranscript(ctx, e); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	if l.archive != nil {
		if err := l.archive.Write(e); err != nil {
			return fmt.Errorf("archive transcript: %w", err)
		}
	}
	return nil
}

// Recent returns the last n entries formatted for a prompt, oldest first.
func (l *Log) Recent(ctx context.Context, storyID string, n int) ([]string, error) {
	entries, err := l.store.ListTranscript(ctx, storyID, n)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = Format(e)
	}
	return lines, nil
}

// Format renders one entry as a single line.
func Format(e models.TranscriptEntry) string {
	if e.Role == RolePlayer {
		return "> " + e.Text
	}
	return strings.Join(strings.Fields(e.Text), " ")
}

// Archive appends entries to zstd-compressed JSONL files, one file per story
// per UTC day.
type Archive struct {
	dir string
	now func() time.Time

	mu       sync.Mutex
	segments map[string]*segment
}

type segment struct {
	day string
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewArchive returns an Archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir, now: time.Now, segments: make(map[string]*segment)}
}

// Write appends e to its story's current file.
func (a *Archive) Write(e *models.TranscriptEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	day := a.now().UTC().Format("2006-01-02")
	seg := a.segments[e.StoryID]
	if seg == nil || seg.day != day {
		if seg != nil {
			if err := seg.close(); err != nil {
				return err
			}
		}
		var err error
		seg, err = a.open(e.StoryID, day)
		if err != nil {
			return err
		}
		a.segments[e.StoryID] = seg
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := seg.w.Write(b); err != nil {
		return err
	}
	if err := seg.w.WriteByte('\n'); err != nil {
		return err
	}
	return seg.w.Flush()
}

func (a *Archive) open(storyID, day string) (*segment, error) {
	path := a.path(storyID, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{day: day, f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (a *Archive) path(storyID, day string) string {
	return filepath.Join(a.dir, storyID, day+".jsonl.zst")
}

// Files lists a story's archive files in date order.
func (a *Archive) Files(storyID string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, storyID, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Close flushes and closes every open file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for id, seg := range a.segments {
		errs = append(errs, seg.close())
		delete(a.segments, id)
	}
	return errors.Join(errs...)
}

func (s *segment) close() error {
	var err error
	if s.w != nil {
		err = s.w.Flush()
	}
	if s.enc != nil {
		err = errors.Join(err, s.enc.Close())
	}
	if s.f != nil {
		err = errors.Join(err, s.f.Close())
	}
	return err
}

// ReadArchive decodes every entry in one archive file.
func ReadArchive(path string) ([]models.TranscriptEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return decode(dec)
}

func decode(r io.Reader) ([]models.TranscriptEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	var out []models.TranscriptEntry
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e models.TranscriptEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode transcript line: %w", err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
