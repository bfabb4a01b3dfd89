package turn

import (
	"context"
	"fmt"
	"sync"
)

// StoryLocks serializes turns per story. Each story gets a one-slot channel
// used as a mutex so waiting can be cancelled through a context.
type StoryLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewStoryLocks returns an empty lock table.
func NewStoryLocks() *StoryLocks {
	return &StoryLocks{slots: make(map[string]chan struct{})}
}

func (l *StoryLocks) slot(storyID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[storyID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[storyID] = ch
	}
	return ch
}

// Acquire blocks until the story is free or ctx is done. The returned
// function releases the story and is safe to call more than once.
func (l *StoryLocks) Acquire(ctx context.Context, storyID string) (func(), error) {
	ch := l.slot(storyID)
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire story %s: %w", storyID, ctx.Err())
	case ch <- struct{}{}:
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
