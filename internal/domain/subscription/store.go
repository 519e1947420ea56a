package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/coursehub/course-herald/internal/domain/shared"
)

// Store is the in-memory subscription registry. All mutations are
// serialized by a single mutex and persisted through the Repository
// before returning, so concurrent writes can't clobber each other's
// persisted state.
type Store struct {
	mu   sync.RWMutex
	subs []Subscription
	keys map[Key]int // key -> index into subs
	repo Repository
}

// NewStore creates a store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		keys: make(map[Key]int),
		repo: repo,
	}
}

// Load populates the store from durable storage. Called once at startup.
func (s *Store) Load(ctx context.Context) error {
	subs, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = s.subs[:0]
	s.keys = make(map[Key]int, len(subs))
	for _, sub := range subs {
		if _, dup := s.keys[sub.Key()]; dup {
			continue
		}
		s.keys[sub.Key()] = len(s.subs)
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Add inserts a subscription and persists. Fails with shared.ErrAlreadyExists
// if the exact (server, channel, course) triple is present.
func (s *Store) Add(ctx context.Context, sub Subscription) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[sub.Key()]; exists {
		return Subscription{}, shared.ErrSubscriptionExists
	}

	s.keys[sub.Key()] = len(s.subs)
	s.subs = append(s.subs, sub)

	if err := s.persistLocked(ctx); err != nil {
		// Roll back the insert so memory and disk stay aligned.
		s.subs = s.subs[:len(s.subs)-1]
		delete(s.keys, sub.Key())
		return Subscription{}, err
	}
	return sub, nil
}

// Remove deletes a subscription and persists. Fails with shared.ErrNotFound
// if the triple is not present.
func (s *Store) Remove(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.keys[key]
	if !exists {
		return shared.ErrSubscriptionNotFound
	}

	removed := s.subs[idx]
	s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
	s.reindexLocked()

	if err := s.persistLocked(ctx); err != nil {
		s.subs = append(s.subs, Subscription{})
		copy(s.subs[idx+1:], s.subs[idx:])
		s.subs[idx] = removed
		s.reindexLocked()
		return err
	}
	return nil
}

// RemoveAllForServer bulk-removes every subscription for a chat server and
// persists once, not once per row. Removing zero rows is not an error.
func (s *Store) RemoveAllForServer(ctx context.Context, serverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	removed := 0
	for _, sub := range s.subs {
		if sub.ServerID == serverID {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	if removed == 0 {
		return 0, nil
	}

	s.subs = kept
	s.reindexLocked()

	if err := s.persistLocked(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// FindSubscribers returns the delivery targets of every channel subscribed
// to the course, in insertion order. Pure read, no persistence.
func (s *Store) FindSubscribers(courseID string) []Destination {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Destination
	for _, sub := range s.subs {
		if sub.CourseID == courseID {
			out = append(out, sub.Destination())
		}
	}
	return out
}

// Get returns the subscription for the exact triple, if present.
func (s *Store) Get(key Key) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.keys[key]
	if !ok {
		return Subscription{}, false
	}
	return s.subs[idx], true
}

// All returns a copy of the full subscription set.
func (s *Store) All() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// Len returns the number of subscriptions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) persistLocked(ctx context.Context) error {
	snapshot := make([]Subscription, len(s.subs))
	copy(snapshot, s.subs)
	if err := s.repo.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persist subscriptions: %w", err)
	}
	return nil
}

func (s *Store) reindexLocked() {
	s.keys = make(map[Key]int, len(s.subs))
	for i, sub := range s.subs {
		s.keys[sub.Key()] = i
	}
}
