package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. All operations take the store lock, so an
// append is a serialized read-modify-write and concurrent appends to one
// conversation land as whole turns in arrival order.
type MemStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	order         []string // creation order, for stable listings
	now           func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

func (s *MemStore) Create(_ context.Context, ownerKey, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.conversations[id] = &Conversation{
		ID:        id,
		OwnerKey:  ownerKey,
		Title:     title,
		CreatedAt: s.now(),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemStore) AppendTurn(_ context.Context, id string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	// Transcript timestamps never go backwards, even if the caller's clock does.
	if n := len(conv.Turns); n > 0 && turn.CreatedAt.Before(conv.Turns[n-1].CreatedAt) {
		turn.CreatedAt = conv.Turns[n-1].CreatedAt
	}

	conv.Turns = append(conv.Turns, turn)
	return nil
}

// Get returns a deep copy so callers can read the transcript without holding
// the store lock.
func (s *MemStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	out := *conv
	out.Turns = make([]Turn, len(conv.Turns))
	copy(out.Turns, conv.Turns)
	return &out, nil
}

// List returns the owner's conversations, most recently created first.
func (s *MemStore) List(_ context.Context, ownerKey string) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Summary
	for i := len(s.order) - 1; i >= 0; i-- {
		conv, ok := s.conversations[s.order[i]]
		if !ok || conv.OwnerKey != ownerKey {
			continue
		}
		out = append(out, Summary{ID: conv.ID, Title: conv.Title})
	}
	return out, nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.conversations, id)
	return nil
}

// MemProfileStore is an in-memory ProfileStore.
type MemProfileStore struct {
	mu       sync.Mutex
	symptoms map[string]map[string][]time.Time // ownerKey -> symptomKey -> events
}

// NewMemProfileStore creates an empty in-memory profile store.
func NewMemProfileStore() *MemProfileStore {
	return &MemProfileStore{symptoms: make(map[string]map[string][]time.Time)}
}

func (s *MemProfileStore) RecordSymptom(_ context.Context, ownerKey, symptomKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := s.symptoms[ownerKey]
	if owner == nil {
		owner = make(map[string][]time.Time)
		s.symptoms[ownerKey] = owner
	}
	owner[symptomKey] = append(owner[symptomKey], at)
	return nil
}

// SymptomHistory returns each symptom's events at or after since. Symptoms
// with no events in the window are omitted entirely.
func (s *MemProfileStore) SymptomHistory(_ context.Context, ownerKey string, since time.Time) (map[string][]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]time.Time)
	for symptom, events := range s.symptoms[ownerKey] {
		var kept []time.Time
		for _, at := range events {
			if !at.Before(since) {
				kept = append(kept, at)
			}
		}
		if len(kept) > 0 {
			out[symptom] = kept
		}
	}
	return out, nil
}
