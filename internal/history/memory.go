package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	entries      map[string][]Entry
	systemPrompt string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]Entry),
	}
}

func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.entries[entry.ChannelID] = append(s.entries[entry.ChannelID], entry)
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, channelID string, limit int, maxAge time.Duration) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threshold := time.Now().UTC().Add(-maxAge)

	// Walk newest to oldest so the count limit keeps the most recent
	// entries, then reverse back to chronological order.
	all := s.entries[channelID]
	var recent []Entry
	for i := len(all) - 1; i >= 0 && len(recent) < limit; i-- {
		e := all[i]
		if !e.Active || e.Timestamp.Before(threshold) {
			continue
		}
		recent = append(recent, e)
	}

	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.entries[channelID]
	affected := false
	for i := range entries {
		if entries[i].Active {
			entries[i].Active = false
			affected = true
		}
	}
	return affected, nil
}

func (s *MemoryStore) SystemPrompt(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt, nil
}

// SetSystemPrompt replaces the configured prompt. The SQL store reads the
// latest configuration row instead; this is the in-memory equivalent.
func (s *MemoryStore) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
}

func (s *MemoryStore) Close() error {
	return nil
}
