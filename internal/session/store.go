// Package session keeps per-user conversation and download state in memory.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/estimabot/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Policy bounds how long and how many users are remembered.
// A zero TTL keeps entries until they are pushed out by MaxUsers;
// a zero MaxUsers leaves the number of users unbounded.
type Policy struct {
	TTL      time.Duration
	MaxUsers int
}

// Store holds the conversation history and the pending download choice of
// every user. Entries expire TTL after the user's last write.
type Store struct {
	mu            sync.Mutex
	conversations *expirable.LRU[int64, []domain.Turn]
	pending       *expirable.LRU[int64, domain.Pending]
	now           func() time.Time
}

// New creates a store with the given eviction policy.
func New(policy Policy) *Store {
	size := policy.MaxUsers
	if size < 0 {
		size = 0
	}
	return &Store{
		conversations: expirable.NewLRU[int64, []domain.Turn](size, func(userID int64, turns []domain.Turn) {
			slog.Debug("Conversation evicted", "user_id", userID, "turns", len(turns))
		}, policy.TTL),
		pending: expirable.NewLRU[int64, domain.Pending](size, nil, policy.TTL),
		now:     time.Now,
	}
}

// Append adds a turn to the end of the user's conversation.
func (s *Store) Append(userID int64, turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _ := s.conversations.Get(userID)
	turns = append(turns[:len(turns):len(turns)], turn)
	s.conversations.Add(userID, turns)
}

// History returns a copy of the user's conversation in order.
func (s *Store) History(userID int64) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.conversations.Get(userID)
	if !ok {
		return nil
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Reset forgets the user's conversation.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations.Remove(userID)
}

// Len returns the number of users with a live conversation.
func (s *Store) Len() int {
	return s.conversations.Len()
}

// SetPending replaces the user's pending download choice.
func (s *Store) SetPending(userID int64, p domain.Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now()
	s.pending.Add(userID, p)
}

// Pending returns the user's pending download choice without consuming it.
func (s *Store) Pending(userID int64) (domain.Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Get(userID)
}

// UpdatePending applies fn to the existing pending choice.
// It returns false when the user has nothing pending.
func (s *Store) UpdatePending(userID int64, fn func(*domain.Pending)) (domain.Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending.Get(userID)
	if !ok {
		return domain.Pending{}, false
	}
	fn(&p)
	p.UpdatedAt = s.now()
	s.pending.Add(userID, p)
	return p, true
}

// ClearPending drops the user's pending download choice.
func (s *Store) ClearPending(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Remove(userID)
}

// SetDownloadState records the state of the user's pending download.
// It returns false when the user has nothing pending.
func (s *Store) SetDownloadState(userID int64, state domain.DownloadState) bool {
	_, ok := s.UpdatePending(userID, func(p *domain.Pending) { p.State = state })
	return ok
}
