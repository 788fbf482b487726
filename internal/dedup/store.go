package dedup

import (
	"fmt"
	"sync"
	"time"
)

// Record is what the store keeps per fingerprint: enough to point back
// at the first sighting and to drive retention.
type Record struct {
	LastSeen  time.Time
	MessageID int
	Kind      ContentKind
	Forwarded bool
	AuthorID  int64
	Size      int64

	seq uint64
}

// Store holds per-conversation fingerprint records behind one lock.
// Conversations are fully isolated: lookup, eviction and clearing never
// cross conversation boundaries.
type Store struct {
	mu            sync.RWMutex
	conversations map[int64]map[Fingerprint]*Record
	capacity      int
	ttl           time.Duration
	seq           uint64
}

// NewStore creates a store keeping at most capacity records per
// conversation. A ttl of zero disables age expiry; Sweep is then a
// no-op.
func NewStore(capacity int, ttl time.Duration) *Store {
	return &Store{
		conversations: make(map[int64]map[Fingerprint]*Record),
		capacity:      capacity,
		ttl:           ttl,
	}
}

// Lookup returns a copy of the record stored under fp, if any.
func (s *Store) Lookup(conversation int64, fp Fingerprint) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.conversations[conversation][fp]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Insert adds a record under a fingerprint that must not be present.
// Callers are required to Lookup first and treat hits as duplicates;
// inserting over an existing fingerprint is a bug and panics. Returns
// how many records were evicted to keep the conversation at capacity.
func (s *Store) Insert(conversation int64, fp Fingerprint, rec Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[conversation]
	if entries == nil {
		entries = make(map[Fingerprint]*Record)
		s.conversations[conversation] = entries
	}
	if _, exists := entries[fp]; exists {
		panic(fmt.Sprintf("dedup: insert of existing fingerprint %s in conversation %d", fp, conversation))
	}

	s.seq++
	rec.seq = s.seq
	entries[fp] = &rec

	evicted := 0
	for len(entries) > s.capacity {
		evictOldest(entries)
		evicted++
	}
	return evicted
}

// evictOldest removes the entry with the earliest last sighting,
// breaking timestamp ties by insertion order. Must be called with the
// store lock held.
func evictOldest(entries map[Fingerprint]*Record) {
	var victim Fingerprint
	var oldest *Record
	for fp, rec := range entries {
		if oldest == nil || rec.LastSeen.Before(oldest.LastSeen) ||
			(rec.LastSeen.Equal(oldest.LastSeen) && rec.seq < oldest.seq) {
			victim, oldest = fp, rec
		}
	}
	if oldest != nil {
		delete(entries, victim)
	}
}

// Touch refreshes the last-seen timestamp of an existing record,
// leaving every other field alone. It reports false when the record is
// gone, which happens when a sweep or an eviction won a race with the
// caller.
func (s *Store) Touch(conversation int64, fp Fingerprint, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[conversation][fp]
	if !ok {
		return false
	}
	rec.LastSeen = now
	return true
}

// Clear drops every record of one conversation and returns how many
// were removed.
func (s *Store) Clear(conversation int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.conversations[conversation])
	delete(s.conversations, conversation)
	return n
}

// Size returns the number of records held for a conversation.
func (s *Store) Size(conversation int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[conversation])
}

// Totals returns the record count across all conversations and the
// size of the largest one.
func (s *Store) Totals() (entries, largest int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.conversations {
		entries += len(m)
		if len(m) > largest {
			largest = len(m)
		}
	}
	return entries, largest
}

// Sweep removes every record whose last sighting is older than the
// retention window and drops conversations that end up empty. With
// retention disabled it does nothing. The whole pass runs under the
// store lock, so readers never observe a half-swept state.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	removed := 0
	for conversation, entries := range s.conversations {
		for fp, rec := range entries {
			if rec.LastSeen.Before(cutoff) {
				delete(entries, fp)
				removed++
			}
		}
		if len(entries) == 0 {
			delete(s.conversations, conversation)
		}
	}
	return removed
}

// Capacity returns the per-conversation record limit.
func (s *Store) Capacity() int { return s.capacity }

// TTL returns the retention window, zero meaning records never expire.
func (s *Store) TTL() time.Duration { return s.ttl }
