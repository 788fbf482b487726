package dedup

import (
	"sync"
	"time"
)

// Stats aggregates the operating counters. All methods are safe for
// concurrent use; Snapshot returns a consistent copy.
type Stats struct {
	mu        sync.Mutex
	startTime time.Time

	processed  int64
	duplicates int64
	forwarded  int64
	original   int64

	perKind       map[ContentKind]int64
	deleteResults map[DeleteResult]int64

	responseTimeMs float64

	totalEntries        int
	largestConversation int
}

// NewStats starts a fresh aggregate with the uptime clock at now.
func NewStats() *Stats {
	return &Stats{
		startTime:     time.Now(),
		perKind:       make(map[ContentKind]int64),
		deleteResults: make(map[DeleteResult]int64),
	}
}

// RecordProcessed counts one observed message, whether or not anything
// came of it.
func (s *Stats) RecordProcessed() {
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
}

// RecordKind counts one message of the given content kind.
func (s *Stats) RecordKind(kind ContentKind) {
	if kind == "" {
		return
	}
	s.mu.Lock()
	s.perKind[kind]++
	s.mu.Unlock()
}

// RecordDuplicate counts one detected duplicate, split by whether the
// repeat arrived as a forward.
func (s *Stats) RecordDuplicate(forwarded bool) {
	s.mu.Lock()
	s.duplicates++
	if forwarded {
		s.forwarded++
	} else {
		s.original++
	}
	s.mu.Unlock()
}

// RecordDeleteResult counts the outcome of one delete request.
func (s *Stats) RecordDeleteResult(result DeleteResult) {
	s.mu.Lock()
	s.deleteResults[result]++
	s.mu.Unlock()
}

// ObserveResponseTime folds one processing duration in milliseconds
// into the running estimate. The estimate becomes the average of itself
// and the new sample, which weighs recent samples heavier than a true
// mean would.
func (s *Stats) ObserveResponseTime(ms float64) {
	s.mu.Lock()
	if s.responseTimeMs == 0 {
		s.responseTimeMs = ms
	} else {
		s.responseTimeMs = (s.responseTimeMs + ms) / 2
	}
	s.mu.Unlock()
}

// SetStoreGauges records the current store totals.
func (s *Stats) SetStoreGauges(totalEntries, largestConversation int) {
	s.mu.Lock()
	s.totalEntries = totalEntries
	s.largestConversation = largestConversation
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of every aggregate value. The
// registry and configuration fields are filled in by the service.
type Snapshot struct {
	StartTime time.Time

	Processed           int64
	Duplicates          int64
	ForwardedDuplicates int64
	OriginalDuplicates  int64

	PerKind       map[ContentKind]int64
	DeleteResults map[DeleteResult]int64

	ResponseTimeMs float64

	TotalEntries        int
	LargestConversation int

	ActiveConversations int
	AutoActivated       int
	Capacity            int
	Retention           time.Duration
}

// Snapshot copies the counters under the lock.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		StartTime:           s.startTime,
		Processed:           s.processed,
		Duplicates:          s.duplicates,
		ForwardedDuplicates: s.forwarded,
		OriginalDuplicates:  s.original,
		ResponseTimeMs:      s.responseTimeMs,
		TotalEntries:        s.totalEntries,
		LargestConversation: s.largestConversation,
		PerKind:             make(map[ContentKind]int64, len(s.perKind)),
		DeleteResults:       make(map[DeleteResult]int64, len(s.deleteResults)),
	}
	for k, v := range s.perKind {
		snap.PerKind[k] = v
	}
	for k, v := range s.deleteResults {
		snap.DeleteResults[k] = v
	}
	return snap
}

// Uptime returns the time elapsed since the aggregate was started.
func (sn Snapshot) Uptime() time.Duration {
	return time.Since(sn.StartTime)
}

// Efficiency returns the share of processed messages that turned out to
// be duplicates, as a percentage.
func (sn Snapshot) Efficiency() float64 {
	if sn.Processed == 0 {
		return 0
	}
	return float64(sn.Duplicates) / float64(sn.Processed) * 100
}

// ForwardedRate returns the share of duplicates that arrived as
// forwards, as a percentage.
func (sn Snapshot) ForwardedRate() float64 {
	if sn.Duplicates == 0 {
		return 0
	}
	return float64(sn.ForwardedDuplicates) / float64(sn.Duplicates) * 100
}

// RetentionLabel renders the retention window for humans.
func (sn Snapshot) RetentionLabel() string {
	if sn.Retention == 0 {
		return "infinite (never expires)"
	}
	return sn.Retention.String()
}
