package dedup

import (
	"log"
	"time"
)

const (
	// DefaultCapacity bounds how many fingerprints one conversation may
	// hold before the oldest are evicted.
	DefaultCapacity = 10000

	// DefaultFailureThreshold is how many delete failures a conversation
	// absorbs before it is deactivated. Deactivation happens on the
	// failure after the threshold.
	DefaultFailureThreshold = 10
)

// ActionKind tells the caller what to do with a processed message.
type ActionKind int

const (
	// ActionIgnore means the message needs nothing from the caller.
	ActionIgnore ActionKind = iota

	// ActionStoreNew means the content was recorded as first-seen.
	ActionStoreNew

	// ActionDeleteDuplicate means the message repeats earlier content
	// and should be deleted. Origin carries the first sighting.
	ActionDeleteDuplicate
)

// Action is the outcome of processing one message.
type Action struct {
	Kind    ActionKind
	Content ContentKind

	// Origin is the message id of the first sighting. Only set for
	// ActionDeleteDuplicate.
	Origin int
}

// DeleteResult classifies the outcome of a delete request against the
// messaging platform.
type DeleteResult string

const (
	DeleteOK           DeleteResult = "ok"
	DeleteRateLimited  DeleteResult = "rate_limited"
	DeleteForbidden    DeleteResult = "forbidden"
	DeleteAlreadyGone  DeleteResult = "already_gone"
	DeleteUnknownError DeleteResult = "unknown_error"
)

// MembershipOutcome reports what a membership change triggered.
type MembershipOutcome int

const (
	// OutcomeNone means the change required no state transition.
	OutcomeNone MembershipOutcome = iota

	// OutcomeAutoActivated means the conversation was switched on
	// because the bot was promoted to admin.
	OutcomeAutoActivated

	// OutcomeRemoved means the bot left the conversation and all its
	// state was dropped.
	OutcomeRemoved
)

// Options configures a Service. Zero values fall back to defaults;
// Retention zero means entries never expire.
type Options struct {
	Capacity         int
	Retention        time.Duration
	FailureThreshold int
}

// Service ties the store, the activation registry and the counters
// together behind the operations the gateway calls.
type Service struct {
	store    *Store
	registry *Registry
	stats    *Stats
}

// New builds a Service from opts.
func New(opts Options) *Service {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Retention < 0 {
		opts.Retention = 0
	}
	return &Service{
		store:    NewStore(opts.Capacity, opts.Retention),
		registry: NewRegistry(opts.FailureThreshold),
		stats:    NewStats(),
	}
}

// Process runs one message through detection and returns the action the
// caller should take. Messages in inactive conversations, messages from
// bots and messages with no fingerprintable content are ignored.
func (s *Service) Process(conversation int64, messageID int, d Descriptor) Action {
	began := time.Now()
	s.stats.RecordProcessed()

	if !s.registry.IsActive(conversation) {
		return Action{Kind: ActionIgnore}
	}
	if d.AuthorIsBot {
		return Action{Kind: ActionIgnore}
	}

	fp, kind, ok := d.Fingerprint()
	if !ok {
		return Action{Kind: ActionIgnore}
	}
	s.stats.RecordKind(kind)

	now := time.Now()
	if rec, found := s.store.Lookup(conversation, fp); found {
		s.stats.RecordDuplicate(d.Forwarded)
		s.store.Touch(conversation, fp, now)
		s.observe(began)
		return Action{Kind: ActionDeleteDuplicate, Content: kind, Origin: rec.MessageID}
	}

	var size int64
	for _, ref := range d.Media {
		size += ref.fileSize()
	}
	evicted := s.store.Insert(conversation, fp, Record{
		LastSeen:  now,
		MessageID: messageID,
		Kind:      kind,
		Forwarded: d.Forwarded,
		AuthorID:  d.AuthorID,
		Size:      size,
	})
	if evicted > 0 {
		log.Printf("[dedup] conversation %d hit the %d entry limit, evicted %d", conversation, s.store.Capacity(), evicted)
	}
	s.refreshGauges()
	s.observe(began)
	return Action{Kind: ActionStoreNew, Content: kind}
}

// ReportDeleteResult records how a delete request ended. Failures other
// than rate limiting count toward the conversation's failure threshold;
// crossing it deactivates the conversation and drops its entries.
func (s *Service) ReportDeleteResult(conversation int64, result DeleteResult) {
	s.stats.RecordDeleteResult(result)

	switch result {
	case DeleteOK:
	case DeleteRateLimited:
		log.Printf("[dedup] delete rate limited in conversation %d, backing off", conversation)
	default:
		if s.registry.RecordFailure(conversation) {
			dropped := s.store.Clear(conversation)
			s.refreshGauges()
			log.Printf("[dedup] conversation %d deactivated after repeated delete failures, dropped %d entries", conversation, dropped)
		}
	}
}

// HandleMembershipChange reacts to the bot's own status changing in a
// conversation. Losing membership removes all state; being promoted to
// admin in a group or broadcast switches detection on.
func (s *Service) HandleMembershipChange(conversation int64, kind ConversationKind, from, to Privilege) MembershipOutcome {
	if to == PrivilegeNone {
		s.Remove(conversation)
		return OutcomeRemoved
	}
	if to == PrivilegeAdmin && from != PrivilegeAdmin && kind != ConversationDirect {
		if s.registry.AutoActivate(conversation) {
			log.Printf("[dedup] auto-activated conversation %d after admin promotion", conversation)
			return OutcomeAutoActivated
		}
	}
	return OutcomeNone
}

// Activate switches detection on for a conversation. Reactivating
// resets its failure count.
func (s *Service) Activate(conversation int64) {
	s.registry.Activate(conversation)
	log.Printf("[dedup] activated conversation %d", conversation)
}

// Deactivate switches detection off and drops the conversation's
// entries.
func (s *Service) Deactivate(conversation int64) {
	s.registry.Deactivate(conversation)
	dropped := s.store.Clear(conversation)
	s.refreshGauges()
	log.Printf("[dedup] deactivated conversation %d, dropped %d entries", conversation, dropped)
}

// Remove drops every trace of a conversation, active or not.
func (s *Service) Remove(conversation int64) {
	s.registry.Deactivate(conversation)
	s.store.Clear(conversation)
	s.refreshGauges()
}

// IsActive reports whether detection is on for a conversation.
func (s *Service) IsActive(conversation int64) bool {
	return s.registry.IsActive(conversation)
}

// RunSweep expires entries older than the retention window and returns
// how many were removed. With retention disabled it does nothing.
func (s *Service) RunSweep() int {
	if s.store.TTL() == 0 {
		log.Printf("[dedup] sweep skipped, retention is infinite")
		return 0
	}
	removed := s.store.Sweep(time.Now())
	s.refreshGauges()
	log.Printf("[dedup] sweep removed %d expired entries", removed)
	return removed
}

// SnapshotStats returns a copy of all counters plus the registry and
// store configuration.
func (s *Service) SnapshotStats() Snapshot {
	snap := s.stats.Snapshot()
	snap.ActiveConversations = s.registry.ActiveCount()
	snap.AutoActivated = s.registry.AutoActivatedCount()
	snap.Capacity = s.store.Capacity()
	snap.Retention = s.store.TTL()
	return snap
}

// ActiveConversations lists the ids with detection switched on.
func (s *Service) ActiveConversations() []int64 {
	return s.registry.ActiveConversations()
}

func (s *Service) observe(began time.Time) {
	s.stats.ObserveResponseTime(float64(time.Since(began)) / float64(time.Millisecond))
}

func (s *Service) refreshGauges() {
	entries, largest := s.store.Totals()
	s.stats.SetStoreGauges(entries, largest)
}
