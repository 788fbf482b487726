package dedup

import (
	"sort"
	"sync"
)

// ConversationKind distinguishes where a conversation lives. Direct
// chats never auto-activate; groups and broadcast channels do when the
// bot is promoted to admin.
type ConversationKind string

const (
	ConversationDirect    ConversationKind = "direct"
	ConversationGroup     ConversationKind = "group"
	ConversationBroadcast ConversationKind = "broadcast"
)

// Privilege is the bot's standing in a conversation as reported by the
// platform.
type Privilege int

const (
	PrivilegeNone Privilege = iota
	PrivilegeMember
	PrivilegeAdmin
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeAdmin:
		return "admin"
	case PrivilegeMember:
		return "member"
	default:
		return "none"
	}
}

// activation tracks one monitored conversation. failures counts delete
// failures since activation; a successful delete never resets it.
type activation struct {
	auto     bool
	failures int
}

// Registry tracks which conversations are monitored. Absence means
// inactive: deactivating removes the entry and with it the failure
// count and the auto flag, so a conversation always starts fresh.
type Registry struct {
	mu        sync.RWMutex
	threshold int
	entries   map[int64]*activation
}

// NewRegistry creates a registry that deactivates a conversation once
// its failure count exceeds threshold.
func NewRegistry(threshold int) *Registry {
	return &Registry{
		threshold: threshold,
		entries:   make(map[int64]*activation),
	}
}

// Activate turns monitoring on at a user's request. Re-activating an
// already monitored conversation resets its failure count and clears
// the auto flag, since a command now owns the activation.
func (r *Registry) Activate(conversation int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conversation] = &activation{}
}

// AutoActivate turns monitoring on as a result of a privilege change
// and reports whether the conversation was newly activated. An already
// monitored conversation keeps its state.
func (r *Registry) AutoActivate(conversation int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[conversation]; ok {
		return false
	}
	r.entries[conversation] = &activation{auto: true}
	return true
}

// Deactivate turns monitoring off. Idempotent; reports whether the
// conversation was monitored.
func (r *Registry) Deactivate(conversation int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[conversation]
	delete(r.entries, conversation)
	return ok
}

// IsActive reports whether the conversation is monitored.
func (r *Registry) IsActive(conversation int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[conversation]
	return ok
}

// IsAutoActivated reports whether the conversation is monitored because
// of a privilege change rather than a command.
func (r *Registry) IsAutoActivated(conversation int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.entries[conversation]
	return ok && st.auto
}

// RecordFailure counts one delete failure against a monitored
// conversation. Once the count exceeds the threshold the conversation
// is deactivated and RecordFailure reports true. Failures against
// unmonitored conversations are dropped so that delete results arriving
// after a deactivation cannot resurrect state.
func (r *Registry) RecordFailure(conversation int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.entries[conversation]
	if !ok {
		return false
	}
	st.failures++
	if st.failures > r.threshold {
		delete(r.entries, conversation)
		return true
	}
	return false
}

// Failures returns the failure count accumulated by a conversation.
func (r *Registry) Failures(conversation int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.entries[conversation]; ok {
		return st.failures
	}
	return 0
}

// ActiveCount returns the number of monitored conversations.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// AutoActivatedCount returns how many monitored conversations were
// activated by privilege changes.
func (r *Registry) AutoActivatedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, st := range r.entries {
		if st.auto {
			n++
		}
	}
	return n
}

// ActiveConversations returns the monitored conversation ids in
// ascending order.
func (r *Registry) ActiveConversations() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
