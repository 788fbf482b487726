package bus

import (
	"github.com/tidelinehq/dupguard/internal/dedup"
)

// InboundMessage is one message observed by a transport. Command is set
// when the message addressed the bot directly; otherwise Descriptor
// carries the content to run through detection.
type InboundMessage struct {
	Channel   string
	ChatID    int64
	ChatKind  dedup.ConversationKind
	ChatTitle string
	MessageID int

	Command    string
	Descriptor dedup.Descriptor
}

// MembershipEvent reports the bot's own status changing in a chat.
type MembershipEvent struct {
	Channel   string
	ChatID    int64
	ChatKind  dedup.ConversationKind
	ChatTitle string

	From dedup.Privilege
	To   dedup.Privilege
}

// OutboundOp selects what a transport should do with an OutboundMessage.
type OutboundOp int

const (
	OpSendText OutboundOp = iota
	OpDeleteMessage
)

type OutboundMessage struct {
	Channel string
	ChatID  int64
	Op      OutboundOp

	// MessageID is the target of OpDeleteMessage.
	MessageID int

	// Text is the body of OpSendText.
	Text string
}
