package bus

import (
	"context"
	"log"
	"sync"
)

// MessageBus connects transports to the gateway. Transports push into
// Inbound and Membership; the gateway pushes into Outbound, which
// DispatchOutbound routes back to the subscribed transport.
type MessageBus struct {
	Inbound    chan InboundMessage
	Membership chan MembershipEvent
	Outbound   chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Membership:  make(chan MembershipEvent, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the handler for one channel name,
// replacing any previous handler.
func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	b.subscribers[channel] = fn
	b.mu.Unlock()
}

// DispatchOutbound drains Outbound until ctx is done, invoking the
// subscriber registered for each message's channel.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if fn == nil {
				log.Printf("[bus] no subscriber for channel %s, dropping message", msg.Channel)
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return
		}
	}
}
