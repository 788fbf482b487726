package channel

import (
	"context"

	"github.com/tidelinehq/dupguard/internal/bus"
)

// Channel is a messaging transport wired to the bus.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type BaseChannel struct {
	name string
	bus  *bus.MessageBus
}

func NewBaseChannel(name string, b *bus.MessageBus) BaseChannel {
	return BaseChannel{name: name, bus: b}
}

func (c BaseChannel) Name() string {
	return c.name
}
