package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidelinehq/dupguard/internal/bus"
	"github.com/tidelinehq/dupguard/internal/channel"
	"github.com/tidelinehq/dupguard/internal/config"
	"github.com/tidelinehq/dupguard/internal/cron"
	"github.com/tidelinehq/dupguard/internal/dedup"
	"github.com/tidelinehq/dupguard/internal/web"
)

// Transport is the chat surface the gateway drives (allows mocking in tests)
type Transport interface {
	channel.Channel
	SendText(chatID int64, text string) error
	DeleteMessage(chatID int64, messageID int) error
}

// Options for creating a Gateway
type Options struct {
	Transport  Transport      // nil means the Telegram channel from config
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	svc        *dedup.Service
	transport  Transport
	cron       *cron.Service
	web        *web.Server
	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	// Message bus
	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	// Deduplication service
	retention, err := cfg.Dedup.RetentionDuration()
	if err != nil {
		return nil, fmt.Errorf("parse retention: %w", err)
	}
	g.svc = dedup.New(dedup.Options{
		Capacity:         cfg.Dedup.PerConversationLimit,
		Retention:        retention,
		FailureThreshold: cfg.Dedup.FailureThreshold,
	})

	// Transport
	if opts.Transport != nil {
		g.transport = opts.Transport
	} else {
		tg, err := channel.NewTelegramChannel(cfg.Telegram, g.bus)
		if err != nil {
			return nil, fmt.Errorf("create telegram channel: %w", err)
		}
		g.transport = tg
	}
	g.bus.SubscribeOutbound(g.transport.Name(), g.executeOutbound)

	// Cron
	interval, err := cfg.Dedup.SweepIntervalDuration()
	if err != nil {
		return nil, fmt.Errorf("parse sweep interval: %w", err)
	}
	g.cron = cron.NewService()
	if err := g.cron.AddJob("dedup-sweep", fmt.Sprintf("@every %s", interval), func() {
		g.svc.RunSweep()
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	// Web server
	if cfg.Web.Enabled {
		g.web = web.NewServer(cfg.Web, g.svc)
	}

	// Signal channel for testing
	g.signalChan = opts.SignalChan

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.transport.Start(ctx); err != nil {
		return fmt.Errorf("start %s channel: %w", g.transport.Name(), err)
	}

	g.cron.Start(ctx)

	if g.web != nil {
		if err := g.web.Start(); err != nil {
			return fmt.Errorf("start web server: %w", err)
		}
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running, watching %s for duplicates", g.transport.Name())

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			if msg.Command != "" {
				g.handleCommand(msg)
			} else {
				g.handleContent(msg)
			}
		case ev := <-g.bus.Membership:
			g.handleMembership(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleContent(msg bus.InboundMessage) {
	action := g.svc.Process(msg.ChatID, msg.MessageID, msg.Descriptor)
	if action.Kind != dedup.ActionDeleteDuplicate {
		return
	}

	kind := string(action.Content)
	if kind == "" {
		kind = "unknown"
	}
	log.Printf("[gateway] duplicate %s message %d in chat %d, original %d", kind, msg.MessageID, msg.ChatID, action.Origin)

	g.bus.Outbound <- bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Op:        bus.OpDeleteMessage,
		MessageID: msg.MessageID,
	}
}

func (g *Gateway) handleMembership(ev bus.MembershipEvent) {
	switch g.svc.HandleMembershipChange(ev.ChatID, ev.ChatKind, ev.From, ev.To) {
	case dedup.OutcomeAutoActivated:
		log.Printf("[gateway] promoted to admin in %q (%d), deduplication on", ev.ChatTitle, ev.ChatID)
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: ev.Channel,
			ChatID:  ev.ChatID,
			Op:      bus.OpSendText,
			Text:    autoActivatedNotice,
		}
	case dedup.OutcomeRemoved:
		log.Printf("[gateway] removed from %q (%d), state dropped", ev.ChatTitle, ev.ChatID)
	}
}

// executeOutbound runs one queued operation against the transport. Delete
// outcomes feed back into the service so it can track permission problems.
func (g *Gateway) executeOutbound(msg bus.OutboundMessage) {
	switch msg.Op {
	case bus.OpDeleteMessage:
		err := g.transport.DeleteMessage(msg.ChatID, msg.MessageID)
		if err != nil {
			log.Printf("[gateway] delete message %d in chat %d failed: %v", msg.MessageID, msg.ChatID, err)
		}
		g.svc.ReportDeleteResult(msg.ChatID, channel.ClassifyDeleteError(err))
	case bus.OpSendText:
		if err := g.transport.SendText(msg.ChatID, msg.Text); err != nil {
			log.Printf("[gateway] send to chat %d failed: %v", msg.ChatID, err)
		}
	}
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	if g.web != nil {
		if err := g.web.Stop(); err != nil {
			log.Printf("[gateway] stop web server warning: %v", err)
		}
	}
	if err := g.transport.Stop(); err != nil {
		log.Printf("[gateway] stop %s channel warning: %v", g.transport.Name(), err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}
