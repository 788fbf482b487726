package gateway

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidelinehq/dupguard/internal/bus"
	"github.com/tidelinehq/dupguard/internal/dedup"
)

const (
	activatedNotice = "**Duplicate cleaner activated.** I will remove repeated messages in this chat. Use /stopbot to turn me off."

	deactivatedNotice = "**Duplicate cleaner deactivated.** Tracked messages for this chat were dropped. Re-adding me as admin reactivates automatically, or use /startbot."

	autoActivatedNotice = "**Duplicate cleaner is on.** I was promoted to admin, so I will now remove repeated messages in this chat. Use /stopbot to turn me off."
)

// handleCommand runs one command addressed to the bot. Unknown commands
// are ignored so we stay quiet in chats where another bot owns them.
func (g *Gateway) handleCommand(msg bus.InboundMessage) {
	switch msg.Command {
	case "startbot":
		log.Printf("[gateway] /startbot in chat %d", msg.ChatID)
		g.svc.Activate(msg.ChatID)
		g.reply(msg, activatedNotice)
	case "stopbot":
		log.Printf("[gateway] /stopbot in chat %d", msg.ChatID)
		g.svc.Deactivate(msg.ChatID)
		g.reply(msg, deactivatedNotice)
	case "stats":
		g.reply(msg, formatStats(g.svc.SnapshotStats()))
	}
}

func (g *Gateway) reply(msg bus.InboundMessage, text string) {
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Op:      bus.OpSendText,
		Text:    text,
	}
}

// formatStats renders a snapshot as a chat-sized report.
func formatStats(snap dedup.Snapshot) string {
	var b strings.Builder

	b.WriteString("**Duplicate cleaner stats**\n\n")
	fmt.Fprintf(&b, "Uptime: %.2f hours\n", snap.Uptime().Hours())
	fmt.Fprintf(&b, "Messages processed: %s\n", humanize.Comma(snap.Processed))
	fmt.Fprintf(&b, "Duplicates deleted: %s (%.1f%% of traffic)\n", humanize.Comma(snap.Duplicates), snap.Efficiency())
	fmt.Fprintf(&b, "Forwarded duplicates: %.1f%%\n", snap.ForwardedRate())
	fmt.Fprintf(&b, "Content types: %s\n", formatKinds(snap.PerKind))
	fmt.Fprintf(&b, "Active chats: %d (%d auto-activated)\n", snap.ActiveConversations, snap.AutoActivated)
	fmt.Fprintf(&b, "Tracked entries: %s (largest chat %s, limit %s per chat)\n",
		humanize.Comma(int64(snap.TotalEntries)),
		humanize.Comma(int64(snap.LargestConversation)),
		humanize.Comma(int64(snap.Capacity)))
	fmt.Fprintf(&b, "Retention: %s", snap.RetentionLabel())

	return b.String()
}

func formatKinds(perKind map[dedup.ContentKind]int64) string {
	if len(perKind) == 0 {
		return "none yet"
	}

	kinds := make([]string, 0, len(perKind))
	for k := range perKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, perKind[dedup.ContentKind(k)]))
	}
	return strings.Join(parts, ", ")
}
