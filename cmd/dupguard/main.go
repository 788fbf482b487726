package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidelinehq/dupguard/internal/config"
	"github.com/tidelinehq/dupguard/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "dupguard",
	Short: "dupguard - Telegram duplicate message cleaner",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (polling + retention sweep + web server)",
	RunE:  runRun,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show config and live stats of a running instance",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not set. Run 'dupguard onboard' and edit %s, or set BOT_TOKEN", config.ConfigPath())
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your bot token\n", cfgPath)
	fmt.Println("  2. Or set the BOT_TOKEN environment variable")
	fmt.Println("  3. Run 'dupguard run' to start the bot")
	fmt.Println("  4. Promote the bot to admin in a group, or send /startbot")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if cfg.Telegram.Token != "" && len(cfg.Telegram.Token) > 8 {
		masked := cfg.Telegram.Token[:4] + "..." + cfg.Telegram.Token[len(cfg.Telegram.Token)-4:]
		fmt.Printf("Token: %s\n", masked)
	} else if cfg.Telegram.Token != "" {
		fmt.Println("Token: set")
	} else {
		fmt.Println("Token: not set")
	}

	// The bind address is not dialable when listening on all interfaces
	host := cfg.Web.Host
	if host == config.DefaultHost {
		host = "127.0.0.1"
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, cfg.Web.Port)
	fmt.Printf("Web: %s\n", baseURL)

	payload, err := fetchStats(baseURL)
	if err != nil {
		fmt.Printf("\nBot not reachable (%v)\n", err)
		fmt.Println("Start it with 'dupguard run'")
		return nil
	}

	renderStats(os.Stdout, payload)
	return nil
}

// statsPayload mirrors the document served at /stats.
type statsPayload struct {
	Status      string  `json:"status"`
	UptimeHours float64 `json:"uptime_hours"`
	Performance struct {
		MessagesProcessed   int64  `json:"messages_processed"`
		DuplicatesDeleted   int64  `json:"duplicates_deleted"`
		DetectionEfficiency string `json:"detection_efficiency"`
		AvgResponseTime     string `json:"avg_response_time"`
	} `json:"performance"`
	ChatManagement struct {
		ActiveChats        int `json:"active_chats"`
		AutoActivatedChats int `json:"auto_activated_chats"`
	} `json:"chat_management"`
	MemoryStats struct {
		TotalEntries    int    `json:"total_entries"`
		LargestChatSize int    `json:"largest_chat_size"`
		RetentionPolicy string `json:"retention_policy"`
		PerChatLimit    int    `json:"per_chat_limit"`
	} `json:"memory_stats"`
}

func fetchStats(baseURL string) (*statsPayload, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &payload, nil
}

func renderStats(w io.Writer, p *statsPayload) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== dupguard status ==="))
	fmt.Fprintf(w, "%s %s, up %.1f hours\n\n", green("●"), p.Status, p.UptimeHours)

	fmt.Fprintf(w, "%s\n", yellow("Performance:"))
	fmt.Fprintf(w, "  Processed: %s messages\n", humanize.Comma(p.Performance.MessagesProcessed))
	fmt.Fprintf(w, "  Deleted:   %s duplicates (%s of traffic)\n",
		humanize.Comma(p.Performance.DuplicatesDeleted), p.Performance.DetectionEfficiency)
	fmt.Fprintf(w, "  Response:  %s\n\n", p.Performance.AvgResponseTime)

	fmt.Fprintf(w, "%s\n", yellow("Chats:"))
	fmt.Fprintf(w, "  Active:         %d\n", p.ChatManagement.ActiveChats)
	fmt.Fprintf(w, "  Auto-activated: %d\n\n", p.ChatManagement.AutoActivatedChats)

	fmt.Fprintf(w, "%s\n", yellow("Memory:"))
	fmt.Fprintf(w, "  Entries:   %s (largest chat %s, limit %s)\n",
		humanize.Comma(int64(p.MemoryStats.TotalEntries)),
		humanize.Comma(int64(p.MemoryStats.LargestChatSize)),
		humanize.Comma(int64(p.MemoryStats.PerChatLimit)))
	fmt.Fprintf(w, "  Retention: %s\n", p.MemoryStats.RetentionPolicy)
}
