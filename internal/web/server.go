package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/tidelinehq/dupguard/internal/config"
	"github.com/tidelinehq/dupguard/internal/dedup"
)

// Server exposes the bot's operating state over HTTP for uptime checks
// and dashboards.
type Server struct {
	svc    *dedup.Service
	host   string
	port   int
	server *http.Server
}

func NewServer(cfg config.WebConfig, svc *dedup.Service) *Server {
	return &Server{
		svc:  svc,
		host: cfg.Host,
		port: cfg.Port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	go func() {
		log.Printf("[web] listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[web] server error: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	log.Printf("[web] stopped")
	return nil
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "dupguard is running")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.SnapshotStats()

	types := make(map[string]int64)
	for kind, count := range snap.PerKind {
		if count > 0 {
			types[string(kind)] = count
		}
	}
	deleteResults := make(map[string]int64)
	for result, count := range snap.DeleteResults {
		deleteResults[string(result)] = count
	}

	writeJSON(w, map[string]any{
		"status":       "running",
		"timestamp":    time.Now().Format(time.RFC3339),
		"uptime_hours": math.Round(snap.Uptime().Hours()*10) / 10,
		"performance": map[string]any{
			"messages_processed":   snap.Processed,
			"duplicates_deleted":   snap.Duplicates,
			"detection_efficiency": fmt.Sprintf("%.1f%%", snap.Efficiency()),
			"avg_response_time":    fmt.Sprintf("%.2fms", snap.ResponseTimeMs),
		},
		"content_analysis": map[string]any{
			"types_processed":           types,
			"forwarded_duplicates_rate": fmt.Sprintf("%.1f%%", snap.ForwardedRate()),
			"forwarded_vs_original": map[string]int64{
				"forwarded": snap.ForwardedDuplicates,
				"original":  snap.OriginalDuplicates,
			},
		},
		"chat_management": map[string]any{
			"active_chats":         snap.ActiveConversations,
			"auto_activated_chats": snap.AutoActivated,
		},
		"memory_stats": map[string]any{
			"total_entries":     snap.TotalEntries,
			"largest_chat_size": snap.LargestConversation,
			"retention_policy":  snap.RetentionLabel(),
			"per_chat_limit":    snap.Capacity,
		},
		"delete_results": deleteResults,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[web] encode response: %v", err)
	}
}
