package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"thumbpress/internal/config"
	"thumbpress/internal/logging"
)

// healthServer exposes liveness and counters over localhost HTTP.
type healthServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newHealthServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *healthServer {
	bind := strings.TrimSpace(cfg.Paths.HealthBind)
	if bind == "" {
		return nil
	}

	srv := &healthServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "health"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/stats", srv.handleStats)
	mux.HandleFunc("/api/keys", srv.handleKeys)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *healthServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("health listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("health server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *healthServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// Addr returns the bound address, or an empty string before start.
func (s *healthServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *healthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"running": s.daemon.Running(),
	})
}

func (s *healthServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats := s.daemon.core.Stats()
	writeJSON(w, map[string]any{
		"total_users":          stats.TotalUsers,
		"total_videos":         stats.TotalVideos,
		"total_keys_generated": stats.TotalKeysGenerated,
	})
}

// handleKeys serves the admin key surface for the local CLI. The server
// binds to loopback; anyone who can reach it already owns the host, so the
// endpoint runs with owner privileges.
func (s *healthServer) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		keys := s.daemon.core.ListKeys()
		payload := make([]keyView, 0, len(keys))
		for _, key := range keys {
			view := keyView{
				Key:             key.Key,
				DurationSeconds: key.DurationSeconds,
				CreatedAt:       key.CreatedAt.Format(time.RFC3339),
				Used:            key.Used,
			}
			if key.UsedBy != nil {
				view.UsedBy = *key.UsedBy
			}
			if key.UsedAt != nil {
				view.UsedAt = key.UsedAt.Format(time.RFC3339)
			}
			payload = append(payload, view)
		}
		writeJSON(w, payload)
	case http.MethodPost:
		var req struct {
			Duration string `json:"duration"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "decode request", http.StatusBadRequest)
			return
		}
		key, err := s.daemon.core.GenerateKeyAsOwner(r.Context(), req.Duration)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"key": key})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// keyView is the wire shape for key listings.
type keyView struct {
	Key             string `json:"key"`
	DurationSeconds int64  `json:"duration_seconds"`
	CreatedAt       string `json:"created_at"`
	Used            bool   `json:"used"`
	UsedBy          int64  `json:"used_by,omitempty"`
	UsedAt          string `json:"used_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
	}
}
