// Package statusapi exposes a minimal read-only HTTP surface for inspecting
// running cameras: current state, subscriber counts, and the decoded
// configuration with passwords blanked (SPEC_FULL.md §10.6). Grounded on the
// teacher's pkg/api.Server (timeouts, CORS/logging middleware shape),
// generalized from a Cloudflare session proxy to a registry-backed
// status surface.
package statusapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gtfodev/neolink/pkg/config"
	"github.com/gtfodev/neolink/pkg/registry"
)

// Server serves /api/cameras and /api/config over plain HTTP.
type Server struct {
	reg        *registry.Registry
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
}

// CameraInfo is one camera's status snapshot.
type CameraInfo struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Subscribers int    `json:"subscribers"`
}

// NewServer builds a status API bound to a live registry and the
// configuration it was started from.
func NewServer(reg *registry.Registry, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{reg: reg, cfg: cfg, logger: logger}
}

// Start serves the API at addr until ctx is cancelled, returning once the
// listener has either failed to bind or been asked to shut down.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cameras", s.handleCameras)
	mux.HandleFunc("/api/config", s.handleConfig)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withCORS(s.withLogging(mux)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.logger != nil {
		s.logger.Info("starting status API", "address", addr)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	supervisors := s.reg.List()
	infos := make([]CameraInfo, 0, len(supervisors))
	for name, sup := range supervisors {
		infos = append(infos, CameraInfo{
			Name:        name,
			State:       sup.State().String(),
			Subscribers: sup.Subscribers(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil && s.logger != nil {
		s.logger.Error("failed to encode cameras response", "error", err)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sanitized := *s.cfg
	if s.cfg.MQTT != nil {
		mqtt := *s.cfg.MQTT
		mqtt.Password = ""
		sanitized.MQTT = &mqtt
	}
	sanitized.Cameras = append([]config.Camera(nil), s.cfg.Cameras...)
	for i := range sanitized.Cameras {
		sanitized.Cameras[i].Password = ""
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sanitized); err != nil && s.logger != nil {
		s.logger.Error("failed to encode config response", "error", err)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if s.logger != nil {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds())
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
