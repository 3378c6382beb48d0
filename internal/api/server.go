package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"horizonmask/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, horizonH *HorizonHandler, cacheH *CacheHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Horizon Endpoint
	mux.Handle("GET /api/horizon", horizonH)

	// 4. Cache Endpoint
	mux.Handle("GET /api/cache/nearby", cacheH)

	// 5. Stats Endpoint
	if stats != nil {
		mux.Handle("GET /api/stats", stats)
	}

	// 6. Shutdown Endpoint
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Call shutdown in a goroutine to allow response to flush
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// a cold horizon run scans the full hemisphere
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
