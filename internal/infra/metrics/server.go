package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SourceCheck reports whether a source video is currently registered. The
// health payload carries it so operators can tell an idle instance from a
// broken one.
type SourceCheck func() bool

type healthPayload struct {
	Status          string `json:"status"`
	VideoRegistered bool   `json:"video_registered"`
}

func StartMetricsServer(ctx context.Context, port int, source SourceCheck, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(source))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listener starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	return srv
}

func healthHandler(source SourceCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthPayload{
			Status:          "ok",
			VideoRegistered: source != nil && source(),
		})
	}
}
