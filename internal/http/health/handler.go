package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
)

const checkTimeout = 2 * time.Second

// Response is the payload for the health endpoint.
type Response struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Handler returns the health endpoint. With a nil check it always reports
// healthy; otherwise a failing check yields 503.
func Handler(check CheckFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := Response{Status: "healthy"}
		status := http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				applog.LogWarn(r.Context(), "health check failed", zap.Error(err))
				resp = Response{Status: "unhealthy", Storage: "unreachable"}
				status = http.StatusServiceUnavailable
			} else {
				resp.Storage = "ok"
			}
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
