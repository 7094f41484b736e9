// Package httpapi exposes the operational HTTP surface: liveness and
// readiness probes, build info, and the metrics scrape endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"paperbase.org/internal/obs"
)

// ReadyProbe reports whether a dependency can serve traffic.
type ReadyProbe func(ctx context.Context) error

// API serves the ops endpoints.
type API struct {
	version string
	commit  string
	probes  map[string]ReadyProbe
}

// New constructs the ops API.
func New(version, commit string) *API {
	return &API{
		version: version,
		commit:  commit,
		probes:  make(map[string]ReadyProbe),
	}
}

// AddReadyProbe registers a named readiness dependency.
func (a *API) AddReadyProbe(name string, probe ReadyProbe) {
	a.probes[name] = probe
}

// Handler returns the instrumented ops mux.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.healthz)
	mux.HandleFunc("/readyz", a.readyz)
	mux.HandleFunc("/info", a.info)
	mux.Handle("/metrics", obs.Handler())
	return obs.Instrument(mux)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(a.probes))
	for name, probe := range a.probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": a.version,
		"commit":  a.commit,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		obs.Error("write response failed", err, nil)
	}
}
