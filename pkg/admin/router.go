package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/execution"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// StatusSource lists registered iterators. *execution.Registry satisfies it.
type StatusSource interface {
	Snapshot() []execution.Status
}

// Publisher broadcasts a wakeup for an iterator name. The iterator wakeup transports satisfy it.
type Publisher interface {
	Publish(ctx context.Context, name string) error
}

// Maintenance reads and flips the maintenance pause.
type Maintenance interface {
	Paused() bool
	Set(ctx context.Context, paused bool) error
}

// Check is a readiness dependency such as a database healthcheck.
type Check func(ctx context.Context) error

// Deps are the parts of the daemon exposed over HTTP. Nil parts disable their routes.
type Deps struct {
	Logger      *slog.Logger
	Gatherer    prometheus.Gatherer
	Checks      []Check
	Iterators   StatusSource
	Wakeups     Publisher
	Maintenance Maintenance
}

// NewRouter builds the admin routes:
//
//	GET  /healthz                  liveness
//	GET  /readyz                   readiness, runs every Check
//	GET  /metrics                  Prometheus exposition
//	GET  /iterators                registry snapshot
//	POST /iterators/{name}/wakeup  wake LOOP iterators of name in every process
//	GET  /maintenance              current pause state
//	PUT  /maintenance              {"paused": true|false}
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthCheckHandler(log))
	r.Get("/readyz", HealthCheckHandler(log, d.Checks...))

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Iterators != nil {
		r.Get("/iterators", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, d.Iterators.Snapshot())
		})
	}

	if d.Wakeups != nil {
		r.Post("/iterators/{name}/wakeup", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if err := d.Wakeups.Publish(req.Context(), name); err != nil {
				log.ErrorContext(req.Context(), "wakeup publish failed", logger.Iterator(name), logger.Error(err))
				writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
	}

	if d.Maintenance != nil {
		r.Get("/maintenance", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, maintenanceBody{Paused: d.Maintenance.Paused()})
		})
		r.Put("/maintenance", func(w http.ResponseWriter, req *http.Request) {
			var body maintenanceBody
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
				return
			}
			if err := d.Maintenance.Set(req.Context(), body.Paused); err != nil {
				log.ErrorContext(req.Context(), "maintenance toggle failed", logger.Error(err))
				writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
				return
			}
			log.InfoContext(req.Context(), "maintenance toggled", slog.Bool("paused", body.Paused))
			writeJSON(w, http.StatusOK, maintenanceBody{Paused: d.Maintenance.Paused()})
		})
	}

	return r
}

// HealthCheckHandler serves liveness when no checks are given ("ALIVE") and readiness otherwise:
// "READY" when every check passes, 503 "NOT_READY" on the first failure.
func HealthCheckHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

type maintenanceBody struct {
	Paused bool `json:"paused"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// LocalMaintenance adapts a process-local switch for deployments without a shared flag.
func LocalMaintenance(m *iterator.Maintenance) Maintenance {
	return localMaintenance{m: m}
}

type localMaintenance struct{ m *iterator.Maintenance }

func (l localMaintenance) Paused() bool { return l.m.Paused() }

func (l localMaintenance) Set(_ context.Context, paused bool) error {
	l.m.Set(paused)
	return nil
}
