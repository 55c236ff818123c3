// Package api serves the inbound HTTP surface of the daemon.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/GPTx-global/rofl-oracle/oracle/health"
	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/telemetry"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

// Queue is the part of the observation store exposed over HTTP.
type Queue interface {
	Enqueue(value types.Value) (int, error)
	PopTail() (types.Value, bool)
	LastHistorical() (types.Value, bool)
	Len() int
	HistoryLen() int
	Capacity() int
}

// ObservationReader reads the last observation recorded by the contract.
type ObservationReader interface {
	LastObservation(ctx context.Context) (types.RemoteObservation, error)
}

// HealthReporter exposes the latest health check results.
type HealthReporter interface {
	IsHealthy() bool
	GetStatus() map[string]health.Status
}

// NewRouter registers every route. metrics may be nil.
func NewRouter(queue Queue, reader ObservationReader, reporter HealthReporter, metrics http.Handler) *mux.Router {
	h := &Handler{
		queue:    queue,
		reader:   reader,
		reporter: reporter,
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(requestLogger)

	router.HandleFunc("/", h.Greeting).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/status", h.Status).Methods(http.MethodGet)

	v := router.PathPrefix("/api").Subrouter()
	v.HandleFunc("/submit", h.Submit).Methods(http.MethodPost)
	v.HandleFunc("/last-observation-local", h.LastObservationLocal).Methods(http.MethodGet)
	v.HandleFunc("/last-observation", h.LastObservation).Methods(http.MethodGet)
	v.HandleFunc("/delete", h.Delete).Methods(http.MethodGet, http.MethodDelete)

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	return router
}

// NewServer wraps router with permissive CORS.
func NewServer(listenAddress string, router http.Handler) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead},
	})

	return &http.Server{
		Addr:         listenAddress,
		Handler:      c.Handler(router),
		WriteTimeout: time.Second * 60,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		telemetry.MeasureSince(start, telemetry.MetricAPI, telemetry.MetricLatency)
		log.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
