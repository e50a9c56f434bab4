package bff

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-Id"

var (
	bffRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_bff_requests_total",
		Help: "Total BFF requests by route and status",
	}, []string{"route", "status"})

	bffRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokedex_bff_request_duration_seconds",
		Help:    "BFF request duration in seconds by route",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"})

	bffPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_bff_panics_total",
		Help: "Total panics recovered by the BFF",
	})
)

// RequestID propagates X-Request-Id or assigns a new UUID.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog puts a request-scoped logger into the context and logs one line per request.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().Str("request_id", r.Header.Get(HeaderRequestID)).Logger()
			r = r.WithContext(reqLogger.WithContext(r.Context()))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			route := routePattern(r)
			bffRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
			bffRequestDuration.WithLabelValues(route).Observe(dur.Seconds())

			event := reqLogger.Info()
			if sw.status >= 500 {
				event = reqLogger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("duration", dur).
				Msg("http")
		})
	}
}

// Recover turns a panic into a 500 JSON error. Panic details are logged, not returned.
func Recover() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					bffPanicsTotal.Inc()
					zerolog.Ctx(r.Context()).Error().
						Interface("reason", rec).
						Str("path", r.URL.Path).
						Msg("panic")
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
