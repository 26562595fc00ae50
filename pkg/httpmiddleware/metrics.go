package httpmiddleware

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics returns a middleware recording a request counter and a duration
// histogram on the given meter. Routes are coarsened to the first two path
// segments so metric cardinality stays bounded regardless of IDs in paths.
func Metrics(meter metric.Meter) (Middleware, error) {
	requests, err := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Number of HTTP requests handled"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.route", coarseRoute(r.URL.Path)),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", rec.status),
			)
			ctx := r.Context()
			requests.Add(ctx, 1, attrs)
			duration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)
		})
	}, nil
}

func coarseRoute(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch {
	case len(parts) >= 2 && parts[1] != "":
		return "/" + parts[0] + "/" + parts[1]
	case parts[0] != "":
		return "/" + parts[0]
	default:
		return "/"
	}
}
