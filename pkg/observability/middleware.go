package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const metricsReadHeaderTimeout = 5 * time.Second

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}

	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware traces each request as a server span named "METHOD /path",
// continuing any W3C trace context the scraper sent. 5xx responses mark the
// span as failed.
func HTTPMiddleware(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		parent := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parent, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(hr.Method)))
		defer span.End()

		sr := &statusRecorder{ResponseWriter: rw}
		next.ServeHTTP(sr, hr.WithContext(ctx))

		if sr.status == 0 {
			sr.status = http.StatusOK
		}

		span.SetAttributes(semconv.HTTPResponseStatusCode(sr.status))

		if sr.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sr.status))
		}
	})
}

// NewMetricsServer returns an HTTP server exposing handler at /metrics,
// traced with HTTPMiddleware.
func NewMetricsServer(addr string, tracer trace.Tracer, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	return &http.Server{
		Addr:              addr,
		Handler:           HTTPMiddleware(tracer, mux),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}
}
