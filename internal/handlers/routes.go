package handlers

import (
	_ "embed"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/schematic/internal/logging"
	"github.com/maneesh/schematic/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// Router bundles the handlers served by NewRouter
type Router struct {
	Upload  *UploadHandler
	Search  *SearchHandler
	Schema  *SchemaHandler
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// NewRouter wires every endpoint with tracing, latency metrics and access logs
func NewRouter(rt Router) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", rt.Metrics.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs", http.StatusPermanentRedirect)
	}).Methods(http.MethodGet)

	router.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(openAPIDocument)
	}).Methods(http.MethodGet)

	router.Handle("/file", traced(rt.Metrics, rt.Upload, "POST /file")).Methods(http.MethodPost)
	router.Handle("/search", traced(rt.Metrics, rt.Search, "GET /search")).Methods(http.MethodGet)
	router.Handle("/schema/{digest}", traced(rt.Metrics, rt.Schema, "GET /schema/{digest}")).Methods(http.MethodGet)

	router.Use(logging.Middleware(rt.Log))
	return router
}

func traced(m *metrics.Metrics, h http.Handler, route string) http.Handler {
	return otelhttp.NewHandler(m.Instrument(route, h), route)
}
