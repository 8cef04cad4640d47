package utils

import (
	"net/http"
	"strings"

	_ "github.com/akolanti/TenderRAG/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

// NewId is used for job and trace ids.
func NewId() string {
	return uuid.New().String()
}

// URLParam returns the trimmed chi path parameter.
func URLParam(request *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(request, key))
}

// NewRouter returns a router with the operational endpoints mounted: swagger and prometheus.
// RealIP runs first so the rate limiter keys on the client behind a proxy.
func NewRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(chimw.RealIP, chimw.Recoverer)
	mountSwagger(router)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

func mountSwagger(r chi.Router) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
