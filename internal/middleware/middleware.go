package middleware

import (
	"net/http"
	"sync"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/handlers"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

type authConfig struct {
	token  string
	bypass bool
}

var (
	authMu       sync.RWMutex
	authSettings = authConfig{bypass: config.NoAuthBypass}
)

// Configure sets the bearer token checked by every protected route.
func Configure(s config.Settings) {
	authMu.Lock()
	defer authMu.Unlock()
	authSettings = authConfig{token: s.AuthToken, bypass: s.NoAuthBypass}
}

var GetHandler = WrapPublic(handlers.GetHandler)

var AskHandler = Wrap(handlers.AskHandler)
var SearchHandler = Wrap(handlers.SearchHandler)
var SummaryHandler = Wrap(handlers.SummaryHandler)
var PostBuildHandler = Wrap(handlers.PostBuildHandler)
var PostDocumentHandler = Wrap(handlers.PostDocumentHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

// WrapPublic skips auth, used for the liveness probe.
func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, false)
}

func wrap(next http.HandlerFunc, protected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := processRequest(requestResponseStruct{req: r, writer: rec}, protected)

		if !re.badRequest.isBadRequest {
			next(rec, re.req)
		}

		metrics.CountRequest(routePattern(r), rec.Status)
	}
}

// routePattern keeps the metric label set bounded: /kb/{kbId}/ask rather than one label per kb.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// processRequest runs trace, auth for protected routes, then the rate limiter.
// The first failing step writes the error response.
func processRequest(re requestResponseStruct, protected bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re = injectTrace(re)
	if !re.badRequest.isBadRequest && protected {
		authMu.RLock()
		re = authenticate(re)
		authMu.RUnlock()
	}
	if !re.badRequest.isBadRequest {
		re = rateLimiter(re)
	}
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
	}
	return re
}
