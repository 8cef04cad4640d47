package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/akolanti/TenderRAG/internal/adapter/utils"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/handlers"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

const (
	traceHeader    = "X-Trace-Id"
	maxTraceLength = 64
)

var bypassWarning sync.Once

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusBadRequest, errorMessage: "request is empty"}
		return re
	}
	trace := sanitizeTrace(req.Header.Get(traceHeader))
	if trace == "" {
		trace = utils.NewId()
	}
	re.logger = re.logger.With("traceId", trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(context.WithValue(req.Context(), config.TRACE_ID_KEY, trace))
	re.badRequest.id = trace
	return re
}

// sanitizeTrace accepts a caller supplied trace id only when it is short and made of id characters,
// it ends up in every log line of the request.
func sanitizeTrace(trace string) string {
	trace = strings.TrimSpace(trace)
	if trace == "" || len(trace) > maxTraceLength {
		return ""
	}
	for _, c := range trace {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return trace
}

func authenticate(re requestResponseStruct) requestResponseStruct {
	if !IsValidBearerToken(re.req.Header.Get("Authorization"), re.logger) {
		re.badRequest.isBadRequest = true
		re.badRequest.errorMessage = "Unauthorized"
		re.badRequest.httpCode = http.StatusUnauthorized
	}
	return re
}

// bearerToken extracts the credentials of an "Authorization: Bearer <token>" header. The scheme is case insensitive.
func bearerToken(authHeader string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func IsValidBearerToken(authHeader string, log *logger_i.Logger) bool {
	if authSettings.bypass {
		bypassWarning.Do(func() { log.Warn("Auth bypass is enabled, every request is accepted") })
		return true
	}
	if authSettings.token == "" {
		log.Error("No auth token configured, rejecting request")
		return false
	}
	token, ok := bearerToken(authHeader)
	if !ok {
		log.Warn("Missing or malformed bearer token")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(authSettings.token)) != 1 {
		log.Warn("Bearer token does not match")
		return false
	}
	return true
}

func clientAddress(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	client := clientAddress(re.req)
	if !limiterInstance.Allow(client) {
		re.logger.Warn("Rate limit exceeded", "client", client)
		re.badRequest.isBadRequest = true
		re.badRequest.httpCode = http.StatusTooManyRequests
		re.badRequest.errorMessage = "Rate limit exceeded"
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	path := ""
	if re.req != nil {
		path = re.req.URL.Path
	}
	re.logger.Warn("Request rejected", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "path", path)
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, re.badRequest.id, re.badRequest.errorMessage)
}
