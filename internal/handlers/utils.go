package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/akolanti/TenderRAG/internal/adapter"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
)

var errEmptyBody = errors.New("request body is empty")

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out
		logRH.Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

// readJson decodes one JSON object of at most MaxRequestBodySize bytes into dst.
func readJson(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	defer closeBody(r.Body)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if decoder.More() {
		return errors.New("request body must hold a single object")
	}
	return nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body", "error", err)
	}
}

func lookupJob(id string, traceId string) (jobModel.Job, bool) {
	if id == "" {
		logRH.Warn("Empty Job ID", "traceId", traceId)
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func traceIdOf(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

// requestAlive is false once the client has gone away; nothing is written then.
func requestAlive(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		logRH.Warn("request context done", "traceId", traceIdOf(ctx), "error", err)
		return false
	}
	return true
}
