package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/akolanti/TenderRAG/internal/adapter"
	"github.com/akolanti/TenderRAG/internal/adapter/utils"
	"github.com/akolanti/TenderRAG/internal/api"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/docstore"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/rag"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

var (
	logRH      *logger_i.Logger
	ragService rag.Service
	documents  docstore.Store
	health     api.HealthResponse
)

type newJobData struct {
	id      string
	kbId    string
	traceId string
}

// InitRequestHandler wires the synchronous endpoints.
func InitRequestHandler(service rag.Service, store docstore.Store, info api.HealthResponse) {
	if logRH == nil {
		logRH = logger_i.NewLogger("RequestHandler")
	}
	ragService = service
	documents = store
	info.Status = "ok"
	health = info
}

// GetHandler godoc
// @Summary      Liveness probe
// @Description  Reports the configured providers and index backend. Does not require auth.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, health)
}

// AskHandler godoc
// @Summary      Ask a question about a knowledge base
// @Description  Answers from the indexed tender documents with section level citations. Degrades to retrieved context when generation fails.
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        kbId     path      string          true  "Knowledge base id"
// @Param        request  body      api.AskRequest  true  "Question"
// @Success      200      {object}  api.AskResponse
// @Failure      400      {object}  api.JobResponse  "Empty question"
// @Failure      502      {object}  api.JobResponse  "Retrieval failed"
// @Failure      504      {object}  api.JobResponse  "Deadline exceeded"
// @Router       /kb/{kbId}/ask [post]
func AskHandler(w http.ResponseWriter, request *http.Request) {
	if !requestAlive(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}
	kbId := utils.URLParam(request, "kbId")

	var requestData api.AskRequest
	if err := readJson(w, request, &requestData); err != nil || strings.TrimSpace(requestData.Question) == "" {
		logRH.Warn("Bad Ask Request", "error", err, "kbId", kbId)
		WriteErrorResponse(w, http.StatusBadRequest, kbId, "question is required")
		return
	}

	answer, err := ragService.Answer(request.Context(), kbId, requestData.Question)
	if err != nil {
		writeServiceError(w, kbId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAskResponse(answer))
}

// SearchHandler godoc
// @Summary      Rank chunks for a query
// @Description  Returns the top k chunks by cosine similarity, ties broken by chunk id.
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        kbId     path      string             true  "Knowledge base id"
// @Param        request  body      api.SearchRequest  true  "Query and optional k"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.JobResponse
// @Failure      404      {object}  api.JobResponse  "Knowledge base has no index"
// @Router       /kb/{kbId}/search [post]
func SearchHandler(w http.ResponseWriter, request *http.Request) {
	if !requestAlive(request.Context()) {
		return
	}
	kbId := utils.URLParam(request, "kbId")

	var requestData api.SearchRequest
	if err := readJson(w, request, &requestData); err != nil || strings.TrimSpace(requestData.Query) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, kbId, "query is required")
		return
	}

	result, err := ragService.Search(request.Context(), kbId, requestData.Query, requestData.K)
	if err != nil {
		writeServiceError(w, kbId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(result))
}

// SummaryHandler godoc
// @Summary      Tender summary sheet
// @Description  Tender name, issuer, EMD, location, duration, scope of work and compliance notes extracted from the knowledge base.
// @Tags         Questions
// @Produce      json
// @Param        kbId  path      string  true  "Knowledge base id"
// @Success      200   {object}  commonModels.SummarySheet
// @Failure      404   {object}  api.JobResponse  "Knowledge base has no index"
// @Router       /kb/{kbId}/summary [get]
func SummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !requestAlive(r.Context()) {
		return
	}
	kbId := utils.URLParam(r, "kbId")
	sheet, err := ragService.Summary(r.Context(), kbId)
	if err != nil {
		writeServiceError(w, kbId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, sheet)
}

// PostBuildHandler godoc
// @Summary      Rebuild a knowledge base index
// @Description  Queues an asynchronous build over every PDF uploaded for the knowledge base and returns a job id to poll.
// @Tags         Ingestion
// @Produce      json
// @Param        kbId  path      string  true  "Knowledge base id"
// @Success      202   {object}  api.InitJobResponse  "Job successfully created"
// @Failure      503   {object}  api.JobResponse      "Build queue is full"
// @Router       /kb/{kbId}/build [post]
func PostBuildHandler(w http.ResponseWriter, r *http.Request) {
	if !requestAlive(r.Context()) {
		return
	}
	newJob := newJobData{
		id:      utils.NewId(),
		kbId:    utils.URLParam(r, "kbId"),
		traceId: traceIdOf(r.Context()),
	}
	ctx, cancel := context.WithTimeout(r.Context(), config.EnqueueTimeout)
	defer cancel()
	if _, err := CreateBuildJob(ctx, newJob); err != nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, newJob.id, "Build queue is full, retry later")
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

// GetStatusHandler godoc
// @Summary      Get build job status
// @Description  Retrieves the current status of a build job, including the build summary once finished.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if requestAlive(r.Context()) {
		//use chi get the url id
		idString := utils.URLParam(r, "id")
		result, isFound := lookupJob(idString, traceIdOf(r.Context()))

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		if !isFound {
			WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
	}
}

// PostDocumentHandler godoc
// @Summary      Upload a tender PDF
// @Description  Stores one PDF in the document store of the knowledge base. Run a build afterwards to index it.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        kbId      path      string  true  "Knowledge base id"
// @Param        document  formData  file    true  "The PDF file to upload"
// @Success      201  {object}  api.UploadResponse
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing file, not a PDF or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage Error"
// @Router       /kb/{kbId}/documents [post]
func PostDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !requestAlive(r.Context()) {
		return
	}
	kbId := utils.URLParam(r, "kbId")

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, kbId, "File too large or bad request")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, kbId, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	name, err := docstore.CleanName(fileMetadata.Filename)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, kbId, err.Error())
		return
	}
	data, err := io.ReadAll(fileReader)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, kbId, "Could not read file")
		return
	}
	if err := documents.Put(r.Context(), kbId, name, data); err != nil {
		logRH.Error("Storing document failed", "kbId", kbId, "document", name, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, kbId, "Storage error")
		return
	}
	writeJsonResponse(w, http.StatusCreated, api.UploadResponse{KnowledgeBaseId: kbId, Document: name})
}

// writeServiceError maps the typed errors onto status codes.
func writeServiceError(w http.ResponseWriter, kbId string, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		WriteErrorResponse(w, http.StatusBadRequest, kbId, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteErrorResponse(w, http.StatusGatewayTimeout, kbId, "Request timed out")
	case errors.Is(err, kbErrors.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, kbId, "Knowledge base not found")
	case errors.Is(err, kbErrors.ErrRetrieval):
		logRH.Error("Retrieval failed", "kbId", kbId, "error", err)
		WriteErrorResponse(w, http.StatusBadGateway, kbId, "Retrieval failed")
	default:
		logRH.Error("Request failed", "kbId", kbId, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, kbId, "Internal Server Error")
	}
}
