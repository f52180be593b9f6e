package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
	"github.com/desadigital/citizen-assistant/internal/observability/metrics"
)

const serviceName = "api"

// maxUploadBytes bounds multipart uploads; village regulations and letters
// are small, anything bigger is a mistake.
const maxUploadBytes = 32 << 20

type Router struct {
	chat      ports.ChatService
	retriever ports.ContextRetriever
	ingest    ports.DocumentIngestor
	docs      ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
	traffic   TrafficConfig
}

func NewRouter(
	chat ports.ChatService,
	retriever ports.ContextRetriever,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
	traffic TrafficConfig,
) *Router {
	return &Router{
		chat:      chat,
		retriever: retriever,
		ingest:    ingest,
		docs:      docs,
		metrics:   m,
		traffic:   traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatAnswer)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.trafficControlMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Query     string               `json:"query"`
	VillageID string               `json:"village_id"`
	Options   domain.SearchOptions `json:"options"`
}

func (rt *Router) chatAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	answer, err := rt.chat.Answer(r.Context(), domain.ChatRequest{
		Query:     req.Query,
		VillageID: req.VillageID,
		Options:   req.Options,
	})
	if err != nil {
		if rt.metrics != nil && isSpamRejection(err) {
			rt.metrics.RecordSpamBlocked(serviceName)
		}
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.recordRetrieval("/v1/chat", answer.Confidence.Level, answer.Intent, len(answer.Sources), len(answer.Conflicts), time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

type retrieveRequest struct {
	Query     string               `json:"query"`
	VillageID string               `json:"village_id"`
	Options   domain.SearchOptions `json:"options"`
}

// retrieve exposes the raw pipeline output for dashboard and debugging use:
// ranked chunks, conflicts, confidence, and the assembled context string.
func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	opts := req.Options
	if opts.VillageID == "" {
		opts.VillageID = req.VillageID
	}

	start := time.Now()
	result := rt.retriever.RetrieveContext(r.Context(), req.Query, opts)
	rt.recordRetrieval("/v1/retrieve", result.Confidence.Level, result.Intent, len(result.RelevantChunks), len(result.Conflicts), time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	villageID := r.FormValue("village_id")
	if strings.TrimSpace(villageID) == "" {
		writeError(w, http.StatusBadRequest, "form field 'village_id' is required")
		return
	}

	doc, err := rt.ingest.Upload(
		r.Context(),
		villageID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) recordRetrieval(
	endpoint string,
	level domain.ConfidenceLevel,
	intent domain.QueryIntent,
	chunkCount, conflictCount int,
	duration time.Duration,
) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(serviceName, endpoint, string(intent), string(level), chunkCount, conflictCount, duration)
}

func isSpamRejection(err error) bool {
	return domain.IsKind(err, domain.ErrInvalidInput) &&
		strings.Contains(err.Error(), "spam guard")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
