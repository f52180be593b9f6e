package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

type fakeChat struct {
	answer *domain.ChatAnswer
	err    error
	lastIn domain.ChatRequest
}

func (f *fakeChat) Answer(_ context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	f.lastIn = req
	return f.answer, f.err
}

type fakeRetriever struct {
	result   domain.RAGResult
	lastOpts domain.SearchOptions
}

func (f *fakeRetriever) RetrieveContext(_ context.Context, _ string, opts domain.SearchOptions) domain.RAGResult {
	f.lastOpts = opts
	return f.result
}

func (f *fakeRetriever) ShouldRetrieveContext(context.Context, string) bool { return true }

type fakeIngestor struct {
	doc *domain.Document
	err error
}

func (f *fakeIngestor) Upload(_ context.Context, villageID, filename, mimeType string, _ io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.doc
	out.VillageID = villageID
	out.Filename = filename
	out.MimeType = mimeType
	return &out, nil
}

type fakeDocReader struct {
	doc *domain.Document
	err error
}

func (f *fakeDocReader) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func newTestRouter(chat *fakeChat, retriever *fakeRetriever, ingest *fakeIngestor, docs *fakeDocReader) http.Handler {
	if chat == nil {
		chat = &fakeChat{answer: &domain.ChatAnswer{Text: "ok"}}
	}
	if retriever == nil {
		retriever = &fakeRetriever{}
	}
	if ingest == nil {
		ingest = &fakeIngestor{doc: &domain.Document{ID: "doc-1"}}
	}
	if docs == nil {
		docs = &fakeDocReader{doc: &domain.Document{ID: "doc-1"}}
	}
	return NewRouter(chat, retriever, ingest, docs, nil, TrafficConfig{}).Handler()
}

func TestChatEndpointReturnsAnswer(t *testing.T) {
	chat := &fakeChat{answer: &domain.ChatAnswer{
		Text: "Kantor buka pukul 08:00.",
		Confidence: domain.Confidence{
			Level: domain.ConfidenceHigh,
			Score: 0.85,
		},
		Intent:   domain.IntentRequired,
		Grounded: true,
	}}
	handler := newTestRouter(chat, nil, nil, nil)

	body := `{"query":"jam buka kelurahan?","village_id":"desa-001"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if chat.lastIn.VillageID != "desa-001" {
		t.Fatalf("village_id not forwarded: %+v", chat.lastIn)
	}

	var answer domain.ChatAnswer
	if err := json.Unmarshal(res.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if !answer.Grounded || answer.Confidence.Level != domain.ConfidenceHigh {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestChatEndpointRejectsEmptyQuery(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatEndpointMapsSpamRejectionTo400(t *testing.T) {
	chat := &fakeChat{err: domain.WrapError(domain.ErrInvalidInput, "chat answer", errors.New("message rejected by spam guard"))}
	handler := newTestRouter(chat, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"aaaa"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRetrieveEndpointForwardsVillageID(t *testing.T) {
	retriever := &fakeRetriever{result: domain.RAGResult{
		RelevantChunks: []domain.DedupedCandidate{},
		Confidence:     domain.Confidence{Level: domain.ConfidenceNone, SuggestFallback: true},
		Intent:         domain.IntentRequired,
	}}
	handler := newTestRouter(nil, retriever, nil, nil)

	body := `{"query":"syarat ktp","village_id":"desa-002"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if retriever.lastOpts.VillageID != "desa-002" {
		t.Fatalf("village_id not forwarded into options: %+v", retriever.lastOpts)
	}

	var result domain.RAGResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Confidence.Level != domain.ConfidenceNone || !result.Confidence.SuggestFallback {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUploadDocumentRequiresVillageID(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "perdes.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("dummy"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without village_id, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("village_id", "desa-001")
	part, err := mw.CreateFormFile("file", "perdes.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("dummy"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.VillageID != "desa-001" || doc.Filename != "perdes.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestGetDocumentMapsNotFoundTo404(t *testing.T) {
	docs := &fakeDocReader{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id missing"))}
	handler := newTestRouter(nil, nil, nil, docs)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestTemporaryFailureMapsTo503(t *testing.T) {
	chat := &fakeChat{err: domain.WrapError(domain.ErrTemporary, "generate answer", errors.New("ollama down"))}
	handler := newTestRouter(chat, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"jam buka"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-abc" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
