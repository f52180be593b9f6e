package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

func queryResponse(points ...map[string]any) map[string]any {
	return map[string]any{
		"result": map[string]any{"points": points},
	}
}

func TestSearchAppliesThresholdAndFilters(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/desa/points/query" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(queryResponse(map[string]any{
			"id":    "p1",
			"score": 0.91,
			"payload": map[string]any{
				"text":        "Jam Operasional Kelurahan: 08:00-16:00",
				"source":      "profil_desa",
				"source_type": "knowledge",
				"category":    "layanan",
				"village_id":  "desa-001",
			},
		}))
	}))
	defer server.Close()

	client := New(server.URL, "desa")
	candidates, err := client.Search(context.Background(), []float32{0.1, 0.2}, domain.VectorQuery{
		TopK:        8,
		MinScore:    0.585,
		Categories:  []string{"layanan"},
		SourceTypes: []domain.SourceType{domain.SourceKnowledge},
		VillageID:   "desa-001",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].ID != "p1" || candidates[0].SourceType != domain.SourceKnowledge {
		t.Fatalf("unexpected candidate %+v", candidates[0])
	}

	if captured["score_threshold"].(float64) != 0.585 {
		t.Fatalf("score_threshold not forwarded: %v", captured["score_threshold"])
	}
	if captured["using"].(string) != "dense" {
		t.Fatalf("expected dense vector name, got %v", captured["using"])
	}
	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter missing from request")
	}
	must := filter["must"].([]any)
	if len(must) != 3 {
		t.Fatalf("expected village+category+source_type clauses, got %d", len(must))
	}
}

func TestSearchEmptyVectorShortCircuits(t *testing.T) {
	client := New("http://unused", "desa")
	candidates, err := client.Search(context.Background(), nil, domain.VectorQuery{TopK: 8})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if candidates != nil {
		t.Fatalf("expected nil candidates, got %v", candidates)
	}
}

func TestHybridSearchPrefetchesAndRescores(t *testing.T) {
	var requests []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests = append(requests, body)

		if _, fused := body["prefetch"]; fused {
			json.NewEncoder(w).Encode(queryResponse(
				map[string]any{"id": "a", "score": 0.032, "payload": map[string]any{"text": "jam buka", "source_type": "knowledge"}},
				map[string]any{"id": "b", "score": 0.016, "payload": map[string]any{"text": "sejarah", "source_type": "knowledge"}},
			))
			return
		}
		// Rescore pass returns dense similarities for the fused ids.
		json.NewEncoder(w).Encode(queryResponse(
			map[string]any{"id": "a", "score": 0.91},
			map[string]any{"id": "b", "score": 0.40},
		))
	}))
	defer server.Close()

	client := New(server.URL, "desa")
	candidates, err := client.HybridSearch(context.Background(), "jam buka kelurahan", []float32{0.5}, domain.VectorQuery{
		TopK:     8,
		MinScore: 0.585,
	})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected fused query + rescore pass, got %d requests", len(requests))
	}
	prefetch := requests[0]["prefetch"].([]any)
	if len(prefetch) != 2 {
		t.Fatalf("expected dense+sparse prefetch, got %d", len(prefetch))
	}
	fusion := requests[0]["query"].(map[string]any)["fusion"].(string)
	if fusion != "rrf" {
		t.Fatalf("expected rrf fusion, got %q", fusion)
	}

	// b rescored to 0.40 falls under the 0.585 threshold.
	if len(candidates) != 1 {
		t.Fatalf("expected 1 surviving candidate, got %d", len(candidates))
	}
	if candidates[0].ID != "a" || candidates[0].Score != 0.91 {
		t.Fatalf("unexpected candidate %+v", candidates[0])
	}
}

func TestIndexChunksWritesNamedVectorsAndPayload(t *testing.T) {
	var upsert map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/desa":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/desa/points":
			if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
				t.Fatalf("decode upsert: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	doc := &domain.Document{
		ID:        "doc-1",
		VillageID: "desa-001",
		Filename:  "perdes_2024.pdf",
		Title:     "Perdes 2024",
		Category:  "peraturan",
		CreatedAt: time.Now(),
	}

	client := New(server.URL, "desa")
	err := client.IndexChunks(context.Background(), doc, []string{"pasal satu", "pasal dua"}, [][]float32{{0.1}, {0.2}})
	if err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}

	points := upsert["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	first := points[0].(map[string]any)
	vector := first["vector"].(map[string]any)
	if _, ok := vector["dense"]; !ok {
		t.Fatalf("dense vector missing")
	}
	if _, ok := vector["sparse"]; !ok {
		t.Fatalf("sparse vector missing")
	}
	payload := first["payload"].(map[string]any)
	if payload["village_id"] != "desa-001" || payload["source_type"] != "document" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEnsureCollectionToleratesConflict(t *testing.T) {
	upserts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/desa":
			http.Error(w, "already exists", http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/desa/points":
			upserts++
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	doc := &domain.Document{ID: "doc-1", VillageID: "desa-001", Filename: "a.txt", Title: "A"}
	client := New(server.URL, "desa")
	if err := client.IndexChunks(context.Background(), doc, []string{"x"}, [][]float32{{0.1}}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if upserts != 1 {
		t.Fatalf("expected upsert despite 409 on ensure, got %d", upserts)
	}
}
