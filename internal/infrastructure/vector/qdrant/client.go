package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Client is the HTTP gateway to a Qdrant collection holding both curated
// knowledge entries and document chunks. The collection carries a named dense
// vector and a named sparse vector per point so hybrid search can fuse both
// server-side.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		section := fmt.Sprintf("%s (bagian %d)", doc.Title, i+1)
		points = append(points, point{
			ID: uuid.NewString(),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseEntry(chunks[i], section),
			},
			Payload: map[string]any{
				"doc_id":      doc.ID,
				"village_id":  doc.VillageID,
				"source":      doc.Filename,
				"source_type": string(domain.SourceDocument),
				"category":    doc.Category,
				"section":     section,
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
}

// Search runs pure dense-vector retrieval with the score threshold and
// metadata filters applied server-side.
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	q domain.VectorQuery,
) ([]domain.SearchCandidate, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query":        queryVector,
		"using":        denseVectorName,
		"limit":        q.TopK,
		"with_payload": true,
	}
	if q.MinScore > 0 {
		reqBody["score_threshold"] = q.MinScore
	}
	if filter := buildFilter(q); filter != nil {
		reqBody["filter"] = filter
	}

	return c.queryPoints(ctx, reqBody, "search")
}

// HybridSearch fuses dense similarity and sparse lexical matching with
// Qdrant's built-in reciprocal-rank fusion. Results come back in fused order
// but carry the dense similarity as Score, so downstream thresholds stay on
// the cosine scale.
func (c *Client) HybridSearch(
	ctx context.Context,
	query string,
	queryVector []float32,
	q domain.VectorQuery,
) ([]domain.SearchCandidate, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}

	prefetchLimit := q.TopK * 2
	if prefetchLimit < 10 {
		prefetchLimit = 10
	}

	filter := buildFilter(q)
	densePrefetch := map[string]any{
		"query": queryVector,
		"using": denseVectorName,
		"limit": prefetchLimit,
	}
	sparsePrefetch := map[string]any{
		"query": encodeSparseQuery(query),
		"using": sparseVectorName,
		"limit": prefetchLimit,
	}
	if filter != nil {
		densePrefetch["filter"] = filter
		sparsePrefetch["filter"] = filter
	}

	reqBody := map[string]any{
		"prefetch":     []map[string]any{densePrefetch, sparsePrefetch},
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        q.TopK,
		"with_payload": true,
	}

	candidates, err := c.queryPoints(ctx, reqBody, "hybrid query")
	if err != nil {
		return nil, err
	}

	// Fused RRF scores are rank-based, not similarities; re-score against the
	// dense vector so the min-score threshold keeps its meaning.
	rescored, err := c.rescoreDense(ctx, queryVector, candidates)
	if err != nil {
		return nil, err
	}
	if q.MinScore <= 0 {
		return rescored, nil
	}
	out := rescored[:0]
	for _, cand := range rescored {
		if cand.Score >= q.MinScore {
			out = append(out, cand)
		}
	}
	return out, nil
}

// rescoreDense replaces fused scores with dense similarities via an ID-scoped
// dense query, preserving the fused ordering.
func (c *Client) rescoreDense(
	ctx context.Context,
	queryVector []float32,
	candidates []domain.SearchCandidate,
) ([]domain.SearchCandidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		ids = append(ids, cand.ID)
	}

	reqBody := map[string]any{
		"query":        queryVector,
		"using":        denseVectorName,
		"limit":        len(ids),
		"with_payload": false,
		"filter": map[string]any{
			"must": []map[string]any{
				{"has_id": ids},
			},
		},
	}

	scored, err := c.queryPoints(ctx, reqBody, "rescore")
	if err != nil {
		return nil, err
	}

	scoreByID := make(map[string]float64, len(scored))
	for _, s := range scored {
		scoreByID[s.ID] = s.Score
	}
	for i := range candidates {
		if score, ok := scoreByID[candidates[i].ID]; ok {
			candidates[i].Score = score
		}
	}
	return candidates, nil
}

func (c *Client) queryPoints(ctx context.Context, reqBody map[string]any, operation string) ([]domain.SearchCandidate, error) {
	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)

	var queryResp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, url, reqBody, &queryResp, operation); err != nil {
		return nil, err
	}

	out := make([]domain.SearchCandidate, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		out = append(out, domain.SearchCandidate{
			ID:         fmt.Sprintf("%v", p.ID),
			Content:    getStringPayload(p.Payload, "text"),
			Score:      p.Score,
			SourceType: domain.SourceType(getStringPayload(p.Payload, "source_type")),
			Source:     getStringPayload(p.Payload, "source"),
			Category:   getStringPayload(p.Payload, "category"),
			Section:    getStringPayload(p.Payload, "section"),
			VillageID:  getStringPayload(p.Payload, "village_id"),
		})
	}
	return out, nil
}

func buildFilter(q domain.VectorQuery) map[string]any {
	var must []map[string]any

	if q.VillageID != "" {
		must = append(must, map[string]any{
			"key":   "village_id",
			"match": map[string]any{"value": q.VillageID},
		})
	}
	if len(q.Categories) > 0 {
		must = append(must, map[string]any{
			"key":   "category",
			"match": map[string]any{"any": q.Categories},
		})
	}
	if len(q.SourceTypes) > 0 {
		types := make([]string, 0, len(q.SourceTypes))
		for _, t := range q.SourceTypes {
			types = append(types, string(t))
		}
		must = append(must, map[string]any{
			"key":   "source_type",
			"match": map[string]any{"any": types},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.do(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	if err != nil {
		// 409 means the collection already exists (depends on version/config).
		var statusErr *statusError
		if !errors.As(err, &statusErr) || statusErr.code != http.StatusConflict {
			return err
		}
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, strings.TrimSpace(e.body))
}

func (c *Client) do(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			code:      resp.StatusCode,
			status:    resp.Status,
			body:      string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
