package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/resilience"
)

// Client talks to an Ollama-compatible HTTP backend. It backs four ports:
// embeddings, the RAG intent micro-classifier, query-expansion generation
// and answer generation.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// IntentClassifier is the delegated micro-classification call of the intent
// gate.
type IntentClassifier struct {
	client *Client
}

func NewIntentClassifier(client *Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

func (c *IntentClassifier) ClassifyRAGIntent(ctx context.Context, query, sessionContext string) (domain.IntentDecision, error) {
	respText, err := c.client.generateJSON(ctx, c.client.genModel, buildIntentPrompt(query, sessionContext))
	if err != nil {
		return domain.IntentDecision{}, err
	}

	var decision domain.IntentDecision
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &decision); err != nil {
		return domain.IntentDecision{}, fmt.Errorf("parse intent json: %w", err)
	}
	decision.Decision = strings.ToUpper(strings.TrimSpace(decision.Decision))
	return decision, nil
}

// ExpansionGenerator produces synonym text for the query expander, from a
// caller-selected model so the expander can fail over across its list.
type ExpansionGenerator struct {
	client *Client
}

func NewExpansionGenerator(client *Client) *ExpansionGenerator {
	return &ExpansionGenerator{client: client}
}

func (g *ExpansionGenerator) GenerateExpansion(ctx context.Context, model, query string) (string, error) {
	if model == "" {
		model = g.client.genModel
	}
	return g.client.generateText(ctx, model, buildExpansionPrompt(query))
}

type AnswerGenerator struct {
	client *Client
}

func NewAnswerGenerator(client *Client) *AnswerGenerator {
	return &AnswerGenerator{client: client}
}

func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, result domain.RAGResult) (string, error) {
	return g.client.generateText(ctx, g.client.genModel, buildAnswerPrompt(question, result))
}

func (c *Client) generateJSON(ctx context.Context, model, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generateText(ctx context.Context, model, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, path string, payload, out any, operation string) error {
	do := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, do, classifyLLMError)
	} else {
		err = do(ctx)
	}
	return translateLLMError(operation, err)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
