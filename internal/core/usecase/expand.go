package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
)

// QueryExpander enriches short citizen queries with domain synonyms via a
// delegated generation call, behind a TTL cache. Expansion is best-effort:
// every failure path returns the original query unchanged.
type QueryExpander struct {
	generator  ports.ExpansionGenerator
	models     []string
	maxRetries int
	cache      *ExpansionCache
}

func NewQueryExpander(generator ports.ExpansionGenerator, models []string, cache *ExpansionCache, maxRetriesPerModel int) *QueryExpander {
	if maxRetriesPerModel <= 0 {
		maxRetriesPerModel = 2
	}
	return &QueryExpander{
		generator:  generator,
		models:     models,
		maxRetries: maxRetriesPerModel,
		cache:      cache,
	}
}

type failoverAction int

const (
	retrySameModel failoverAction = iota
	moveToNextModel
	abandonExpansion
)

// classifyExpansionError maps a generation failure to a failover transition:
// rate limits and model/auth errors make further attempts against the same
// model useless, anything else is worth one more try.
func classifyExpansionError(err error) failoverAction {
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return moveToNextModel
	case domain.IsKind(err, domain.ErrModelUnavailable), domain.IsKind(err, domain.ErrUnauthorized):
		return moveToNextModel
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return abandonExpansion
	default:
		return retrySameModel
	}
}

func (e *QueryExpander) Expand(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" || e.generator == nil || len(e.models) == 0 {
		return query
	}
	// Two tokens or fewer: the call overhead is not worth the enrichment.
	if len(strings.Fields(query)) <= 2 {
		return query
	}

	key := expansionCacheKey(query)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached
		}
	}

	for _, model := range e.models {
		for attempt := 1; attempt <= e.maxRetries; attempt++ {
			if ctx.Err() != nil {
				return query
			}

			reply, err := e.generator.GenerateExpansion(ctx, model, query)
			if err == nil {
				expanded := appendExpansion(query, reply)
				if expanded == query {
					return query
				}
				if e.cache != nil {
					e.cache.Put(key, expanded)
				}
				return expanded
			}

			slog.Debug("query_expansion_attempt_failed",
				"model", model,
				"attempt", attempt,
				"error", err,
			)
			action := classifyExpansionError(err)
			if action == abandonExpansion {
				return query
			}
			if action == moveToNextModel {
				break
			}
		}
	}

	return query
}

// appendExpansion attaches the generated synonyms to the original query.
// The result is accepted only when it is non-empty and strictly longer than
// the input; anything else falls back to the original.
func appendExpansion(query, reply string) string {
	reply = strings.Join(strings.Fields(reply), " ")
	if reply == "" {
		return query
	}
	expanded := query + " " + reply
	if runeLen(expanded) <= runeLen(query) {
		return query
	}
	return expanded
}

// expansionCacheKey normalizes a query for cache lookup: lowercase, stripped
// of punctuation, whitespace collapsed.
func expansionCacheKey(query string) string {
	return strings.Join(tokenizeLower(query), " ")
}
