package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

type expansionCall struct {
	model string
	query string
}

type fakeExpansionGenerator struct {
	replies map[string]string
	errs    map[string][]error
	calls   []expansionCall
}

func (f *fakeExpansionGenerator) GenerateExpansion(ctx context.Context, model, query string) (string, error) {
	f.calls = append(f.calls, expansionCall{model: model, query: query})
	if queue := f.errs[model]; len(queue) > 0 {
		err := queue[0]
		f.errs[model] = queue[1:]
		if err != nil {
			return "", err
		}
	}
	return f.replies[model], nil
}

func TestExpandSkipsShortQueries(t *testing.T) {
	gen := &fakeExpansionGenerator{replies: map[string]string{"m1": "kartu tanda penduduk"}}
	exp := NewQueryExpander(gen, []string{"m1"}, nil, 2)

	got := exp.Expand(context.Background(), "ktp saya")
	if got != "ktp saya" {
		t.Fatalf("short query must pass through unchanged, got %q", got)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("two-token queries must not spend a generation call, got %d", len(gen.calls))
	}
}

func TestExpandAppendsSynonyms(t *testing.T) {
	gen := &fakeExpansionGenerator{replies: map[string]string{"m1": "kartu  tanda\tpenduduk"}}
	exp := NewQueryExpander(gen, []string{"m1"}, nil, 2)

	got := exp.Expand(context.Background(), "cara membuat ktp baru")
	want := "cara membuat ktp baru kartu tanda penduduk"
	if got != want {
		t.Fatalf("Expand = %q, want %q", got, want)
	}
}

func TestExpandEmptyReplyFallsBack(t *testing.T) {
	gen := &fakeExpansionGenerator{replies: map[string]string{"m1": "   "}}
	exp := NewQueryExpander(gen, []string{"m1"}, nil, 2)

	got := exp.Expand(context.Background(), "cara membuat ktp baru")
	if got != "cara membuat ktp baru" {
		t.Fatalf("blank reply must fall back to the original, got %q", got)
	}
}

func TestExpandCacheHitSkipsGenerator(t *testing.T) {
	gen := &fakeExpansionGenerator{replies: map[string]string{"m1": "kartu tanda penduduk"}}
	cache := NewExpansionCache(time.Minute, 10)
	exp := NewQueryExpander(gen, []string{"m1"}, cache, 2)

	first := exp.Expand(context.Background(), "cara membuat ktp baru")
	// Same query modulo case and punctuation hits the normalized key.
	second := exp.Expand(context.Background(), "Cara membuat KTP baru!")

	if first != second {
		t.Fatalf("cache returned a different expansion: %q vs %q", first, second)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected a single generation call, got %d", len(gen.calls))
	}
}

func TestExpandRateLimitMovesToNextModel(t *testing.T) {
	gen := &fakeExpansionGenerator{
		replies: map[string]string{"m2": "kartu tanda penduduk"},
		errs: map[string][]error{
			"m1": {domain.WrapError(domain.ErrRateLimited, "generate", errors.New("429"))},
		},
	}
	exp := NewQueryExpander(gen, []string{"m1", "m2"}, nil, 2)

	got := exp.Expand(context.Background(), "cara membuat ktp baru")
	if got != "cara membuat ktp baru kartu tanda penduduk" {
		t.Fatalf("expected the fallback model to serve, got %q", got)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("rate limit must not retry the same model, calls = %v", gen.calls)
	}
	if gen.calls[0].model != "m1" || gen.calls[1].model != "m2" {
		t.Fatalf("unexpected model order: %v", gen.calls)
	}
}

func TestExpandTemporaryErrorRetriesSameModel(t *testing.T) {
	gen := &fakeExpansionGenerator{
		replies: map[string]string{"m1": "kartu tanda penduduk"},
		errs: map[string][]error{
			"m1": {fmt.Errorf("transient: %w", domain.ErrTemporary), nil},
		},
	}
	exp := NewQueryExpander(gen, []string{"m1"}, nil, 2)

	got := exp.Expand(context.Background(), "cara membuat ktp baru")
	if got != "cara membuat ktp baru kartu tanda penduduk" {
		t.Fatalf("retry should recover, got %q", got)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected one retry against the same model, got %d calls", len(gen.calls))
	}
}

func TestExpandAbandonsOnContextCancellation(t *testing.T) {
	gen := &fakeExpansionGenerator{
		errs: map[string][]error{
			"m1": {fmt.Errorf("generate: %w", context.Canceled)},
		},
	}
	exp := NewQueryExpander(gen, []string{"m1", "m2"}, nil, 2)

	got := exp.Expand(context.Background(), "cara membuat ktp baru")
	if got != "cara membuat ktp baru" {
		t.Fatalf("cancellation must return the original query, got %q", got)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("cancellation must stop the failover loop, got %d calls", len(gen.calls))
	}
}

func TestClassifyExpansionError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want failoverAction
	}{
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "op", errors.New("429")), moveToNextModel},
		{"model missing", domain.WrapError(domain.ErrModelUnavailable, "op", errors.New("404")), moveToNextModel},
		{"unauthorized", domain.WrapError(domain.ErrUnauthorized, "op", errors.New("401")), moveToNextModel},
		{"canceled", context.Canceled, abandonExpansion},
		{"deadline", context.DeadlineExceeded, abandonExpansion},
		{"temporary", domain.WrapError(domain.ErrTemporary, "op", errors.New("503")), retrySameModel},
		{"unknown", errors.New("weird"), retrySameModel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyExpansionError(tc.err); got != tc.want {
				t.Fatalf("classifyExpansionError = %v, want %v", got, tc.want)
			}
		})
	}
}
