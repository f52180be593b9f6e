package domain

import "time"

type SourceType string

const (
	SourceKnowledge SourceType = "knowledge"
	SourceDocument  SourceType = "document"
)

// SearchCandidate is one fragment returned by the vector store. It lives only
// for the duration of a single RetrieveContext call.
type SearchCandidate struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Score      float64    `json:"score"`
	SourceType SourceType `json:"source_type"`
	Source     string     `json:"source"`
	Category   string     `json:"category,omitempty"`
	Section    string     `json:"section,omitempty"`
	VillageID  string     `json:"village_id,omitempty"`
}

// RankedCandidate carries the fused score after reciprocal-rank fusion.
// VectorScore preserves the raw similarity the vector store reported.
type RankedCandidate struct {
	SearchCandidate
	VectorScore float64 `json:"vector_score"`
}

// DedupedCandidate is a ranked candidate that survived deduplication.
// ConflictGroup is only meaningful when HasConflict is true.
type DedupedCandidate struct {
	RankedCandidate
	ConflictGroup int  `json:"conflict_group,omitempty"`
	HasConflict   bool `json:"has_conflict,omitempty"`
}

type ConflictInfo struct {
	Source1         string `json:"source1"`
	Source2         string `json:"source2"`
	ContentSnippet1 string `json:"content_snippet1"`
	ContentSnippet2 string `json:"content_snippet2"`
}

type ConfidenceLevel string

const (
	ConfidenceNone   ConfidenceLevel = "none"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

type Confidence struct {
	Level           ConfidenceLevel `json:"level"`
	Score           float64         `json:"score"`
	Reason          string          `json:"reason"`
	SuggestFallback bool            `json:"suggest_fallback"`
}

// RAGResult is the complete outcome of one retrieval call. It is always
// well-formed: upstream failures produce an empty result with
// Confidence.Level == ConfidenceNone, never an error.
type RAGResult struct {
	RelevantChunks []DedupedCandidate `json:"relevant_chunks"`
	ContextString  string             `json:"context_string"`
	TotalResults   int                `json:"total_results"`
	SearchTimeMs   int64              `json:"search_time_ms"`
	Confidence     Confidence         `json:"confidence"`
	Conflicts      []ConflictInfo     `json:"conflicts"`
	Intent         QueryIntent        `json:"intent"`
}

type QueryIntent string

const (
	IntentSkip     QueryIntent = "skip"
	IntentRequired QueryIntent = "required"
	IntentOptional QueryIntent = "optional"
)

type QueryIntentResult struct {
	Intent     QueryIntent `json:"intent"`
	Categories []string    `json:"categories,omitempty"`
}

// IntentDecision is the raw output of the delegated micro-classifier.
type IntentDecision struct {
	Decision   string   `json:"decision"`
	Confidence float64  `json:"confidence"`
	Categories []string `json:"categories,omitempty"`
}

const (
	DecisionRAGRequired = "RAG_REQUIRED"
	DecisionRAGSkip     = "RAG_SKIP"
)

// SearchOptions are caller-facing retrieval options. Zero values mean
// defaults; expansion and hybrid search are on unless disabled.
type SearchOptions struct {
	TopK             int          `json:"top_k,omitempty"`
	MinScore         float64      `json:"min_score,omitempty"`
	Categories       []string     `json:"categories,omitempty"`
	SourceTypes      []SourceType `json:"source_types,omitempty"`
	VillageID        string       `json:"village_id,omitempty"`
	DisableExpansion bool         `json:"disable_expansion,omitempty"`
	DisableHybrid    bool         `json:"disable_hybrid,omitempty"`
}

func (o SearchOptions) Normalize(t RetrievalTuning) SearchOptions {
	out := o
	if out.TopK <= 0 {
		out.TopK = t.TopK
	}
	if out.MinScore <= 0 {
		out.MinScore = t.MinScore
	}
	if len(out.SourceTypes) == 0 {
		out.SourceTypes = []SourceType{SourceKnowledge, SourceDocument}
	}
	return out
}

// VectorQuery is the filter set handed to the vector store gateways.
type VectorQuery struct {
	TopK        int
	MinScore    float64
	Categories  []string
	SourceTypes []SourceType
	VillageID   string
}

// RetrievalTuning holds the empirically tuned constants of the ranking
// pipeline. The values come from production tuning; change them through the
// config overlay, not in code.
type RetrievalTuning struct {
	TopK           int     `yaml:"top_k"`
	MinScore       float64 `yaml:"min_score"`
	ScoreFloor     float64 `yaml:"score_floor"`
	OptionalRelief float64 `yaml:"optional_relief"`

	RRFK           int     `yaml:"rrf_k"`
	VectorWeight   float64 `yaml:"vector_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	RRFBoost       float64 `yaml:"rrf_boost"`
	KnowledgeBoost float64 `yaml:"knowledge_boost"`
	PhraseBonus    float64 `yaml:"phrase_bonus"`
	BigramBonus    float64 `yaml:"bigram_bonus"`

	DuplicateJaccard float64 `yaml:"duplicate_jaccard"`
	ConflictJaccard  float64 `yaml:"conflict_jaccard"`

	IntentMinConfidence float64 `yaml:"intent_min_confidence"`

	TopWeight         float64 `yaml:"top_weight"`
	AvgWeight         float64 `yaml:"avg_weight"`
	CountWeight       float64 `yaml:"count_weight"`
	ConsistencyWeight float64 `yaml:"consistency_weight"`

	MaxContextChars int `yaml:"max_context_chars"`
	SnippetChars    int `yaml:"snippet_chars"`

	ExpansionCacheTTL      time.Duration `yaml:"expansion_cache_ttl"`
	ExpansionCacheCapacity int           `yaml:"expansion_cache_capacity"`
	ExpansionMaxRetries    int           `yaml:"expansion_max_retries"`
}

func DefaultRetrievalTuning() RetrievalTuning {
	return RetrievalTuning{
		TopK:           8,
		MinScore:       0.65,
		ScoreFloor:     0.45,
		OptionalRelief: 0.9,

		RRFK:           60,
		VectorWeight:   0.7,
		KeywordWeight:  0.3,
		RRFBoost:       0.2,
		KnowledgeBoost: 0.02,
		PhraseBonus:    3.0,
		BigramBonus:    1.5,

		DuplicateJaccard: 0.70,
		ConflictJaccard:  0.35,

		IntentMinConfidence: 0.6,

		TopWeight:         0.5,
		AvgWeight:         0.25,
		CountWeight:       0.15,
		ConsistencyWeight: 0.10,

		MaxContextChars: 5000,
		SnippetChars:    600,

		ExpansionCacheTTL:      15 * time.Minute,
		ExpansionCacheCapacity: 200,
		ExpansionMaxRetries:    2,
	}
}

func (t RetrievalTuning) Normalize() RetrievalTuning {
	out := t
	def := DefaultRetrievalTuning()

	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.MinScore <= 0 || out.MinScore > 1 {
		out.MinScore = def.MinScore
	}
	if out.ScoreFloor <= 0 || out.ScoreFloor > out.MinScore {
		out.ScoreFloor = def.ScoreFloor
	}
	if out.OptionalRelief <= 0 || out.OptionalRelief > 1 {
		out.OptionalRelief = def.OptionalRelief
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	if out.VectorWeight <= 0 {
		out.VectorWeight = def.VectorWeight
	}
	if out.KeywordWeight <= 0 {
		out.KeywordWeight = def.KeywordWeight
	}
	if out.RRFBoost <= 0 {
		out.RRFBoost = def.RRFBoost
	}
	if out.KnowledgeBoost < 0 {
		out.KnowledgeBoost = def.KnowledgeBoost
	}
	if out.PhraseBonus <= 0 {
		out.PhraseBonus = def.PhraseBonus
	}
	if out.BigramBonus <= 0 {
		out.BigramBonus = def.BigramBonus
	}
	if out.DuplicateJaccard <= 0 || out.DuplicateJaccard > 1 {
		out.DuplicateJaccard = def.DuplicateJaccard
	}
	if out.ConflictJaccard <= 0 || out.ConflictJaccard >= out.DuplicateJaccard {
		out.ConflictJaccard = def.ConflictJaccard
	}
	if out.IntentMinConfidence <= 0 || out.IntentMinConfidence > 1 {
		out.IntentMinConfidence = def.IntentMinConfidence
	}
	if out.TopWeight <= 0 {
		out.TopWeight = def.TopWeight
	}
	if out.AvgWeight <= 0 {
		out.AvgWeight = def.AvgWeight
	}
	if out.CountWeight <= 0 {
		out.CountWeight = def.CountWeight
	}
	if out.ConsistencyWeight <= 0 {
		out.ConsistencyWeight = def.ConsistencyWeight
	}
	if out.MaxContextChars <= 0 {
		out.MaxContextChars = def.MaxContextChars
	}
	if out.SnippetChars <= 0 || out.SnippetChars > out.MaxContextChars {
		out.SnippetChars = def.SnippetChars
	}
	if out.ExpansionCacheTTL <= 0 {
		out.ExpansionCacheTTL = def.ExpansionCacheTTL
	}
	if out.ExpansionCacheCapacity <= 0 {
		out.ExpansionCacheCapacity = def.ExpansionCacheCapacity
	}
	if out.ExpansionMaxRetries <= 0 {
		out.ExpansionMaxRetries = def.ExpansionMaxRetries
	}
	return out
}
