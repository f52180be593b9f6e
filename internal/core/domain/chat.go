package domain

// ChatRequest is a single-turn citizen question from WhatsApp or webchat.
// Channel session state lives in the channel integrations, not here.
type ChatRequest struct {
	Query     string        `json:"query"`
	VillageID string        `json:"village_id,omitempty"`
	Options   SearchOptions `json:"options,omitempty"`
}

type ChatAnswer struct {
	Text       string             `json:"text"`
	Confidence Confidence         `json:"confidence"`
	Sources    []DedupedCandidate `json:"sources,omitempty"`
	Conflicts  []ConflictInfo     `json:"conflicts,omitempty"`
	Intent     QueryIntent        `json:"intent"`
	Grounded   bool               `json:"grounded"`
}
