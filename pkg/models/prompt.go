package models

import "time"

// PromptID is the opaque identifier the analytics service assigns to a
// submitted prompt. The zero value is the absent identifier.
type PromptID string

// IsZero reports whether the identifier is absent.
func (id PromptID) IsZero() bool { return id == "" }

func (id PromptID) String() string { return string(id) }

// PromptRequest is the body of a prompt or broadcast submission.
type PromptRequest struct {
	Prompt string `json:"prompt" yaml:"prompt"`
}

// PromptResponse is the body returned by a prompt or broadcast submission.
type PromptResponse struct {
	PromptID PromptID `json:"prompt_id" yaml:"prompt_id"`
}

// ScorePoint is a single (time, value) sample of a prompt's score series.
type ScorePoint struct {
	Time  string  `json:"time"  yaml:"time"` // ISO-8601, as sent by the service
	Value float64 `json:"value" yaml:"value"`
}

// Timestamp parses Time as RFC 3339.
func (p ScorePoint) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, p.Time)
}

// ScoreSeries is the score time series for one prompt, in the order the
// service returned it.
type ScoreSeries struct {
	PromptID PromptID     `json:"prompt_id" yaml:"prompt_id"`
	Scores   []ScorePoint `json:"scores"    yaml:"scores"`
}

// AnalysisRecord is one scored record produced by a broadcast prompt.
type AnalysisRecord struct {
	Time       string   `json:"time"        yaml:"time"`
	PromptID   PromptID `json:"prompt_id"   yaml:"prompt_id"`
	Value      float64  `json:"value"       yaml:"value"`
	AnnounceID string   `json:"announce_id" yaml:"announce_id"` // correlates to an external announcement
}

// Timestamp parses Time as RFC 3339.
func (r AnalysisRecord) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Time)
}

// AnalysisResult holds the records and recommended tickers for a broadcast
// prompt. Neither list is merged, deduplicated or re-ranked.
type AnalysisResult struct {
	PromptID           PromptID         `json:"prompt_id"           yaml:"prompt_id"`
	Records            []AnalysisRecord `json:"records"             yaml:"records"`
	RecommendedTickers []string         `json:"recommended_tickers" yaml:"recommended_tickers"`
}
