package models

// QueryType classifies what the user is asking for.
type QueryType string

const (
	QueryMetrics      QueryType = "metrics"
	QueryComparison   QueryType = "comparison"
	QueryTrend        QueryType = "trend"
	QueryDistribution QueryType = "distribution"
	QueryCorrelation  QueryType = "correlation"
)

// Valid reports whether t is one of the known query types.
func (t QueryType) Valid() bool {
	switch t {
	case QueryMetrics, QueryComparison, QueryTrend, QueryDistribution, QueryCorrelation:
		return true
	}
	return false
}

// Analysis is the structured reading of a natural-language question.
type Analysis struct {
	Intent                 string         `json:"intent"`
	Entities               []string       `json:"entities"`
	QueryType              QueryType      `json:"queryType"`
	Timeframe              string         `json:"timeframe,omitempty"`
	Filters                map[string]any `json:"filters,omitempty"`
	SuggestedVisualization string         `json:"suggestedVisualization"`
}

// Insights is the narrative part of a response. KeyInsights and
// Recommendations are never empty.
type Insights struct {
	Summary         string   `json:"summary"`
	KeyInsights     []string `json:"keyInsights"`
	Recommendations []string `json:"recommendations"`
}
