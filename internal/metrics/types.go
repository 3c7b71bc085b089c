// internal/metrics/types.go
package metrics

import (
	"math"
	"time"
)

// Document is the JSON file written by the Aggregator.
type Document struct {
	UpdatedUTC time.Time       `json:"updated_utc"`
	Answers    AnswerStats     `json:"answers"`
	Models     []*ModelMetrics `json:"models"`
}

// AnswerStats aggregates end-to-end pipeline timings.
type AnswerStats struct {
	TotalRequests   int64       `json:"total_requests"`
	EmptyQuestions  int64       `json:"empty_questions"`
	Failures        int64       `json:"failures"`
	RetrievalMillis RunningStat `json:"retrieval_ms"`
	ElapsedMillis   RunningStat `json:"elapsed_ms"`
}

// ModelMetrics is the aggregated completion data for a single model.
type ModelMetrics struct {
	ModelName          string                 `json:"model_name"`
	LastUpdatedUTC     time.Time              `json:"last_updated_utc"`
	OverallStats       RunningAggregatedStats `json:"overall_stats"`
	PerformanceBuckets []PerformanceBucket    `json:"performance_buckets"`
}

// PerformanceBucket holds aggregated stats for a range of prompt sizes.
type PerformanceBucket struct {
	Dimension string                 `json:"dimension"`
	Bucket    string                 `json:"bucket"`
	Stats     RunningAggregatedStats `json:"stats"`
}

// RunningAggregatedStats stores the running statistical values for completion calls.
// It uses Welford's online algorithm for calculating mean and standard deviation.
type RunningAggregatedStats struct {
	TotalRequests int64 `json:"total_requests"`
	Errors        int64 `json:"errors"`

	CompletionMillis RunningStat `json:"completion_ms"`
	TokensPerSecond  RunningStat `json:"tokens_per_second"`
	InputTokens      RunningStat `json:"input_tokens"`
	OutputTokens     RunningStat `json:"output_tokens"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// StdDev returns the sample standard deviation.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}
