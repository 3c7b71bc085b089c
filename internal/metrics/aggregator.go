// internal/metrics/aggregator.go
package metrics

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/providers"
	"github.com/mwiater/sage/internal/util"
)

// Aggregator collects completion and answer timings. It is safe for concurrent use.
type Aggregator struct {
	mutex    sync.Mutex
	models   map[string]*ModelMetrics
	answers  AnswerStats
	filePath string
	now      func() time.Time
}

// NewAggregator creates an Aggregator seeded from filePath when it already exists.
// An empty filePath keeps metrics in memory only.
func NewAggregator(filePath string) *Aggregator {
	agg := &Aggregator{
		models:   make(map[string]*ModelMetrics),
		filePath: filePath,
		now:      time.Now,
	}
	agg.load()
	return agg
}

// load reads metrics from the JSON file into memory.
func (a *Aggregator) load() {
	if a.filePath == "" {
		return
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()

	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.LogMetricsEvent("ignoring unreadable metrics file %s: %v", a.filePath, err)
		return
	}
	a.answers = doc.Answers
	for _, m := range doc.Models {
		a.models[m.ModelName] = m
	}
}

// Save writes the current metrics to the JSON file.
func (a *Aggregator) Save() error {
	if a.filePath == "" {
		return nil
	}
	logging.LogMetricsEvent("Saving metrics to %s", a.filePath)

	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(a.filePath, data)
}

// Snapshot returns a copy of the aggregated metrics with models sorted by name.
func (a *Aggregator) Snapshot() Document {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	doc := Document{UpdatedUTC: a.now().UTC(), Answers: a.answers}
	for _, m := range a.models {
		copied := *m
		copied.PerformanceBuckets = append([]PerformanceBucket(nil), m.PerformanceBuckets...)
		doc.Models = append(doc.Models, &copied)
	}
	sort.Slice(doc.Models, func(i, j int) bool {
		return doc.Models[i].ModelName < doc.Models[j].ModelName
	})
	return doc
}

// RecordCompletion updates the metrics for the model that produced resp.
func (a *Aggregator) RecordCompletion(resp providers.CompletionResponse, elapsed time.Duration) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	modelMetrics := a.model(resp.Model)
	updateStats(&modelMetrics.OverallStats, resp, elapsed)

	bucket := getBucket(resp.PromptTokens)
	for i := range modelMetrics.PerformanceBuckets {
		if modelMetrics.PerformanceBuckets[i].Dimension == "input_tokens" && modelMetrics.PerformanceBuckets[i].Bucket == bucket {
			updateStats(&modelMetrics.PerformanceBuckets[i].Stats, resp, elapsed)
			return
		}
	}
	newBucket := PerformanceBucket{Dimension: "input_tokens", Bucket: bucket}
	updateStats(&newBucket.Stats, resp, elapsed)
	modelMetrics.PerformanceBuckets = append(modelMetrics.PerformanceBuckets, newBucket)
}

// RecordCompletionError counts a failed completion for model.
func (a *Aggregator) RecordCompletionError(model string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	modelMetrics := a.model(model)
	modelMetrics.OverallStats.TotalRequests++
	modelMetrics.OverallStats.Errors++
}

// RecordAnswer records one pipeline run. retrieval and elapsed are ignored for empty questions.
func (a *Aggregator) RecordAnswer(retrieval, elapsed time.Duration, empty bool, err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.answers.TotalRequests++
	switch {
	case empty:
		a.answers.EmptyQuestions++
	case err != nil:
		a.answers.Failures++
	default:
		updateRunningStat(&a.answers.RetrievalMillis, float64(retrieval)/float64(time.Millisecond))
		updateRunningStat(&a.answers.ElapsedMillis, float64(elapsed)/float64(time.Millisecond))
	}
}

// Close saves the metrics to disk.
func (a *Aggregator) Close() error {
	return a.Save()
}

func (a *Aggregator) model(name string) *ModelMetrics {
	if name == "" {
		name = "unknown"
	}
	modelMetrics, exists := a.models[name]
	if !exists {
		modelMetrics = &ModelMetrics{ModelName: name}
		a.models[name] = modelMetrics
	}
	modelMetrics.LastUpdatedUTC = a.now().UTC()
	return modelMetrics
}

// updateStats updates the running statistics with one completion.
func updateStats(stats *RunningAggregatedStats, resp providers.CompletionResponse, elapsed time.Duration) {
	stats.TotalRequests++
	updateRunningStat(&stats.CompletionMillis, float64(elapsed)/float64(time.Millisecond))

	var tokensPerSecond float64
	if elapsed > 0 {
		tokensPerSecond = float64(resp.CompletionTokens) / elapsed.Seconds()
	}
	updateRunningStat(&stats.TokensPerSecond, tokensPerSecond)
	updateRunningStat(&stats.InputTokens, float64(resp.PromptTokens))
	updateRunningStat(&stats.OutputTokens, float64(resp.CompletionTokens))
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// getBucket determines the performance bucket for a given number of prompt tokens.
func getBucket(inputTokens int) string {
	switch {
	case inputTokens <= 256:
		return "0-256"
	case inputTokens <= 1024:
		return "257-1024"
	case inputTokens <= 4096:
		return "1025-4096"
	default:
		return "4096+"
	}
}
