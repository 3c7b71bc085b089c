// internal/accuracy/types.go
package accuracy

// PromptSuite defines the accuracy test cases loaded from JSON.
type PromptSuite struct {
	Tests []PromptTest `json:"tests"`
}

// PromptTest is one question and the terms a correct answer contains. An empty
// Expected list means the corpus does not answer the question and the model
// should say so.
type PromptTest struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Expected []string `json:"expected"`
	Category string   `json:"category,omitempty"`
}

// AccuracyResult records a single answer and its correctness.
type AccuracyResult struct {
	Timestamp string   `json:"timestamp"`
	Model     string   `json:"model"`
	PromptID  int      `json:"promptId"`
	Question  string   `json:"question"`
	Expected  []string `json:"expected"`
	Response  string   `json:"response"`
	Correct   bool     `json:"correct"`
	ElapsedMs int64    `json:"elapsed_ms"`
	Category  string   `json:"category,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Summary aggregates a suite run.
type Summary struct {
	Total         int     `json:"total"`
	Correct       int     `json:"correct"`
	Errors        int     `json:"errors"`
	Accuracy      float64 `json:"accuracy"`
	MeanElapsedMs float64 `json:"mean_elapsed_ms"`
}
