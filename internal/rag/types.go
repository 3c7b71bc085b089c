package rag

// Passage is one blank-line separated segment of the corpus.
type Passage struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// ScoredPassage is a passage plus its cosine similarity to the query.
type ScoredPassage struct {
	Passage
	Score float64 `json:"score"`
}
