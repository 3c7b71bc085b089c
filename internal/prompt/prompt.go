// internal/prompt/prompt.go
// Package prompt builds the instruction prompt sent to the model.
package prompt

import "strings"

// Template is the instruction format the served model was tuned on. It has
// exactly two placeholders.
const Template = "\n### 指示:\n提供されたコンテキスト情報のみを使用して、質問に答えてください。\nコンテキストに答えがない場合は、「分かりません」と答えてください。\n\nコンテキスト:\n{context}\n\n質問:\n{question}\n\n### 応答:\n"

// Assemble substitutes context and question into Template verbatim. Neither
// value is escaped or trimmed, and placeholder-like text inside them is left alone.
func Assemble(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(Template)
}
