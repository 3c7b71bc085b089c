package prompt

import (
	"strings"
	"testing"
)

func TestAssembleSubstitutesBothPlaceholders(t *testing.T) {
	got := Assemble("パリはフランスの首都です。", "フランスの首都は?")
	want := "\n### 指示:\n提供されたコンテキスト情報のみを使用して、質問に答えてください。\nコンテキストに答えがない場合は、「分かりません」と答えてください。\n\nコンテキスト:\nパリはフランスの首都です。\n\n質問:\nフランスの首都は?\n\n### 応答:\n"
	if got != want {
		t.Fatalf("unexpected prompt:\n got %q\nwant %q", got, want)
	}
}

func TestAssembleKeepsQuestionUntrimmed(t *testing.T) {
	got := Assemble("ctx", "  why?  \n")
	if !strings.Contains(got, "質問:\n  why?  \n\n\n### 応答:") {
		t.Fatalf("question was altered: %q", got)
	}
}

func TestAssembleEmptyInputs(t *testing.T) {
	got := Assemble("", "")
	if !strings.Contains(got, "コンテキスト:\n\n\n質問:\n\n\n### 応答:\n") {
		t.Fatalf("unexpected prompt for empty inputs: %q", got)
	}
	if strings.Contains(got, "{context}") || strings.Contains(got, "{question}") {
		t.Fatalf("placeholders left in prompt: %q", got)
	}
}

func TestAssembleDoesNotExpandPlaceholdersInValues(t *testing.T) {
	got := Assemble("{question}", "{context}")
	if !strings.Contains(got, "コンテキスト:\n{question}\n\n質問:\n{context}\n") {
		t.Fatalf("values were re-substituted: %q", got)
	}
}
