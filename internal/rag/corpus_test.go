package rag

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSplitPassagesKeepsSegmentsVerbatim(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "two passages", in: "Apples are red.\n\nParis is in France.", want: []string{"Apples are red.", "Paris is in France."}},
		{name: "empty segment kept", in: "a\n\n\n\nb", want: []string{"a", "", "b"}},
		{name: "odd newline kept", in: "a\n\n\nb", want: []string{"a", "\nb"}},
		{name: "trailing separator", in: "a\n\n", want: []string{"a", ""}},
		{name: "empty text", in: "", want: []string{""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SplitPassages(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SplitPassages(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLoadCorpusMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.txt")
	_, err := LoadCorpus(path)
	if !errors.Is(err, ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected path in error, got %q", err.Error())
	}
}

func TestLoadCorpusReadsPassages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.txt")
	if err := os.WriteFile(path, []byte("りんごは赤い果物です。\n\nパリはフランスの首都です。"), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	passages, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus returned error: %v", err)
	}
	if len(passages) != 2 || passages[1] != "パリはフランスの首都です。" {
		t.Fatalf("unexpected passages: %q", passages)
	}
}

func TestLoadCorpusRejectsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if _, err := LoadCorpus(path); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestNewPassagesAssignsIDsAndPositions(t *testing.T) {
	passages := NewPassages([]string{"a", "b", "c"})
	seen := make(map[string]bool)
	for i, p := range passages {
		if p.Position != i {
			t.Fatalf("passage %d has position %d", i, p.Position)
		}
		if _, err := uuid.Parse(p.ID); err != nil {
			t.Fatalf("passage %d id %q is not a uuid: %v", i, p.ID, err)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
}
