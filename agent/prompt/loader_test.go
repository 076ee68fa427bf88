package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if err := set.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, want := range []string{"{actions}", "{context}", "{language}"} {
		if !strings.Contains(set.Intent, want) {
			t.Fatalf("intent prompt missing placeholder %s", want)
		}
	}
	if !strings.Contains(set.Phrase, "{language}") {
		t.Fatal("phrase prompt missing language placeholder")
	}
}

func TestValidateReportsMissingPrompt(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	set.Shelf = ""
	err := set.Validate()
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}
