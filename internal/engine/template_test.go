package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validTemplate = `{
	"pageDimensions": [300, 400],
	"bubbleDimensions": [20, 20],
	"fieldBlocks": {
		"MCQBlock1": {"fieldType": "QTYPE_MCQ4", "origin": [65, 60]}
	}
}`

const validAnswerKey = `{
	"answers": {"q1": "A", "q2": "B"},
	"marking": {"correct": 1, "incorrect": 0, "unmarked": 0}
}`

// TestValidateTemplateFiles accepts a well-formed template pair.
func TestValidateTemplateFiles(t *testing.T) {
	tpl := writeTemp(t, "template.json", validTemplate)
	key := writeTemp(t, "evaluation.json", validAnswerKey)

	if err := ValidateTemplateFiles(tpl, key); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// TestValidateTemplateMissingFields rejects a template without field blocks.
func TestValidateTemplateMissingFields(t *testing.T) {
	tpl := writeTemp(t, "template.json", `{"pageDimensions": [300, 400]}`)
	key := writeTemp(t, "evaluation.json", validAnswerKey)

	err := ValidateTemplateFiles(tpl, key)
	if err == nil {
		t.Fatal("expected schema error")
	}
	if !strings.Contains(err.Error(), "template") {
		t.Fatalf("error = %v, want template context", err)
	}
}

// TestValidateAnswerKeyEmptyAnswers rejects an answer key with no answers.
func TestValidateAnswerKeyEmptyAnswers(t *testing.T) {
	tpl := writeTemp(t, "template.json", validTemplate)
	key := writeTemp(t, "evaluation.json", `{"answers": {}}`)

	if err := ValidateTemplateFiles(tpl, key); err == nil {
		t.Fatal("expected schema error")
	}
}

// TestValidateTemplateFileMissing surfaces the read error.
func TestValidateTemplateFileMissing(t *testing.T) {
	key := writeTemp(t, "evaluation.json", validAnswerKey)
	if err := ValidateTemplateFiles("/nope/template.json", key); err == nil {
		t.Fatal("expected file error")
	}
}
