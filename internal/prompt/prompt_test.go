package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"docchat/internal/docs"
	"docchat/internal/llm"
)

func history() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: "What is the revenue?"},
		{Role: llm.RoleAssistant, Content: "Let me check."},
		{Role: llm.RoleUser, Content: "And the retention rate?"},
	}
}

func TestAssemble_NoDocuments(t *testing.T) {
	turns := history()
	got := Assemble(turns, nil, Options{})

	if len(got) != len(turns) {
		t.Fatalf("Assemble returned %d messages, want %d unchanged", len(got), len(turns))
	}
	for i := range turns {
		if got[i] != turns[i] {
			t.Errorf("message %d changed: got %+v, want %+v", i, got[i], turns[i])
		}
	}
}

func TestAssemble_SingleSystemTurn(t *testing.T) {
	documents := []docs.Document{
		{ID: "1", Title: "Annual Report", Content: "Revenue was $87.3 million."},
		{ID: "2", Title: "Retention", Content: "Retention rate was 91.3%."},
	}
	turns := history()
	got := Assemble(turns, documents, Options{})

	if len(got) != len(turns)+1 {
		t.Fatalf("Assemble returned %d messages, want %d", len(got), len(turns)+1)
	}

	system := 0
	for _, m := range got {
		if m.Role == llm.RoleSystem {
			system++
		}
	}
	if system != 1 {
		t.Fatalf("assembled prompt has %d system turns, want exactly 1", system)
	}
	if got[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", got[0].Role)
	}

	// History follows unchanged
	for i, turn := range turns {
		if got[i+1] != turn {
			t.Errorf("history turn %d changed: got %+v, want %+v", i, got[i+1], turn)
		}
	}
}

func TestAssemble_DocumentFormatting(t *testing.T) {
	documents := []docs.Document{
		{ID: "1", Title: "First", Content: "alpha"},
		{ID: "2", Title: "Second", Content: "beta"},
	}
	got := Assemble(history(), documents, Options{})

	content := got[0].Content
	first := "Document: First\nContent: alpha\n\n"
	second := "Document: Second\nContent: beta\n\n"
	if !strings.Contains(content, first) {
		t.Errorf("system turn missing %q", first)
	}
	if !strings.Contains(content, second) {
		t.Errorf("system turn missing %q", second)
	}
	if strings.Index(content, first) > strings.Index(content, second) {
		t.Error("documents not in collection order")
	}
	if !strings.Contains(content, "Use ONLY the information provided in these documents") {
		t.Error("system turn missing grounding instruction")
	}
}

func TestAssemble_ContextCharLimit(t *testing.T) {
	documents := []docs.Document{
		{ID: "1", Title: "Big", Content: strings.Repeat("x", 10000)},
	}

	capped := Assemble(history(), documents, Options{ContextCharLimit: 100})
	uncapped := Assemble(history(), documents, Options{})

	if len(uncapped[0].Content) <= len(capped[0].Content) {
		t.Error("cap did not shrink the system turn")
	}
	// Only the document block is capped, the instruction survives
	if !strings.Contains(capped[0].Content, "Use ONLY the information provided in these documents") {
		t.Error("cap removed the grounding instruction")
	}
	// Zero means unlimited
	unlimited := Assemble(history(), documents, Options{ContextCharLimit: 0})
	if !strings.Contains(unlimited[0].Content, strings.Repeat("x", 10000)) {
		t.Error("zero limit truncated the document block")
	}
}

func TestAssemble_ContextCharLimitKeepsValidUTF8(t *testing.T) {
	documents := []docs.Document{
		{ID: "1", Title: "Multibyte", Content: strings.Repeat("日本語テキスト", 500)},
	}

	// Sweep the cap across rune boundaries; output must stay valid UTF-8
	for limit := 80; limit < 90; limit++ {
		got := Assemble(history(), documents, Options{ContextCharLimit: limit})
		if !utf8.ValidString(got[0].Content) {
			t.Errorf("limit %d produced invalid UTF-8 in the system turn", limit)
		}
	}
}

func TestAssemble_DoesNotMutateHistory(t *testing.T) {
	turns := history()
	want := history()
	_ = Assemble(turns, []docs.Document{{ID: "1", Title: "T", Content: "c"}}, Options{})

	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("Assemble mutated history turn %d", i)
		}
	}
}
