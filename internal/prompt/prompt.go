// Package prompt assembles the message list sent to the completion
// provider, injecting document context as a single system turn.
package prompt

import (
	"strings"
	"unicode/utf8"

	"docchat/internal/docs"
	"docchat/internal/llm"
)

const (
	preamble = "You are an AI assistant that uses a knowledge base to answer questions.\nHere is the content from the documents:\n\n"

	instruction = "Use ONLY the information provided in these documents to answer questions. " +
		"If you don't know the answer based on these documents, say so clearly. " +
		"Do not make up information."
)

// Options controls assembly. ContextCharLimit caps the document block
// (not the conversation history); zero means unlimited.
type Options struct {
	ContextCharLimit int
}

// Assemble returns the message list for a completion request. With no
// documents the history passes through unchanged; otherwise exactly one
// system turn carrying the document context is prepended.
func Assemble(history []llm.Message, documents []docs.Document, opts Options) []llm.Message {
	if len(documents) == 0 {
		return history
	}

	var b strings.Builder
	for _, doc := range documents {
		b.WriteString("Document: ")
		b.WriteString(doc.Title)
		b.WriteString("\nContent: ")
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	context := b.String()
	if opts.ContextCharLimit > 0 && len(context) > opts.ContextCharLimit {
		cut := opts.ContextCharLimit
		// Back up to a rune boundary so the cap never emits invalid UTF-8
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		context = context[:cut]
	}

	system := llm.Message{
		Role:    llm.RoleSystem,
		Content: preamble + context + "\n" + instruction,
	}

	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, system)
	out = append(out, history...)
	return out
}
