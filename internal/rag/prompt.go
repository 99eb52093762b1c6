package rag

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/history"
)

const (
	systemPrompt = `You are a document question-answering assistant. Your purpose is to give precise, concise answers based EXCLUSIVELY on the document context and the conversation history you are given.

Key instructions:
1. Source of truth: base every answer strictly on the "Document Context" and the "Conversation History". Do not use outside knowledge.
2. Continuity: use the "Conversation History" to resolve follow-up questions and ambiguous references ("and the other topic...", "explain more").
3. Relevance: answer the "User Question" directly and leave out unrelated information.
4. Uncertainty: if the answer is not in any of the sources, say so plainly: "I could not find enough information in the documents to answer that question."
5. Synthesis: when the context comes from several fragments, combine it into one coherent answer.
6. Formatting: use Markdown (bold, lists) to structure the answer.
7. Language: always answer in the same language as the "User Question".`

	userTemplate = `**Conversation History:**
%s

**Document Context:**
%s

**User Question:**
%s

**Answer:**`

	summaryInstruction = "Please provide a comprehensive summary of this document."

	noHistory        = "No previous conversation history."
	noSummaryHistory = "No previous history for this summary request."

	noLLMAnswer    = "No LLM service available. Please configure API keys."
	fragmentJoiner = "\n\n---\n\n"
)

// summaryKeywords trigger the whole-document summary path. The Spanish
// phrases come first; the English ones serve English-language queries.
var summaryKeywords = []string{
	"resume", "resumen", "summary", "sumariza", "de qué se trata",
	"acerca de qué es", "tema principal", "idea general",
	"summarize", "summarise", "main topic", "main idea", "what is this document about",
}

// IsSummaryQuery reports whether query asks for a summary.
func IsSummaryQuery(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range summaryKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// formatContext renders ranked chunks, most relevant first.
func formatContext(chunks []RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		header := fmt.Sprintf("Fragment %d", i+1)
		if name := c.Metadata["filename"]; name != "" {
			index := c.Metadata["chunk_index"]
			if index == "" {
				index = "N/A"
			}
			header += fmt.Sprintf(" (Source: %s, Chunk: %s)", name, index)
		}
		parts[i] = header + ":\n" + c.Content
	}
	return strings.Join(parts, fragmentJoiner)
}

// formatHistory renders entries as alternating user/assistant turns.
func formatHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return noHistory
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = "User: " + e.Query + "\nAssistant: " + e.Answer
	}
	return strings.Join(parts, fragmentJoiner)
}

func userMessage(historyText, contextText, query string) string {
	return fmt.Sprintf(userTemplate, historyText, contextText, query)
}
