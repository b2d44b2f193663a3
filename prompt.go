package docent

import (
	"strings"

	"github.com/poiesic/docent/core"
)

const answerSystemPrompt = "You are a factual, careful assistant that answers strictly from the supplied documents."

// buildAnswerPrompt assembles the generation prompt from retrieved
// contexts and the session's conversational state. The summary stands in
// for everything older than the recent window.
func buildAnswerPrompt(question string, contexts []string, summary string, recent []*core.Message) string {
	var b strings.Builder

	b.WriteString("Use the context below to answer the question. ")
	b.WriteString("If a direct answer is not present, summarize the most relevant information from the context related to the question. ")
	b.WriteString("Do not make up answers.\n\n")

	if summary != "" {
		b.WriteString("Conversation summary:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, message := range recent {
			b.WriteString(message.Role.String())
			b.WriteString(": ")
			b.WriteString(message.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Context:\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nGive a detailed, 5-8 sentence answer in a professional tone.\n")
	b.WriteString("If absolutely nothing relevant is found, then respond:\n")
	b.WriteString("\"" + FallbackAnswer + "\"\n")
	return b.String()
}
