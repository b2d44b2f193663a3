package memory

import (
	"strings"

	"github.com/poiesic/docent/core"
)

// buildCompactionPrompt assembles the summarization prompt from the
// existing summary and the messages being folded into it.
func buildCompactionPrompt(existingSummary string, messages []*core.Message) string {
	var conversation strings.Builder
	for _, message := range messages {
		conversation.WriteString(message.Role.String())
		conversation.WriteString(": ")
		conversation.WriteString(message.Content)
		conversation.WriteString("\n")
	}

	if existingSummary == "" {
		existingSummary = "None"
	}

	var b strings.Builder
	b.WriteString("You are summarizing a conversation for memory compression.\n\n")
	b.WriteString("Existing summary:\n")
	b.WriteString(existingSummary)
	b.WriteString("\n\nNew conversation messages:\n")
	b.WriteString(conversation.String())
	b.WriteString("\nUpdate the summary in 4-6 sentences.\n")
	b.WriteString("Focus on:\n")
	b.WriteString("- User intent\n")
	b.WriteString("- Important facts\n")
	b.WriteString("- Decisions made\n")
	b.WriteString("- Preferences\n")
	return b.String()
}
