package retrieval

import "strings"

// tokenize splits text into lowercased whitespace-delimited terms with
// surrounding punctuation trimmed. Query and corpus text must go through
// the same function so BM25 term matching lines up.
func tokenize(text string) []string {
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}
