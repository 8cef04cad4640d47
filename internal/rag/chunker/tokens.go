package chunker

import "strings"

// Tokens splits on whitespace. Counting words keeps chunk boundaries independent of the embedding provider.
func Tokens(text string) []string {
	return strings.Fields(text)
}

func CountTokens(text string) int {
	return len(Tokens(text))
}

// StripOverlap returns the chunk text without the tokens repeated from the previous chunk.
func StripOverlap(text string, overlap int) string {
	tokens := Tokens(text)
	if overlap >= len(tokens) {
		return ""
	}
	return strings.Join(tokens[overlap:], " ")
}
