package embed

import "strings"

// MinContentLength is the shortest message worth embedding. Anything shorter
// carries too little signal to cluster.
const MinContentLength = 20

// costPerMillionTokens is the text-embedding-3-small price in USD.
const costPerMillionTokens = 0.02

// Embeddable reports whether a message's content should be embedded at all.
// Skips short messages, bare links, and bot command invocations.
func Embeddable(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < MinContentLength {
		return false
	}
	if isURLOnly(trimmed) {
		return false
	}
	if isBotCommand(trimmed) {
		return false
	}
	return true
}

// isURLOnly reports whether the content is nothing but links.
func isURLOnly(content string) bool {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
			return false
		}
	}
	return true
}

// isBotCommand reports whether the content invokes a chat bot command.
func isBotCommand(content string) bool {
	return strings.HasPrefix(content, "!") || strings.HasPrefix(content, "/")
}

// EstimateTokens approximates the token count of a text as chars/4, the rough
// rule of thumb for English prose.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// EstimateCost returns the approximate USD cost of embedding the given texts
// with text-embedding-3-small.
func EstimateCost(texts []string) (tokens int, usd float64) {
	for _, t := range texts {
		tokens += EstimateTokens(t)
	}
	usd = float64(tokens) / 1_000_000 * costPerMillionTokens
	return tokens, usd
}
