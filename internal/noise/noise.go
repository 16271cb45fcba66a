// Package noise filters UI chrome out of scraped chat content.
//
// The automated application's DOM mixes real conversation text with model
// picker labels, keyboard hints, file tree entries and progress spinners.
// The classifier is a pure function over a fixed rule list so the polling
// loop can drop junk before it ever reaches the stream buffer.
package noise

import (
	"regexp"
	"strings"
)

const (
	// MinLength is the shortest fragment accepted as real content.
	MinLength = 20
	// MaxLength guards against whole-page dumps sneaking in as one candidate.
	MaxLength = 50000
)

var patterns = []*regexp.Regexp{
	// Model name labels standing alone.
	regexp.MustCompile(`(?i)^GPT-?OS{1,2}\s+\d+\w*\s*\([^)]+\)\s*$`),
	regexp.MustCompile(`(?i)^Claude\s+\d+(\.\d+)?\s*\w*\s*(\([^)]+\))?\s*$`),
	regexp.MustCompile(`(?i)^Gemini\s+\d+(\.\d+)?\s*\w*\s*(\([^)]+\))?\s*$`),
	regexp.MustCompile(`(?i)^Llama\s+\d+(\.\d+)?\s*\w*\s*$`),
	regexp.MustCompile(`(?i)^GPT-?4[ov]?\s*(-turbo|-mini)?\s*$`),
	regexp.MustCompile(`(?i)^o[123]-?(mini|preview)?\s*$`),
	regexp.MustCompile(`(?i)^Anthropic\s+`),
	regexp.MustCompile(`(?i)^Mistral\s+`),
	regexp.MustCompile(`(?i)^DeepSeek\s+`),
	regexp.MustCompile(`(?i)Claude Opus`),
	regexp.MustCompile(`(?i)Claude Sonnet`),
	regexp.MustCompile(`(?i)Gemini \d+ Pro`),

	// UI labels from the chat panel.
	regexp.MustCompile(`(?i)^AI may make mistakes`),
	regexp.MustCompile(`(?i)^Double-check all generated code`),
	regexp.MustCompile(`(?i)^Agent will execute tasks directly`),
	regexp.MustCompile(`(?i)^Agent can plan before executing`),
	regexp.MustCompile(`(?i)^Use for (simple|deep|complex)`),
	regexp.MustCompile(`(?i)^Conversation mode$`),
	regexp.MustCompile(`(?i)^Ask anything`),
	regexp.MustCompile(`(?i)^Ctrl\+[A-Z]`),
	regexp.MustCompile(`(?i)^@ to mention`),
	regexp.MustCompile(`(?i)^/ for workflows$`),

	// Model selector dropdown contents.
	regexp.MustCompile(`(?i)Add\s*context`),
	regexp.MustCompile(`(?i)^Images$`),
	regexp.MustCompile(`(?i)^Mentions$`),
	regexp.MustCompile(`(?i)^Workflows$`),
	regexp.MustCompile(`(?i)^Planning$`),
	regexp.MustCompile(`(?i)^Fast$`),
	regexp.MustCompile(`(?i)^Model$`),
	regexp.MustCompile(`(?i)^New$`),
	regexp.MustCompile(`(?i)^Claude.*\(Thinking\)\s*$`),
	regexp.MustCompile(`(?i)^Claude Sonnet[\s\d.]*$`),
	regexp.MustCompile(`(?i)^Claude Opus[\s\d.]*$`),
	regexp.MustCompile(`(?i)^Gemini\s*\d+[\s\w()]*$`),
	regexp.MustCompile(`(?i)^GPT-OSS[\s\d\w()]*$`),
	regexp.MustCompile(`(?i)^\s*\((High|Low|Medium)\)\s*$`),

	// File paths, Windows and Unix.
	regexp.MustCompile(`^[a-zA-Z]:\\[^<>:"|?*]+$`),
	regexp.MustCompile(`^/[^<>:"|?*]+$`),

	// Folder and path segments from the file tree.
	regexp.MustCompile(`(?i)^\.agent\\?$`),
	regexp.MustCompile(`^\\+$`),
	regexp.MustCompile(`(?i)^workflows?$`),
	regexp.MustCompile(`(?i)^scripts?$`),
	regexp.MustCompile(`(?i)^backend$`),
	regexp.MustCompile(`(?i)^frontend$`),
	regexp.MustCompile(`(?i)^node_modules$`),
	regexp.MustCompile(`^[a-zA-Z0-9_-]+\\$`),

	// Short UI verbs and counters.
	regexp.MustCompile(`(?i)^(Accept|Reject|Cancel|Submit|Send|Copy|Edit|Delete)$`),
	regexp.MustCompile(`(?i)^(Yes|No|OK|Done|Close)$`),
	regexp.MustCompile(`(?i)^\d+\s*(tokens?|words?|chars?)\s*$`),
	regexp.MustCompile(`(?i)^Model:?\s*$`),
	regexp.MustCompile(`(?i)^Response:?\s*$`),
	regexp.MustCompile(`(?i)^Thinking\.{0,3}$`),
	regexp.MustCompile(`(?i)^Loading\.{0,3}$`),
	regexp.MustCompile(`(?i)^Generating\.{0,3}$`),
	regexp.MustCompile(`(?i)^Thinking for \d+s$`),
	regexp.MustCompile(`(?i)^Progress Updates$`),
	regexp.MustCompile(`(?i)^Show items analyzed$`),
	regexp.MustCompile(`(?i)^\d+ Files With Changes$`),
	regexp.MustCompile(`(?i)^Error while editing`),
	regexp.MustCompile(`(?i)^Auto-proceeded by`),
}

// modelKeywords feeds the multi-model heuristic: three or more distinct
// keywords in one fragment means a picker dropdown, not a reply.
var modelKeywords = []string{"Claude", "Gemini", "GPT", "Opus", "Sonnet", "Pro", "Flash"}

// IsNoise reports whether text is UI chrome rather than conversation content.
func IsNoise(text string) bool {
	if len(strings.TrimSpace(text)) == 0 {
		return true
	}
	if len(text) < MinLength || len(text) > MaxLength {
		return true
	}

	trimmed := strings.TrimSpace(text)
	for _, p := range patterns {
		if p.MatchString(trimmed) {
			return true
		}
	}

	count := 0
	for _, kw := range modelKeywords {
		if strings.Contains(trimmed, kw) {
			count++
		}
	}
	return count >= 3
}
