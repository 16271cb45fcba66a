package noise

import (
	"strings"
	"testing"
)

func TestIsNoiseShortText(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"\n\t",
		"hi",
		"ok thanks",
		"short fragment",
	}
	for _, text := range tests {
		if !IsNoise(text) {
			t.Errorf("IsNoise(%q) = false, want true for text below minimum length", text)
		}
	}
}

func TestIsNoiseModelLabels(t *testing.T) {
	tests := []string{
		"Claude Opus 4.5 (Thinking)",
		"Gemini 3 Pro (High)",
		"GPT-OSS 120B (Medium)",
		"Claude Sonnet 4.5",
		"Anthropic models are ready",
	}
	for _, text := range tests {
		if !IsNoise(text) {
			t.Errorf("IsNoise(%q) = false, want true for model label", text)
		}
	}
}

func TestIsNoiseUIChrome(t *testing.T) {
	tests := []string{
		"AI may make mistakes. Please verify output.",
		"Agent will execute tasks directly without asking",
		"Ask anything about your workspace here",
		"Ctrl+L to open the chat panel from anywhere",
		"Thinking for 11s",
		"12 Files With Changes",
		"Auto-proceeded by the agent after review",
	}
	for _, text := range tests {
		if !IsNoise(text) {
			t.Errorf("IsNoise(%q) = false, want true for UI chrome", text)
		}
	}
}

func TestIsNoiseFilePaths(t *testing.T) {
	tests := []string{
		`d:\projects\app\backend\services\bridge.js`,
		"/home/user/projects/app/src/main.go",
	}
	for _, text := range tests {
		if !IsNoise(text) {
			t.Errorf("IsNoise(%q) = false, want true for file path", text)
		}
	}
}

func TestIsNoiseMultiModelHeuristic(t *testing.T) {
	// Three distinct model keywords in one fragment means a picker dropdown.
	text := "Claude Opus high quality Gemini Flash fast GPT general purpose selector"
	if !IsNoise(text) {
		t.Errorf("IsNoise(%q) = false, want true for multi-model fragment", text)
	}
}

func TestIsNoiseWholePageDump(t *testing.T) {
	dump := strings.Repeat("page content repeated endlessly ", 3000)
	if !IsNoise(dump) {
		t.Error("IsNoise() = false, want true for oversized fragment")
	}
}

func TestIsNoiseRealContent(t *testing.T) {
	tests := []string{
		"Here is the refactored function with proper error handling applied throughout.",
		"The test failure comes from a stale cache entry. I fixed the invalidation logic.",
		"I updated the configuration loader so environment variables take precedence.",
	}
	for _, text := range tests {
		if IsNoise(text) {
			t.Errorf("IsNoise(%q) = true, want false for conversation content", text)
		}
	}
}
