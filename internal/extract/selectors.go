package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SelectorSet is the tunable heuristic data a strategy operates on.
// Hand-tuned against one UI generation; ship an updated YAML file when
// the application changes rather than a new binary.
type SelectorSet struct {
	// Primary selectors matched first. Fallback is consulted only when
	// the primary set matches nothing in a frame.
	Primary  []string `yaml:"primary"`
	Fallback []string `yaml:"fallback"`

	// Class substrings that disqualify a matched container (editors,
	// dropdowns, toolbars).
	ExcludeClasses []string `yaml:"exclude_classes"`

	// URL substrings marking a frame as chat-bearing or to be skipped.
	ChatFrameHints []string `yaml:"chat_frame_hints"`
	SkipFrameHints []string `yaml:"skip_frame_hints"`

	// Innermost recognized message wrapper, preferred for HTML fragments
	// so tables and code blocks survive.
	MessageWrapper string `yaml:"message_wrapper"`

	// Marker element identifying the chat input frame, used to validate
	// a cached chat context before reuse.
	ContainerMarker string `yaml:"container_marker"`

	// Input surface candidates for scripted injection.
	InputSelectors []string `yaml:"input_selectors"`

	// Submit control candidates, tried before the Enter key fallback.
	SubmitSelectors []string `yaml:"submit_selectors"`
}

// DefaultSelectors returns the set tuned against the current Antigravity UI.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		Primary: []string{".notify-user-container"},
		Fallback: []string{
			`[class*="message"]`,
			`[class*="Message"]`,
			`[class*="response"]`,
			`[class*="Response"]`,
			`[class*="assistant"]`,
			`[class*="user"]`,
			`[class*="chat-item"]`,
			`[class*="bubble"]`,
			`[data-role]`,
			`[data-message-role]`,
			`[class*="turn-"]`,
			`[class*="conversation"]`,
			`[class*="content"]`,
			`[class*="text"]`,
			`[class*="paragraph"]`,
			"article",
			".prose",
		},
		ExcludeClasses: []string{
			"cm-", "monaco", "hljs", "prism",
			"input", "textarea", "dropdown", "menu",
			"modal", "tooltip", "sidebar", "toolbar",
			"header", "footer", "empty-pane",
		},
		ChatFrameHints: []string{"extension", "webview", "cascade", "agentpanel", "workbench"},
		SkipFrameHints: []string{"devtools", "chrome-extension://", "terminal", "xterm", "pty"},
		MessageWrapper: ".notify-user-container",
		ContainerMarker: "#cascade",
		InputSelectors: []string{
			"#cascade textarea",
			`textarea[placeholder]`,
			`[contenteditable="true"]`,
			`div[class*="input"] textarea`,
		},
		SubmitSelectors: []string{
			`button[type="submit"]`,
			`button[class*="send"]`,
			`button[aria-label*="Send"]`,
		},
	}
}

// LoadSelectors reads a selector set from a YAML file. Fields left empty
// in the file keep their defaults so partial overrides stay cheap.
func LoadSelectors(path string) (SelectorSet, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selector file: %w", err)
	}

	var override SelectorSet
	if err := yaml.Unmarshal(data, &override); err != nil {
		return sel, fmt.Errorf("parse selector file: %w", err)
	}

	if len(override.Primary) > 0 {
		sel.Primary = override.Primary
	}
	if len(override.Fallback) > 0 {
		sel.Fallback = override.Fallback
	}
	if len(override.ExcludeClasses) > 0 {
		sel.ExcludeClasses = override.ExcludeClasses
	}
	if len(override.ChatFrameHints) > 0 {
		sel.ChatFrameHints = override.ChatFrameHints
	}
	if len(override.SkipFrameHints) > 0 {
		sel.SkipFrameHints = override.SkipFrameHints
	}
	if override.MessageWrapper != "" {
		sel.MessageWrapper = override.MessageWrapper
	}
	if override.ContainerMarker != "" {
		sel.ContainerMarker = override.ContainerMarker
	}
	if len(override.InputSelectors) > 0 {
		sel.InputSelectors = override.InputSelectors
	}
	if len(override.SubmitSelectors) > 0 {
		sel.SubmitSelectors = override.SubmitSelectors
	}

	return sel, nil
}
