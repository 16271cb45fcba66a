package actions

import (
	"regexp"
	"strings"
)

// acceptPattern matches decision-control text. Exact patterns must equal
// the whole label; loose ones match as substrings.
type acceptPattern struct {
	text  string
	exact bool
}

var acceptPatterns = []acceptPattern{
	{"accept", false},
	{"accept all", false},
	{"run command", false},
	{"run", false},
	{"run code", false},
	{"run cell", false},
	{"run all", false},
	{"run selection", false},
	{"run and debug", false},
	{"run test", false},
	{"apply", true},
	{"execute", true},
	{"resume", true},
	{"retry", true},
	{"try again", false},
	{"confirm", false},
	{"allow once", true},
}

// rejectPatterns veto a control even when an accept pattern matched.
var rejectPatterns = []string{
	"skip", "reject", "cancel", "discard", "deny", "close", "refine", "other",
}

// IsAcceptEligible reports whether a control's label marks it as an
// accept-intent decision button. Reject intent always wins.
func IsAcceptEligible(label string) bool {
	text := strings.ToLower(strings.TrimSpace(label))
	if text == "" {
		return false
	}

	matched := false
	for _, p := range acceptPatterns {
		if p.exact {
			if text == p.text {
				matched = true
				break
			}
		} else if strings.Contains(text, p.text) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, r := range rejectPatterns {
		if strings.Contains(text, r) {
			return false
		}
	}
	return true
}

// bannedCommands is the static blocklist of destructive command
// substrings. A hit flags the action as dangerous; it never blocks
// acceptance by itself, the decision stays with the operator.
var bannedCommands = []string{
	"rm -rf /",
	"rm -rf ~",
	"rm -rf *",
	"rm -rf .",
	"format c:",
	"del /f /s /q c:",
	"rmdir /s /q c:",
	":(){:|:&};:",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"mkfs.",
	"> /dev/sda",
	"chmod -r 777 /",
	"chmod 000 /",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
}

var (
	rmRootRe = regexp.MustCompile(`rm\s+(-[rf]+\s+)*/`)
	ddWipeRe = regexp.MustCompile(`dd\s+if=/dev/(zero|random|urandom)`)
)

// IsDangerous reports whether a command matches the destructive
// blocklist.
func IsDangerous(command string) bool {
	if command == "" {
		return false
	}
	cmd := strings.ToLower(strings.TrimSpace(command))

	for _, banned := range bannedCommands {
		if strings.Contains(cmd, banned) {
			return true
		}
	}
	return rmRootRe.MatchString(cmd) || ddWipeRe.MatchString(cmd)
}

var filePathRe = regexp.MustCompile(`[a-zA-Z0-9_\-./\\]+\.[a-zA-Z0-9]+`)

// Classify derives the action type from the control's label and nearby
// context.
func Classify(label, context, command string) ActionType {
	text := strings.ToLower(label)
	ctx := strings.ToLower(context)

	if strings.Contains(text, "retry") || strings.Contains(text, "try again") {
		return TypeRetry
	}
	if command != "" || strings.Contains(text, "run") || strings.Contains(text, "execute") ||
		strings.Contains(ctx, "terminal") || strings.Contains(ctx, "command") {
		return TypeTerminalCommand
	}
	if strings.Contains(ctx, "file") || strings.Contains(ctx, "changes") || filePathRe.MatchString(context) {
		return TypeFileEdit
	}
	return TypeActionRequest
}

// ExtractFileName pulls the first file-path-looking substring out of the
// surrounding context.
func ExtractFileName(context string) string {
	return filePathRe.FindString(context)
}
