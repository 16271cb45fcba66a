package inject

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OSKeys is the terminal fallback: activate the target window at the
// operating system level and synthesize keystrokes through the
// clipboard. Only reachable when the debug attachment itself is down;
// best-effort by nature.
type OSKeys struct {
	windowTitle string
	goos        string
	runner      commandRunner
}

type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func NewOSKeys(windowTitle string) *OSKeys {
	return &OSKeys{
		windowTitle: windowTitle,
		goos:        runtime.GOOS,
		runner:      runCommand,
	}
}

func (m *OSKeys) Name() string { return "os-keys" }

func (m *OSKeys) Send(ctx context.Context, p Payload) error {
	if m.goos == "windows" {
		return m.sendWindows(ctx, p.Text)
	}
	return m.sendX11(ctx, p.Text)
}

// sendWindows drives the target through PowerShell: copy the text to
// the clipboard, activate the window, paste, press Enter.
func (m *OSKeys) sendWindows(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, "'", "''")
	script := fmt.Sprintf(`
Set-Clipboard -Value '%s'
$shell = New-Object -ComObject WScript.Shell
if (-not $shell.AppActivate('%s')) { exit 1 }
Start-Sleep -Milliseconds 300
$shell.SendKeys('^v')
Start-Sleep -Milliseconds 200
$shell.SendKeys('{ENTER}')
`, escaped, strings.ReplaceAll(m.windowTitle, "'", "''"))

	return m.runner(ctx, "powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-Command", script)
}

// sendX11 uses xdotool for window activation and typing.
func (m *OSKeys) sendX11(ctx context.Context, text string) error {
	if err := m.runner(ctx, "xdotool", "search", "--name", m.windowTitle, "windowactivate", "--sync"); err != nil {
		return fmt.Errorf("activate window: %w", err)
	}
	if err := m.runner(ctx, "xdotool", "type", "--delay", "12", text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return m.runner(ctx, "xdotool", "key", "Return")
}
