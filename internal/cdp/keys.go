package cdp

import (
	"context"

	"github.com/chromedp/chromedp"
)

// Modifier bits for Input.dispatchKeyEvent.
const (
	ModAlt   = 1
	ModCtrl  = 2
	ModMeta  = 4
	ModShift = 8
)

type keySpec struct {
	key            string
	code           string
	windowsKeyCode int
}

var namedKeys = map[string]keySpec{
	"Enter":  {"Enter", "Enter", 13},
	"Escape": {"Escape", "Escape", 27},
	"T":      {"t", "KeyT", 84},
	"A":      {"a", "KeyA", 65},
	"R":      {"r", "KeyR", 82},
}

// SendKey dispatches a raw key press (down + up) with the given modifier
// mask into the attached page.
func SendKey(ctx context.Context, name string, modifiers int) error {
	spec, ok := namedKeys[name]
	if !ok {
		spec = keySpec{key: name, code: "Key" + name}
	}

	dispatch := func(eventType string) chromedp.ActionFunc {
		return func(ctx context.Context) error {
			return chromedp.FromContext(ctx).Target.Execute(ctx, "Input.dispatchKeyEvent", map[string]any{
				"type":                  eventType,
				"key":                   spec.key,
				"code":                  spec.code,
				"windowsVirtualKeyCode": spec.windowsKeyCode,
				"nativeVirtualKeyCode":  spec.windowsKeyCode,
				"modifiers":             modifiers,
			}, nil)
		}
	}

	return chromedp.Run(ctx,
		dispatch("rawKeyDown"),
		dispatch("keyUp"),
	)
}

// SendEnter presses Enter in the attached page. Used as the submit
// fallback when no send button is found.
func SendEnter(ctx context.Context) error {
	return SendKey(ctx, "Enter", 0)
}

// SendChord presses Ctrl+Alt+Shift+<key>, the chord family the in-page
// extension peer listens for (T toggles auto mode, A accepts, R rejects).
func SendChord(ctx context.Context, key string) error {
	return SendKey(ctx, key, ModCtrl|ModAlt|ModShift)
}
