package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/krishahir26/antibridge/internal/cdp"
)

// ErrUnknownCommand reports an unsupported UI command kind.
var ErrUnknownCommand = errors.New("unknown ui command")

// chordKeys maps chord commands to the IDE's shortcut keys
// (Ctrl+Alt+Shift prefix).
var chordKeys = map[string]string{
	"toggle": "T",
	"accept": "A",
	"reject": "R",
}

// SendUICommand drives a chat-panel control that is not a message:
// accept/reject/toggle shortcut chords, stopping a running generation,
// or switching the model or conversation mode.
func (b *Bridge) SendUICommand(ctx context.Context, kind, arg string) error {
	kind = strings.ToLower(strings.TrimSpace(kind))

	if key, ok := chordKeys[kind]; ok {
		tabCtx, live := b.manager.Context()
		if !live {
			return cdp.ErrNotConnected
		}
		return cdp.SendChord(tabCtx, key)
	}

	switch kind {
	case "stop-generation":
		return b.stopGeneration(ctx)
	case "switch-model", "change-model":
		if arg == "" {
			return fmt.Errorf("switch-model: model name required")
		}
		return b.pickFromDropdown(ctx, modelPickerScript, arg)
	case "change-mode":
		if arg == "" {
			return fmt.Errorf("change-mode: mode name required")
		}
		return b.pickFromDropdown(ctx, modePickerScript, arg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
}

// stopGeneration clicks the stop control in the chat panel, falling
// back to an Escape keystroke when no control is found.
func (b *Bridge) stopGeneration(ctx context.Context) error {
	var clicked bool
	if err := b.manager.Eval(ctx, stopScript, &clicked); err != nil {
		return fmt.Errorf("stop generation: %w", err)
	}
	if clicked {
		return nil
	}

	tabCtx, live := b.manager.Context()
	if !live {
		return cdp.ErrNotConnected
	}
	return cdp.SendKey(tabCtx, "Escape", 0)
}

// pickFromDropdown opens a picker control and selects the option whose
// text best matches name. Two evaluations with a settle delay between,
// the dropdown needs a moment to render.
func (b *Bridge) pickFromDropdown(ctx context.Context, openScript, name string) error {
	var opened bool
	if err := b.manager.Eval(ctx, openScript, &opened); err != nil {
		return fmt.Errorf("open picker: %w", err)
	}
	if !opened {
		return errors.New("picker control not found")
	}

	select {
	case <-time.After(800 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	var picked bool
	if err := b.manager.Eval(ctx, buildOptionPickScript(name), &picked); err != nil {
		return fmt.Errorf("pick option: %w", err)
	}
	if !picked {
		return fmt.Errorf("no dropdown option matched %q", name)
	}
	return nil
}

// chatDocs is shared JS preamble: collect the main document plus every
// reachable chat-panel iframe document.
const chatDocs = `
function chatDocs() {
	const hints = ['cascade-panel', 'agentpanel', 'webview', 'extension'];
	const docs = [];
	document.querySelectorAll('iframe').forEach((f) => {
		try {
			const url = (f.src || '').toLowerCase();
			if (url && !hints.some((h) => url.includes(h))) return;
			const doc = f.contentDocument || (f.contentWindow && f.contentWindow.document);
			if (doc && doc.body) docs.push(doc);
		} catch (e) {}
	});
	docs.push(document);
	return docs;
}
function visible(el) {
	if (!el) return false;
	const r = el.getBoundingClientRect();
	if (r.width < 2 || r.height < 2) return false;
	const st = getComputedStyle(el);
	return st.visibility !== 'hidden' && st.display !== 'none';
}
`

const stopScript = `(() => {
` + chatDocs + `
	const selectors = [
		'[data-tooltip-id="input-send-button-cancel-tooltip"]',
		'.bg-red-500.rounded-xs',
		'div.bg-red-500',
		'[aria-label*="Stop" i]',
		'[aria-label*="Cancel" i]',
		'[title*="Stop" i]',
		'.stop-button',
		'[data-action="stop"]',
		'[data-action="cancel"]',
	];
	for (const doc of chatDocs()) {
		for (const sel of selectors) {
			let el = null;
			try { el = doc.querySelector(sel); } catch (e) { continue; }
			if (el && visible(el)) { el.click(); return true; }
		}
		for (const btn of doc.querySelectorAll('button, [role="button"]')) {
			const txt = (btn.textContent || '').toLowerCase();
			const aria = (btn.getAttribute('aria-label') || '').toLowerCase();
			if ((txt.includes('stop') || txt.includes('cancel') || aria.includes('stop')) && visible(btn)) {
				btn.click();
				return true;
			}
		}
	}
	return false;
})()`

const modelPickerScript = `(() => {
` + chatDocs + `
	const selectors = ['button[class*="model"]', '[aria-label*="model" i]'];
	for (const doc of chatDocs()) {
		for (const sel of selectors) {
			let el = null;
			try { el = doc.querySelector(sel); } catch (e) { continue; }
			if (el && visible(el)) { el.click(); return true; }
		}
		for (const btn of doc.querySelectorAll('button, [role="button"]')) {
			const txt = (btn.textContent || '').toLowerCase();
			if ((txt.includes('claude') || txt.includes('gemini') || txt.includes('gpt') || txt.includes('model')) && visible(btn)) {
				btn.click();
				return true;
			}
		}
	}
	return false;
})()`

const modePickerScript = `(() => {
` + chatDocs + `
	const selectors = ['[aria-label*="mode" i]', 'button[class*="mode"]', '.mode-picker', '.conversation-mode'];
	for (const doc of chatDocs()) {
		for (const sel of selectors) {
			let el = null;
			try { el = doc.querySelector(sel); } catch (e) { continue; }
			if (el && visible(el)) { el.click(); return true; }
		}
		for (const btn of doc.querySelectorAll('button, [role="button"]')) {
			const txt = (btn.textContent || '').toLowerCase();
			if ((txt.includes('fast') || txt.includes('planning')) && visible(btn)) {
				btn.click();
				return true;
			}
		}
	}
	return false;
})()`

// buildOptionPickScript scores dropdown entries against the wanted
// name: exact normalized match beats containment in either direction.
func buildOptionPickScript(name string) string {
	return `(() => {
` + chatDocs + `
	const target = ` + strconv.Quote(strings.ToLower(name)) + `.replace(/[^a-z0-9]/g, '');
	let best = null;
	let bestScore = 0;
	for (const doc of chatDocs()) {
		for (const el of doc.querySelectorAll('[role="menuitem"], [role="option"], li, button, span, div')) {
			const text = (el.textContent || '').trim();
			if (text.length < 3 || text.length > 80 || !visible(el)) continue;
			const clean = text.toLowerCase().replace(/[^a-z0-9]/g, '');
			let score = 0;
			if (clean === target) score = 100;
			else if (clean.includes(target)) score = 50;
			else if (target.includes(clean)) score = 30;
			if (score > bestScore) { bestScore = score; best = el; }
		}
	}
	if (!best) return false;
	best.click();
	return true;
})()`
}
