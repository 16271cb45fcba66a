package inject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krishahir26/antibridge/internal/extract"
)

// RawScan is the no-cache variant of scripted injection: walk every
// frame, refuse anything that looks like an integrated terminal, and
// inject into the first frame with a usable input. Typing into the
// terminal would execute the message as a shell command, so exclusion
// errs on the aggressive side.
type RawScan struct {
	ev  Evaluator
	sel extract.SelectorSet
}

func NewRawScan(ev Evaluator, sel extract.SelectorSet) *RawScan {
	return &RawScan{ev: ev, sel: sel}
}

func (m *RawScan) Name() string { return "raw-scan" }

func (m *RawScan) Send(ctx context.Context, p Payload) error {
	var res injectResult
	if err := m.ev.Eval(ctx, buildRawScanInject(m.sel, p.Text), &res); err != nil {
		return err
	}
	if !res.OK {
		if res.Error != "" {
			return errors.New(res.Error)
		}
		return errors.New("no injectable frame found")
	}
	return nil
}

func buildRawScanInject(sel extract.SelectorSet, text string) string {
	inputs, _ := json.Marshal(sel.InputSelectors)
	submits, _ := json.Marshal(sel.SubmitSelectors)
	skipHints, _ := json.Marshal(sel.SkipFrameHints)
	payload, _ := json.Marshal(text)

	return fmt.Sprintf(`(function() {
	const INPUTS = %s;
	const SUBMITS = %s;
	const SKIP_HINTS = %s;
	const TEXT = %s;

	function isTerminalURL(src) {
		const lower = (src || '').toLowerCase();
		for (const hint of SKIP_HINTS) {
			if (lower.includes(hint)) return true;
		}
		return false;
	}

	function isTerminalDoc(doc) {
		try {
			if (doc.querySelector('.xterm, .xterm-viewport, .xterm-screen, [class*="terminal"], [class*="Terminal"]')) return true;
			const bodyClasses = (doc.body.className || '').toLowerCase();
			if (bodyClasses.includes('terminal') || bodyClasses.includes('xterm') || bodyClasses.includes('powershell')) return true;
			const title = (doc.title || '').toLowerCase();
			if (title.includes('terminal') || title.includes('powershell')) return true;
		} catch (e) {}
		return false;
	}

	function findInput(doc) {
		for (const sel of INPUTS.concat(['textarea', '[contenteditable="true"]', '[role="textbox"]', 'input[type="text"]'])) {
			try {
				const el = doc.querySelector(sel);
				if (el) {
					const rect = el.getBoundingClientRect();
					if (rect.width > 0 && rect.height > 0) return el;
				}
			} catch (e) {}
		}
		return null;
	}

	function inject(doc, el, dw) {
		el.focus();
		if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') {
			const proto = el.tagName === 'TEXTAREA' ? dw.HTMLTextAreaElement.prototype : dw.HTMLInputElement.prototype;
			const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
			setter.call(el, TEXT);
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
		} else {
			el.textContent = TEXT;
			el.dispatchEvent(new InputEvent('input', { bubbles: true, cancelable: true, inputType: 'insertText', data: TEXT }));
		}
		for (const sel of SUBMITS) {
			try {
				const btn = doc.querySelector(sel);
				if (btn && !btn.disabled) { btn.click(); return true; }
			} catch (e) {}
		}
		const enter = { key: 'Enter', code: 'Enter', keyCode: 13, which: 13, bubbles: true, cancelable: true };
		el.dispatchEvent(new KeyboardEvent('keydown', enter));
		el.dispatchEvent(new KeyboardEvent('keyup', enter));
		return true;
	}

	const iframes = document.querySelectorAll('iframe');
	for (let idx = 0; idx < iframes.length; idx++) {
		const iframe = iframes[idx];
		try {
			if (isTerminalURL(iframe.src)) continue;
			const doc = iframe.contentDocument || (iframe.contentWindow && iframe.contentWindow.document);
			if (!doc || !doc.body) continue;
			if (isTerminalDoc(doc)) continue;
			const input = findInput(doc);
			if (!input) continue;
			inject(doc, input, doc.defaultView);
			return { ok: true, frame: idx };
		} catch (e) {}
	}

	if (!isTerminalDoc(document)) {
		const input = findInput(document);
		if (input) {
			inject(document, input, window);
			return { ok: true, frame: -1 };
		}
	}

	return { ok: false, frame: -1, error: 'no injectable frame found' };
})()`, inputs, submits, skipHints, payload)
}
