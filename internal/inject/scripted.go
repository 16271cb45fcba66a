package inject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/krishahir26/antibridge/internal/extract"
)

// Evaluator runs a JavaScript expression in the attached page.
// Satisfied by the connection manager; faked in tests.
type Evaluator interface {
	Eval(ctx context.Context, expr string, out any) error
}

type injectResult struct {
	OK     bool   `json:"ok"`
	Frame  int    `json:"frame"`
	Method string `json:"method"`
	Error  string `json:"error,omitempty"`
}

// Scripted injects through a resolved chat context: the iframe holding
// the chat container marker. The frame index is cached and revalidated
// on every use, since a navigation invalidates it silently.
type Scripted struct {
	ev  Evaluator
	sel extract.SelectorSet

	mu          sync.Mutex
	cachedFrame int
}

func NewScripted(ev Evaluator, sel extract.SelectorSet) *Scripted {
	return &Scripted{ev: ev, sel: sel, cachedFrame: -1}
}

func (m *Scripted) Name() string { return "scripted" }

func (m *Scripted) Send(ctx context.Context, p Payload) error {
	m.mu.Lock()
	cached := m.cachedFrame
	m.mu.Unlock()

	var res injectResult
	if err := m.ev.Eval(ctx, buildScriptedInject(m.sel, p.Text, cached), &res); err != nil {
		m.invalidate()
		return err
	}
	if !res.OK {
		m.invalidate()
		if res.Error != "" {
			return errors.New(res.Error)
		}
		return errors.New("chat context not found")
	}

	m.mu.Lock()
	m.cachedFrame = res.Frame
	m.mu.Unlock()
	return nil
}

func (m *Scripted) invalidate() {
	m.mu.Lock()
	m.cachedFrame = -1
	m.mu.Unlock()
}

// buildScriptedInject renders the in-context injection script. It
// resolves the chat frame (preferring the cached index when its marker
// still validates), sets the input value through the native setter so
// framework change detection fires, then clicks a submit control or
// falls back to a synthetic Enter key sequence.
func buildScriptedInject(sel extract.SelectorSet, text string, cachedFrame int) string {
	marker, _ := json.Marshal(sel.ContainerMarker)
	inputs, _ := json.Marshal(sel.InputSelectors)
	submits, _ := json.Marshal(sel.SubmitSelectors)
	payload, _ := json.Marshal(text)

	return fmt.Sprintf(`(function() {
	const MARKER = %s;
	const INPUTS = %s;
	const SUBMITS = %s;
	const TEXT = %s;
	const CACHED = %d;

	function frameDocs() {
		const docs = [];
		const iframes = document.querySelectorAll('iframe');
		iframes.forEach((iframe, idx) => {
			try {
				const doc = iframe.contentDocument || (iframe.contentWindow && iframe.contentWindow.document);
				if (doc && doc.body) docs.push({ doc: doc, idx: idx });
			} catch (e) {}
		});
		docs.push({ doc: document, idx: -1 });
		return docs;
	}

	function hasMarker(doc) {
		try { return !!doc.querySelector(MARKER); } catch (e) { return false; }
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

	function setValue(el, dw) {
		el.focus();
		if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') {
			const proto = el.tagName === 'TEXTAREA' ? dw.HTMLTextAreaElement.prototype : dw.HTMLInputElement.prototype;
			const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
			setter.call(el, TEXT);
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return 'value-setter';
		}
		el.textContent = TEXT;
		el.dispatchEvent(new InputEvent('input', { bubbles: true, cancelable: true, inputType: 'insertText', data: TEXT }));
		return 'contenteditable';
	}

	function submit(doc, el) {
		for (const sel of SUBMITS) {
			try {
				const btn = doc.querySelector(sel);
				if (btn && !btn.disabled) {
					const rect = btn.getBoundingClientRect();
					if (rect.width > 0 && rect.height > 0) { btn.click(); return 'click'; }
				}
			} catch (e) {}
		}
		const enter = { key: 'Enter', code: 'Enter', keyCode: 13, which: 13, bubbles: true, cancelable: true };
		el.dispatchEvent(new KeyboardEvent('keydown', enter));
		el.dispatchEvent(new KeyboardEvent('keypress', enter));
		el.dispatchEvent(new KeyboardEvent('keyup', enter));
		const form = el.closest('form');
		if (form) form.dispatchEvent(new Event('submit', { bubbles: true, cancelable: true }));
		return 'enter';
	}

	const docs = frameDocs();

	let target = null;
	if (CACHED >= 0) {
		const hit = docs.find(d => d.idx === CACHED);
		if (hit && hasMarker(hit.doc)) target = hit;
	}
	if (!target) target = docs.find(d => hasMarker(d.doc)) || null;
	if (!target) return { ok: false, frame: -1, error: 'chat context not found' };

	const input = findInput(target.doc);
	if (!input) return { ok: false, frame: target.idx, error: 'no input element in chat context' };

	const dw = target.idx === -1 ? window : target.doc.defaultView;
	const method = setValue(input, dw);
	const sent = submit(target.doc, input);
	return { ok: true, frame: target.idx, method: method + '+' + sent };
})()`, marker, inputs, submits, payload, cachedFrame)
}
