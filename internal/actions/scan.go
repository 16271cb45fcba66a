package actions

import (
	"encoding/json"
	"fmt"
)

// scannedControl is one candidate decision element reported by the scan
// script. The script tags elements with a persistent attribute so the
// same button keeps the same id across polls.
type scannedControl struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Context string `json:"context"`
	Command string `json:"command"`
	Visible bool   `json:"visible"`
}

// scanScript walks the page and same-origin frames for decision
// controls. Selectors stay narrow: broad ones like bare 'button' flood
// the detector with every toolbar control.
const scanScript = `(function() {
	const SELECTORS = [
		'.bg-ide-button-background',
		'[class*="accept"]',
		'[class*="run-button"]',
		'[class*="apply-button"]',
		'[class*="execute-button"]',
		'[data-testid*="accept"]',
		'[data-testid*="run"]',
		'[data-action="accept"]',
		'[data-action="run"]'
	];

	function visible(el) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		const style = el.ownerDocument.defaultView.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		return !el.disabled;
	}

	function tag(el, dw) {
		if (el.dataset.abridgeId) return el.dataset.abridgeId;
		if (!dw.__abridgeActionSeq) dw.__abridgeActionSeq = 0;
		dw.__abridgeActionSeq++;
		const id = 'act-' + Date.now().toString(36) + '-' + dw.__abridgeActionSeq;
		el.dataset.abridgeId = id;
		return id;
	}

	function scanDoc(doc, dw, out) {
		for (const sel of SELECTORS) {
			try {
				doc.querySelectorAll(sel).forEach(el => {
					if (el.tagName !== 'BUTTON' && el.getAttribute('role') !== 'button' &&
						!el.onclick && sel !== '.bg-ide-button-background') {
						if (el.tagName !== 'DIV' && el.tagName !== 'A') return;
					}
					const text = (el.textContent || '').trim();
					if (!text || text.length > 40) return;

					const container = el.closest('[class*="message"], [class*="action"], [class*="diff"]');
					const context = container ? (container.textContent || '').substring(0, 500) : '';
					let command = '';
					if (container) {
						const code = container.querySelector('code, pre');
						if (code) command = (code.textContent || '').trim();
					}

					out.push({
						id: tag(el, dw),
						text: text,
						context: context,
						command: command,
						visible: visible(el)
					});
				});
			} catch (e) {}
		}
	}

	const out = [];
	scanDoc(document, window, out);
	document.querySelectorAll('iframe').forEach(iframe => {
		try {
			const doc = iframe.contentDocument || (iframe.contentWindow && iframe.contentWindow.document);
			if (doc && doc.body) scanDoc(doc, iframe.contentWindow, out);
		} catch (e) {}
	});

	const seen = new Set();
	return out.filter(c => {
		if (seen.has(c.id)) return false;
		seen.add(c.id);
		return true;
	});
})()`

// buildDecideScript clicks a tracked control (accept) or its paired
// reject control, falling back to an Escape key when no explicit reject
// exists.
func buildDecideScript(id string, accept bool) string {
	idJSON, _ := json.Marshal(id)
	return fmt.Sprintf(`(function() {
	const ID = %s;
	const ACCEPT = %t;
	const REJECT_SELECTORS = [
		'[data-testid*="reject"]',
		'[data-action="reject"]',
		'[class*="reject"]',
		'[class*="cancel-button"]'
	];

	function findTagged(doc) {
		return doc.querySelector('[data-abridge-id="' + ID + '"]');
	}

	let el = findTagged(document);
	let doc = document;
	if (!el) {
		const iframes = document.querySelectorAll('iframe');
		for (const iframe of iframes) {
			try {
				const d = iframe.contentDocument || (iframe.contentWindow && iframe.contentWindow.document);
				if (!d) continue;
				const hit = findTagged(d);
				if (hit) { el = hit; doc = d; break; }
			} catch (e) {}
		}
	}
	if (!el) return false;

	if (ACCEPT) {
		el.click();
		return true;
	}

	const container = el.closest('[class*="action"], [class*="button"], [class*="toolbar"], [class*="message"]');
	if (container) {
		for (const sel of REJECT_SELECTORS) {
			try {
				const btn = container.querySelector(sel);
				if (btn && !btn.disabled) { btn.click(); return true; }
			} catch (e) {}
		}
	}
	const esc = { key: 'Escape', code: 'Escape', keyCode: 27, which: 27, bubbles: true, cancelable: true };
	doc.dispatchEvent(new KeyboardEvent('keydown', esc));
	doc.dispatchEvent(new KeyboardEvent('keyup', esc));
	return true;
})()`, idJSON, accept)
}
