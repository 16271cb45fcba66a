package extract

import (
	"encoding/json"
	"fmt"
)

// buildScanScript renders the in-page extraction script with the selector
// set baked in as JSON. The script walks every same-origin iframe plus the
// main document, locates message containers, and returns candidates with
// clean text, an HTML fragment, a role guess and the originating frame
// index. Cross-origin frames and frames that navigate mid-scan throw
// inside their own try block and are skipped.
func buildScanScript(sel SelectorSet) string {
	primary, _ := json.Marshal(sel.Primary)
	fallback, _ := json.Marshal(sel.Fallback)
	exclude, _ := json.Marshal(sel.ExcludeClasses)
	skipHints, _ := json.Marshal(sel.SkipFrameHints)
	wrapper, _ := json.Marshal(sel.MessageWrapper)

	return fmt.Sprintf(`(function() {
	const PRIMARY = %s;
	const FALLBACK = %s;
	const EXCLUDE = %s;
	const SKIP_HINTS = %s;
	const WRAPPER = %s;

	const results = [];
	const seenTexts = new Set();

	function getClassName(el) {
		if (!el.className) return '';
		if (typeof el.className === 'string') return el.className;
		if (el.className.baseVal !== undefined) return el.className.baseVal;
		return '';
	}

	function getCleanText(el) {
		const clone = el.cloneNode(true);
		clone.querySelectorAll('pre, code, script, style, noscript, button, input, select, textarea')
			.forEach(n => n.remove());
		return clone.innerText ? clone.innerText.trim() : '';
	}

	function getHtmlContent(el) {
		if (WRAPPER) {
			const wrapped = el.closest(WRAPPER) || el.querySelector(WRAPPER);
			if (wrapped) return wrapped.outerHTML || '';
		}
		const clone = el.cloneNode(true);
		clone.querySelectorAll('script, style, noscript').forEach(n => n.remove());
		return clone.innerHTML ? clone.innerHTML.trim() : '';
	}

	function detectRole(container, classLower) {
		const dataRole = container.getAttribute('data-role') ||
			container.getAttribute('data-message-role') || '';
		if (dataRole) {
			return dataRole.toLowerCase().includes('user') ? 'user' : 'assistant';
		}
		if (classLower.includes('user') || classLower.includes('human')) return 'user';
		if (classLower.includes('assistant') || classLower.includes('ai') ||
			classLower.includes('response') || classLower.includes('bot')) return 'assistant';
		return 'unknown';
	}

	function scanDoc(doc, frameIdx) {
		const found = [];
		const selectors = doc.querySelectorAll(PRIMARY.join(',')).length ? PRIMARY : FALLBACK;

		for (const selector of selectors) {
			try {
				doc.querySelectorAll(selector).forEach(container => {
					const className = getClassName(container);
					const classLower = className.toLowerCase();

					for (const ex of EXCLUDE) {
						if (classLower.includes(ex)) return;
					}

					const text = getCleanText(container);
					if (!text || text.length < 20) return;

					if (/^(File|Edit|Selection|View|Go|Run|Terminal|Help)\s*$/i.test(text)) return;
					if (/^Drag a view here/i.test(text)) return;
					if (/^Press desired key/i.test(text)) return;

					const textKey = text.substring(0, 100) + text.length;
					if (seenTexts.has(textKey)) return;
					seenTexts.add(textKey);

					found.push({
						text: text,
						html: getHtmlContent(container),
						class: className,
						role: detectRole(container, classLower),
						frameIndex: frameIdx,
						method: 'selector'
					});
				});
			} catch (e) {
				// Bad selector, skip.
			}
		}

		if (found.length === 0) {
			const bodyText = doc.body ? (doc.body.innerText || '') : '';
			if (bodyText.length > 100) {
				const paragraphs = bodyText.split(/\n{2,}/).filter(p => p.trim().length > 30);
				for (const para of paragraphs) {
					const trimmed = para.trim();
					if (/^(File|Edit|Selection|View|Go|Run|Terminal|Help|Open|Close|Save)/i.test(trimmed)) continue;
					if (/^Drag a view|^Press desired|^Keyboard Shortcuts/i.test(trimmed)) continue;
					if (trimmed.length < 50) continue;

					const textKey = trimmed.substring(0, 100) + trimmed.length;
					if (seenTexts.has(textKey)) continue;
					seenTexts.add(textKey);

					found.push({
						text: trimmed,
						class: 'raw-body',
						role: 'assistant',
						frameIndex: frameIdx,
						method: 'raw'
					});
				}
			}
		}

		return found;
	}

	const iframes = document.querySelectorAll('iframe');
	iframes.forEach((iframe, idx) => {
		try {
			const src = (iframe.src || '').toLowerCase();
			for (const hint of SKIP_HINTS) {
				if (src.includes(hint)) return;
			}
			const doc = iframe.contentDocument || (iframe.contentWindow && iframe.contentWindow.document);
			if (!doc || !doc.body) return;
			results.push(...scanDoc(doc, idx));
		} catch (e) {
			// Cross-origin or detached frame, skip.
		}
	});

	if (results.length === 0) {
		try {
			results.push(...scanDoc(document, -1));
		} catch (e) {}
	}

	return results;
})()`, primary, fallback, exclude, skipHints, wrapper)
}
