package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PageInfo mirrors one entry of the debugging endpoint's /json/list response.
type PageInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

var discoveryClient = &http.Client{Timeout: 5 * time.Second}

// DiscoverBrowserWS resolves the browser-level debugger URL via /json/version.
func DiscoverBrowserWS(ctx context.Context, debugURL string) (string, error) {
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := fetchJSON(ctx, debugURL+"/json/version", &version); err != nil {
		return "", fmt.Errorf("discover browser endpoint: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("discover browser endpoint: no webSocketDebuggerUrl in response")
	}
	return version.WebSocketDebuggerURL, nil
}

// ListPages enumerates debuggable pages via /json/list.
func ListPages(ctx context.Context, debugURL string) ([]PageInfo, error) {
	var pages []PageInfo
	if err := fetchJSON(ctx, debugURL+"/json/list", &pages); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// SelectTarget picks the main interaction surface from the page list.
// Preference order: a page titled after the target application that is not
// an auxiliary manager window, then a workbench.html URL, then any page
// that is not the launchpad, then whatever is left.
func SelectTarget(pages []PageInfo, targetTitle string) (PageInfo, bool) {
	var candidates []PageInfo
	for _, p := range pages {
		if p.Type != "" && p.Type != "page" {
			continue
		}
		if strings.Contains(p.URL, "about:blank") || strings.Contains(p.URL, "devtools") {
			continue
		}
		candidates = append(candidates, p)
	}

	for _, p := range candidates {
		if strings.Contains(p.Title, targetTitle) && !strings.Contains(p.Title, "Launchpad") {
			return p, true
		}
	}
	for _, p := range candidates {
		if strings.Contains(p.URL, "workbench.html") {
			return p, true
		}
	}
	for _, p := range candidates {
		if p.Title != "Launchpad" {
			return p, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return PageInfo{}, false
}

func fetchJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := discoveryClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
