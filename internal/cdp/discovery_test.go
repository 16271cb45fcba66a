package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSelectTargetPrefersTitleMatch(t *testing.T) {
	pages := []PageInfo{
		{Title: "Launchpad", URL: "app://launchpad.html", Type: "page"},
		{Title: "project - Antigravity", URL: "app://workbench.html", Type: "page"},
		{Title: "DevTools", URL: "devtools://devtools/bundled", Type: "page"},
	}

	got, ok := SelectTarget(pages, "Antigravity")
	if !ok {
		t.Fatal("SelectTarget() found nothing")
	}
	if got.Title != "project - Antigravity" {
		t.Errorf("SelectTarget() = %q, want workbench page", got.Title)
	}
}

func TestSelectTargetExcludesLaunchpad(t *testing.T) {
	pages := []PageInfo{
		{Title: "Antigravity Launchpad", URL: "app://launchpad.html", Type: "page"},
		{Title: "other window", URL: "app://other.html", Type: "page"},
	}

	got, ok := SelectTarget(pages, "Antigravity")
	if !ok {
		t.Fatal("SelectTarget() found nothing")
	}
	if got.Title != "other window" {
		t.Errorf("SelectTarget() = %q, should not pick the launchpad by title", got.Title)
	}
}

func TestSelectTargetWorkbenchURLFallback(t *testing.T) {
	pages := []PageInfo{
		{Title: "untitled", URL: "app://workbench.html", Type: "page"},
		{Title: "something", URL: "app://other.html", Type: "page"},
	}

	got, ok := SelectTarget(pages, "Antigravity")
	if !ok {
		t.Fatal("SelectTarget() found nothing")
	}
	if got.URL != "app://workbench.html" {
		t.Errorf("SelectTarget() = %q, want workbench URL", got.URL)
	}
}

func TestSelectTargetSkipsBlankAndDevtools(t *testing.T) {
	pages := []PageInfo{
		{Title: "blank", URL: "about:blank", Type: "page"},
		{Title: "tools", URL: "devtools://devtools/bundled/inspector.html", Type: "page"},
	}

	if _, ok := SelectTarget(pages, "Antigravity"); ok {
		t.Error("SelectTarget() picked a blank or devtools page")
	}
}

func TestSelectTargetEmpty(t *testing.T) {
	if _, ok := SelectTarget(nil, "Antigravity"); ok {
		t.Error("SelectTarget(nil) = ok, want not found")
	}
}

func TestDiscoverBrowserWS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"webSocketDebuggerUrl": "ws://127.0.0.1:9000/devtools/browser/abc"}`))
	}))
	defer srv.Close()

	got, err := DiscoverBrowserWS(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DiscoverBrowserWS() error = %v", err)
	}
	if got != "ws://127.0.0.1:9000/devtools/browser/abc" {
		t.Errorf("DiscoverBrowserWS() = %q", got)
	}
}

func TestDiscoverBrowserWSMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := DiscoverBrowserWS(context.Background(), srv.URL); err == nil {
		t.Error("DiscoverBrowserWS() error = nil, want error for missing field")
	}
}

func TestListPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/list" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"1","type":"page","title":"Antigravity","url":"app://workbench.html","webSocketDebuggerUrl":"ws://x/1"}]`))
	}))
	defer srv.Close()

	pages, err := ListPages(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ListPages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].ID != "1" {
		t.Errorf("ListPages() = %+v", pages)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: Session closed", true},
		{"Protocol error (Runtime.evaluate): Target closed", true},
		{"Execution context was destroyed", true},
		{"websocket: close 1006 (abnormal closure)", true},
		{"element not found", false},
		{"timeout waiting for selector", false},
	}
	for _, tt := range tests {
		if got := IsFatal(errMsg(tt.msg)); got != tt.want {
			t.Errorf("IsFatal(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true, want false")
	}
}

type errMsg string

func (e errMsg) Error() string { return string(e) }
