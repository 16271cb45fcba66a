package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeEvaluator struct {
	candidates []Candidate
	err        error
	lastExpr   string
}

func (f *fakeEvaluator) Eval(_ context.Context, expr string, out any) error {
	f.lastExpr = expr
	if f.err != nil {
		return f.err
	}
	if dst, ok := out.(*[]Candidate); ok {
		*dst = f.candidates
	}
	return nil
}

func TestRegistry(t *testing.T) {
	names := Names()
	found := false
	for _, n := range names {
		if n == "selector" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Names() = %v, want selector registered", names)
	}

	s, err := New("selector", DefaultSelectors())
	if err != nil {
		t.Fatalf("New(selector) error = %v", err)
	}
	if s.Name() != "selector" {
		t.Errorf("Name() = %q", s.Name())
	}

	if _, err := New("nope", DefaultSelectors()); err == nil {
		t.Error("New(nope) error = nil, want error")
	}
}

func TestSelectorStrategyExtract(t *testing.T) {
	s, _ := New("selector", DefaultSelectors())
	ev := &fakeEvaluator{candidates: []Candidate{
		{Text: "Here is the answer you asked for.", Role: "assistant", FrameIndex: 2},
		{Text: "thanks, looks good to me now", Role: ""},
	}}

	got, err := s.Extract(context.Background(), ev)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Extract() returned %d candidates, want 2", len(got))
	}
	if got[1].Role != RoleUnknown {
		t.Errorf("empty role normalized to %q, want %q", got[1].Role, RoleUnknown)
	}
}

func TestSelectorStrategyExtractError(t *testing.T) {
	s, _ := New("selector", DefaultSelectors())
	ev := &fakeEvaluator{err: errors.New("frame detached")}

	if _, err := s.Extract(context.Background(), ev); err == nil {
		t.Error("Extract() error = nil, want propagated error")
	}
}

func TestBuildScanScriptEmbedsSelectors(t *testing.T) {
	sel := DefaultSelectors()
	script := buildScanScript(sel)

	if !strings.Contains(script, ".notify-user-container") {
		t.Error("script missing primary selector")
	}
	if !strings.Contains(script, "terminal") {
		t.Error("script missing skip frame hints")
	}
	if !strings.Contains(script, "iframe") {
		t.Error("script missing iframe walk")
	}
}

func TestDefaultSelectors(t *testing.T) {
	sel := DefaultSelectors()
	if len(sel.Primary) == 0 || len(sel.Fallback) == 0 {
		t.Fatal("default selector set incomplete")
	}
	if sel.ContainerMarker != "#cascade" {
		t.Errorf("ContainerMarker = %q, want #cascade", sel.ContainerMarker)
	}
}

func TestLoadSelectorsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selectors.yaml")
	data := `
primary:
  - ".chat-message"
container_marker: "#panel"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sel, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors() error = %v", err)
	}
	if len(sel.Primary) != 1 || sel.Primary[0] != ".chat-message" {
		t.Errorf("Primary = %v, want override", sel.Primary)
	}
	if sel.ContainerMarker != "#panel" {
		t.Errorf("ContainerMarker = %q, want #panel", sel.ContainerMarker)
	}
	// Untouched fields keep defaults.
	if len(sel.Fallback) == 0 {
		t.Error("Fallback lost its default")
	}
}

func TestLoadSelectorsMissingFile(t *testing.T) {
	sel, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("LoadSelectors() error = nil for missing file")
	}
	// Defaults still usable on error.
	if len(sel.Primary) == 0 {
		t.Error("defaults not returned alongside error")
	}
}

func TestLoadSelectorsEmptyPath(t *testing.T) {
	sel, err := LoadSelectors("")
	if err != nil {
		t.Fatalf("LoadSelectors(\"\") error = %v", err)
	}
	if sel.Primary[0] != ".notify-user-container" {
		t.Errorf("Primary = %v, want defaults", sel.Primary)
	}
}
