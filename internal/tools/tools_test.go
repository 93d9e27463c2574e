package tools

import "testing"

func TestParse(t *testing.T) {
	for _, n := range All() {
		got, ok := Parse(string(n))
		if !ok || got != n {
			t.Errorf("Parse(%q) = %q, %v, want %q, true", n, got, ok, n)
		}
	}
	if _, ok := Parse("rm_rf"); ok {
		t.Error("Parse accepted an unknown tool name")
	}
}

func TestSideEffecting(t *testing.T) {
	want := map[Name]bool{
		Search: false, Browse: true, Scout: true, Vision: false,
		GraphQuery: false, GraphWrite: false, Calendar: true,
		ResolveIdentity: false, DraftMessage: false,
		PollFeedback: false, Notify: true, Wait: false,
	}
	for n, w := range want {
		if n.SideEffecting() != w {
			t.Errorf("%s.SideEffecting() = %v, want %v", n, !w, w)
		}
	}
}

func TestCatalogCoversAllTools(t *testing.T) {
	cat := Catalog()
	if len(cat) != len(All()) {
		t.Fatalf("catalog has %d entries, want %d", len(cat), len(All()))
	}
	seen := map[string]bool{}
	for _, c := range cat {
		if c.OfTool == nil {
			t.Fatal("catalog entry missing tool param")
		}
		seen[c.OfTool.Name] = true
	}
	for _, n := range All() {
		if !seen[string(n)] {
			t.Errorf("catalog missing tool %q", n)
		}
	}
}
