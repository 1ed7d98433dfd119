package snapshot

import (
	"errors"
	"strings"
	"testing"
)

func sampleTree() *Node {
	return &Node{
		Role: "RootWebArea",
		Name: "Example Domain",
		Children: []*Node{
			{
				Role: "generic",
				Children: []*Node{
					{Role: "button", Name: "Submit"},
				},
			},
			{Role: "textbox", Name: "Email", Value: "a@b.com"},
		},
	}
}

func TestBuildNumbersShownNodesInPreOrder(t *testing.T) {
	text, refs := Build(sampleTree())

	want := strings.Join([]string{
		`[1] RootWebArea "Example Domain"`,
		`  [2] button "Submit"`,
		`  [3] textbox "Email" value="a@b.com"`,
	}, "\n")
	if text != want {
		t.Errorf("unexpected snapshot text:\ngot:\n%s\nwant:\n%s", text, want)
	}

	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if d := refs[1]; d.Role != "RootWebArea" || d.Name != "Example Domain" {
		t.Errorf("ref 1 = %+v", d)
	}
	if d := refs[2]; d.Role != "button" || d.Name != "Submit" {
		t.Errorf("ref 2 = %+v", d)
	}
	if d := refs[3]; d.Role != "textbox" || d.Name != "Email" {
		t.Errorf("ref 3 = %+v", d)
	}
}

func TestBuildSkipRules(t *testing.T) {
	tests := []struct {
		name  string
		node  *Node
		shown bool
	}{
		{"generic without name or value", &Node{Role: "generic"}, false},
		{"none without name or value", &Node{Role: "none"}, false},
		{"presentation without name or value", &Node{Role: "presentation"}, false},
		{"generic with name", &Node{Role: "generic", Name: "wrapper"}, true},
		{"none with value", &Node{Role: "none", Value: "3"}, true},
		{"button without name", &Node{Role: "button"}, true},
		{"heading with name", &Node{Role: "heading", Name: "Title"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, refs := Build(tt.node)
			if tt.shown && len(refs) != 1 {
				t.Errorf("expected node to be shown, got text %q", text)
			}
			if !tt.shown && len(refs) != 0 {
				t.Errorf("expected node to be skipped, got text %q", text)
			}
		})
	}
}

func TestBuildIndentCountsOnlyShownAncestors(t *testing.T) {
	// Two skipped wrapper levels must not push the button rightward.
	tree := &Node{
		Role: "generic",
		Children: []*Node{
			{
				Role: "presentation",
				Children: []*Node{
					{Role: "button", Name: "Deep"},
				},
			},
		},
	}

	text, refs := Build(tree)
	if text != `[1] button "Deep"` {
		t.Errorf("unexpected text %q", text)
	}
	if len(refs) != 1 {
		t.Errorf("expected 1 ref, got %d", len(refs))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	tree := sampleTree()

	firstText, firstRefs := Build(tree)
	for i := 0; i < 5; i++ {
		text, refs := Build(tree)
		if text != firstText {
			t.Fatalf("run %d produced different text", i)
		}
		if len(refs) != len(firstRefs) {
			t.Fatalf("run %d produced %d refs, want %d", i, len(refs), len(firstRefs))
		}
		for ref, d := range firstRefs {
			if refs[ref] != d {
				t.Fatalf("run %d: ref %d = %+v, want %+v", i, ref, refs[ref], d)
			}
		}
	}
}

func TestBuildNilRoot(t *testing.T) {
	text, refs := Build(nil)
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
	if len(refs) != 0 {
		t.Errorf("expected empty table, got %d entries", len(refs))
	}
}

func TestBuildTableIsReplacedNotMerged(t *testing.T) {
	_, first := Build(sampleTree())
	_, second := Build(&Node{Role: "button", Name: "Only"})

	if len(second) != 1 {
		t.Fatalf("expected fresh table with 1 entry, got %d", len(second))
	}
	if _, ok := second.Resolve(2); ok {
		t.Error("ref 2 from the earlier build leaked into the new table")
	}
	if len(first) != 3 {
		t.Errorf("earlier table mutated, got %d entries", len(first))
	}
}

func TestBuildRendersSubtreeErrorInline(t *testing.T) {
	tree := &Node{
		Role: "RootWebArea",
		Name: "Page",
		Children: []*Node{
			{Err: errors.New("node vanished")},
			{Role: "button", Name: "Still here"},
		},
	}

	text, refs := Build(tree)
	if !strings.Contains(text, "[error reading subtree: node vanished]") {
		t.Errorf("missing inline error marker:\n%s", text)
	}
	// The sibling after the broken subtree still gets numbered.
	if d, ok := refs.Resolve(2); !ok || d.Name != "Still here" {
		t.Errorf("sibling not numbered after error, refs=%v", refs)
	}
}

func TestHeader(t *testing.T) {
	got := Header("Example", "https://example.com")
	want := "Page: Example\nURL: https://example.com\n---\n"
	if got != want {
		t.Errorf("Header() = %q, want %q", got, want)
	}
}
