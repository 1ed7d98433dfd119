// Package snapshot turns an accessibility tree into numbered, indented text
// and produces the reference table that maps those numbers back to elements.
package snapshot

import (
	"fmt"
	"strings"
)

// Node is one node of a page accessibility tree.
type Node struct {
	Role     string
	Name     string
	Value    string
	Children []*Node
	// Err marks a subtree that could not be read from the browser. It is
	// rendered inline instead of aborting the whole snapshot.
	Err error
}

// Descriptor is the stored identity of a numbered element: enough to
// re-locate it on the live page by role and accessible name. Values are
// deliberately not captured since they can change between snapshot and use.
type Descriptor struct {
	Role string
	Name string
}

// Table maps snapshot reference numbers (starting at 1) to descriptors.
// A table is replaced wholesale on every snapshot, never merged.
type Table map[int]Descriptor

// Resolve looks up a reference number. ok is false when the ref was not
// assigned by the snapshot that produced this table.
func (t Table) Resolve(ref int) (Descriptor, bool) {
	d, ok := t[ref]
	return d, ok
}

// Messages used when a page has nothing to show. Kept verbatim so agent
// callers can pattern-match on them.
const (
	EmptyTreeMessage  = "(empty page -- no accessibility tree)"
	NoContentMessage  = "(no interactive elements found)"
	subtreeErrFormat  = "[error reading subtree: %v]"
	structuralIndent  = "  "
	snapshotHeaderFmt = "Page: %s\nURL: %s\n---\n"
)

// Header renders the title/url preamble that precedes snapshot text.
func Header(title, url string) string {
	return fmt.Sprintf(snapshotHeaderFmt, title, url)
}

// skipRoles are structural noise: hidden from output unless they carry a
// name or value of their own.
var skipRoles = map[string]bool{
	"none":         true,
	"generic":      true,
	"presentation": true,
}

// Build walks the tree depth-first in pre-order, assigning the next
// sequential reference number to every shown node. Indentation counts only
// shown ancestors, so skipped wrapper nodes do not push content rightward.
// The same input tree always yields the same text and numbering.
func Build(root *Node) (string, Table) {
	refs := make(Table)
	if root == nil {
		return "", refs
	}

	var lines []string
	walk(root, 0, &lines, refs)
	return strings.Join(lines, "\n"), refs
}

func walk(node *Node, depth int, lines *[]string, refs Table) {
	if node == nil {
		return
	}

	if node.Err != nil {
		*lines = append(*lines, strings.Repeat(structuralIndent, depth)+fmt.Sprintf(subtreeErrFormat, node.Err))
		return
	}

	shown := !(skipRoles[node.Role] && node.Name == "" && node.Value == "")
	if shown {
		ref := len(refs) + 1
		refs[ref] = Descriptor{Role: node.Role, Name: node.Name}

		parts := []string{fmt.Sprintf("[%d] %s", ref, node.Role)}
		if node.Name != "" {
			parts = append(parts, fmt.Sprintf("%q", node.Name))
		}
		if node.Value != "" {
			parts = append(parts, fmt.Sprintf("value=%q", node.Value))
		}
		*lines = append(*lines, strings.Repeat(structuralIndent, depth)+strings.Join(parts, " "))
	}

	childDepth := depth
	if shown {
		childDepth++
	}
	for _, child := range node.Children {
		walk(child, childDepth, lines, refs)
	}
}
