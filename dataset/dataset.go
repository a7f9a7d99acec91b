// Package dataset holds named result trees. A Node is a named set of child
// nodes, a named string or a named array of float64.
package dataset

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Node
type Kind uint8

const (
	KindSet Kind = iota
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Node is a closed variant. It is built only through Set, String and Array
// and is inspected through Match.
type Node struct {
	kind     Kind
	name     string
	text     string
	values   []float64
	children []Node
}

// Set returns a named set node
func Set(name string, children ...Node) Node {
	return Node{kind: KindSet, name: name, children: children}
}

// String returns a named string node
func String(name, value string) Node {
	return Node{kind: KindString, name: name, text: value}
}

// Array returns a named array node holding a copy of values
func Array(name string, values []float64) Node {
	return Node{kind: KindArray, name: name, values: append([]float64{}, values...)}
}

// Kind returns the variant tag
func (n Node) Kind() Kind { return n.kind }

// Add returns a copy of the set n with children appended. Non-set nodes are
// returned unchanged.
func (n Node) Add(children ...Node) Node {
	if n.kind != KindSet {
		return n
	}
	out := n
	out.children = append(append([]Node(nil), n.children...), children...)
	return out
}

// Visitor has one case per kind, so every implementation handles all of
// them
type Visitor[T any] interface {
	VisitSet(name string, children []Node) T
	VisitString(name, value string) T
	VisitArray(name string, values []float64) T
}

// Cases adapts three functions to a Visitor. All three must be set.
type Cases[T any] struct {
	Set    func(name string, children []Node) T
	String func(name, value string) T
	Array  func(name string, values []float64) T
}

func (c Cases[T]) VisitSet(name string, children []Node) T { return c.Set(name, children) }
func (c Cases[T]) VisitString(name, value string) T        { return c.String(name, value) }
func (c Cases[T]) VisitArray(name string, values []float64) T {
	return c.Array(name, values)
}

// Match dispatches n to the case of its kind
func Match[T any](n Node, v Visitor[T]) T {
	switch n.kind {
	case KindString:
		return v.VisitString(n.name, n.text)
	case KindArray:
		return v.VisitArray(n.name, n.values)
	default:
		return v.VisitSet(n.name, n.children)
	}
}

// Name returns the node name
func Name(n Node) string {
	return Match[string](n, Cases[string]{
		Set:    func(name string, _ []Node) string { return name },
		String: func(name, _ string) string { return name },
		Array:  func(name string, _ []float64) string { return name },
	})
}

// Value returns the values of an array node, nil for other kinds
func Value(n Node) []float64 {
	return Match[[]float64](n, Cases[[]float64]{
		Set:    func(string, []Node) []float64 { return nil },
		String: func(string, string) []float64 { return nil },
		Array:  func(_ string, values []float64) []float64 { return values },
	})
}

// Text returns the value of a string node. Sets and arrays describe their
// kind.
func Text(n Node) string {
	return Match[string](n, Cases[string]{
		Set:    func(string, []Node) string { return "data set" },
		String: func(_, value string) string { return value },
		Array:  func(string, []float64) string { return "double vector" },
	})
}

// Children returns the children of a set node, nil for other kinds
func Children(n Node) []Node {
	return Match[[]Node](n, Cases[[]Node]{
		Set:    func(_ string, children []Node) []Node { return children },
		String: func(string, string) []Node { return nil },
		Array:  func(string, []float64) []Node { return nil },
	})
}

const tabSize = 2

type printer struct {
	sb     *strings.Builder
	indent int
}

func (p printer) pad(extra int) {
	p.sb.WriteString(strings.Repeat(" ", p.indent+extra))
}

func (p printer) VisitSet(name string, children []Node) struct{} {
	p.pad(0)
	fmt.Fprintf(p.sb, "Data Set: %s\n", name)
	p.pad(0)
	p.sb.WriteString("{\n")
	inner := printer{sb: p.sb, indent: p.indent + tabSize}
	for _, c := range children {
		if c.kind == KindSet {
			Match[struct{}](c, inner)
			continue
		}
		Match[struct{}](c, p)
	}
	p.pad(0)
	p.sb.WriteString("}\n")
	return struct{}{}
}

func (p printer) VisitString(name, value string) struct{} {
	p.pad(tabSize)
	fmt.Fprintf(p.sb, "%s = %s\n", name, value)
	return struct{}{}
}

func (p printer) VisitArray(name string, values []float64) struct{} {
	p.pad(tabSize)
	fmt.Fprintf(p.sb, "%s =", name)
	for _, v := range values {
		fmt.Fprintf(p.sb, " %g", v)
	}
	p.sb.WriteString("\n")
	return struct{}{}
}

// Format renders the tree with two space indentation per set level
func Format(n Node) string {
	var sb strings.Builder
	Match[struct{}](n, printer{sb: &sb})
	return sb.String()
}

// WalkFunc is called with the slash separated path of every node
type WalkFunc func(path string, n Node) error

// Walk visits n and its descendants depth first in child order. Walking
// stops at the first error.
func Walk(n Node, fn WalkFunc) error {
	return walk("", n, fn)
}

func walk(parent string, n Node, fn WalkFunc) error {
	path := Name(n)
	if parent != "" {
		path = parent + "/" + path
	}
	if err := fn(path, n); err != nil {
		return err
	}
	for _, c := range Children(n) {
		if err := walk(path, c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first node below n whose path relative to n matches
// path, e.g. "solution/phi"
func Find(n Node, path string) (Node, bool) {
	cur := n
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		found := false
		for _, c := range Children(cur) {
			if Name(c) == part {
				cur, found = c, true
				break
			}
		}
		if !found {
			return Node{}, false
		}
	}
	return cur, true
}

// CountSets returns the number of direct children of n that are sets named
// name
func CountSets(n Node, name string) int {
	count := 0
	for _, c := range Children(n) {
		if c.kind == KindSet && Name(c) == name {
			count++
		}
	}
	return count
}
