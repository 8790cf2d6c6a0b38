package dsl

import (
	"fmt"
	"slices"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// Node is a compiled, immutable node.
type Node struct {
	Name  string
	Fn    NodeFunc
	Waits bool

	next     string
	router   Router
	outcomes []string
}

// Route resolves the next node from the merged state.
// A router answer outside the declared outcomes fails with domain.ErrUnknownNode.
func (n *Node) Route(state domain.ConversationState) (string, error) {
	if n.router == nil {
		return n.next, nil
	}
	target := n.router(state)
	if !slices.Contains(n.outcomes, target) {
		return "", fmt.Errorf("%w: %q from node %q", domain.ErrUnknownNode, target, n.Name)
	}
	return target, nil
}

// Graph is a validated conversation graph.
type Graph struct {
	entry         string
	nodes         map[string]*Node
	order         []string
	terminals     map[string]bool
	terminalOrder []string
}

// Entry returns the name of the first node.
func (g *Graph) Entry() string {
	return g.entry
}

// Node looks a node up by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// IsTerminal reports whether name ends a run.
func (g *Graph) IsTerminal(name string) bool {
	return g.terminals[name]
}

// NodeInfo describes a node for introspection and rendering.
type NodeInfo struct {
	Name        string   `json:"name"`
	Waits       bool     `json:"waits,omitempty"`
	Terminal    bool     `json:"terminal,omitempty"`
	Conditional bool     `json:"conditional,omitempty"`
	Targets     []string `json:"targets,omitempty"`
}

// Nodes lists nodes in declaration order followed by terminals.
func (g *Graph) Nodes() []NodeInfo {
	out := make([]NodeInfo, 0, len(g.order)+len(g.terminalOrder))
	for _, name := range g.order {
		n := g.nodes[name]
		out = append(out, NodeInfo{
			Name:        name,
			Waits:       n.Waits,
			Conditional: n.router != nil,
			Targets:     append([]string(nil), n.outcomes...),
		})
	}
	for _, name := range g.terminalOrder {
		out = append(out, NodeInfo{Name: name, Terminal: true})
	}
	return out
}
