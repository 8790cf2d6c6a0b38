package dsl

import (
	"context"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// NodeFunc is the body of a node.
// in is non-nil only when the node is resumed with the actor's input.
type NodeFunc func(ctx context.Context, state domain.ConversationState, in *domain.Input) (domain.Update, error)

// Router picks the next node from the merged state. It must be pure.
type Router func(state domain.ConversationState) string

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	name    string
	fn      NodeFunc
	waits   bool
	defined int

	next     string
	router   Router
	outcomes []string
	edges    int

	builder *Builder
}

// Run sets the body of a node that never suspends.
func (n *NodeBuilder) Run(fn NodeFunc) *NodeBuilder {
	n.fn = fn
	n.waits = false
	n.defined++
	return n
}

// Wait sets the body of a node that may suspend by returning an Update with a Prompt.
func (n *NodeBuilder) Wait(fn NodeFunc) *NodeBuilder {
	n.fn = fn
	n.waits = true
	n.defined++
	return n
}

// Next adds an unconditional edge to the target node.
func (n *NodeBuilder) Next(target string) *NodeBuilder {
	n.next = target
	n.router = nil
	n.outcomes = []string{target}
	n.edges++
	return n
}

// Branch adds a conditional edge. outcomes lists every name router may return.
func (n *NodeBuilder) Branch(router Router, outcomes ...string) *NodeBuilder {
	n.next = ""
	n.router = router
	n.outcomes = append([]string(nil), outcomes...)
	n.edges++
	return n
}
