package dsl

import (
	"fmt"
	"sort"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	entry     string
	nodes     map[string]*NodeBuilder
	order     []string
	terminals map[string]int
}

// New creates a new graph builder whose runs start at entry.
func New(entry string) *Builder {
	return &Builder{
		entry:     entry,
		nodes:     make(map[string]*NodeBuilder),
		terminals: make(map[string]int),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(name string) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		return nb
	}
	nb := &NodeBuilder{name: name, builder: b}
	b.nodes[name] = nb
	b.order = append(b.order, name)
	return nb
}

// Terminal registers names that end a run when routed to.
func (b *Builder) Terminal(names ...string) *Builder {
	for _, name := range names {
		b.terminals[name]++
	}
	return b
}

// Compile validates the graph and freezes it.
// Every problem is collected into a *domain.GraphError.
func (b *Builder) Compile() (*Graph, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if b.entry == "" {
		addf("no entry node")
	} else if _, ok := b.nodes[b.entry]; !ok {
		addf("entry node %q is not defined", b.entry)
	}

	terminals := make([]string, 0, len(b.terminals))
	for name, count := range b.terminals {
		terminals = append(terminals, name)
		if count > 1 {
			addf("terminal %q declared %d times", name, count)
		}
		if _, ok := b.nodes[name]; ok {
			addf("%q is both a node and a terminal", name)
		}
	}
	sort.Strings(terminals)

	for _, name := range b.order {
		nb := b.nodes[name]
		switch {
		case nb.defined == 0:
			addf("node %q has no body", name)
		case nb.defined > 1:
			addf("node %q defined %d times", name, nb.defined)
		}
		switch {
		case nb.edges == 0:
			addf("node %q has no outgoing edge", name)
		case nb.edges > 1:
			addf("node %q has %d outgoing edges", name, nb.edges)
		}
		if nb.router != nil && len(nb.outcomes) == 0 {
			addf("node %q branches without declared outcomes", name)
		}
		for _, target := range nb.outcomes {
			_, isNode := b.nodes[target]
			_, isTerminal := b.terminals[target]
			if !isNode && !isTerminal {
				addf("node %q routes to undefined %q", name, target)
			}
		}
	}

	if len(problems) == 0 {
		for _, name := range b.unreachable() {
			addf("node %q is unreachable from %q", name, b.entry)
		}
	}

	if len(problems) > 0 {
		return nil, &domain.GraphError{Problems: problems}
	}

	g := &Graph{
		entry:         b.entry,
		nodes:         make(map[string]*Node, len(b.nodes)),
		order:         append([]string(nil), b.order...),
		terminals:     make(map[string]bool, len(terminals)),
		terminalOrder: terminals,
	}
	for _, name := range terminals {
		g.terminals[name] = true
	}
	for _, name := range b.order {
		nb := b.nodes[name]
		g.nodes[name] = &Node{
			Name:     name,
			Fn:       nb.fn,
			Waits:    nb.waits,
			next:     nb.next,
			router:   nb.router,
			outcomes: append([]string(nil), nb.outcomes...),
		}
	}
	return g, nil
}

// unreachable runs a BFS from the entry over declared outcomes.
func (b *Builder) unreachable() []string {
	seen := map[string]bool{b.entry: true}
	queue := []string{b.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		nb, ok := b.nodes[cur]
		if !ok {
			continue
		}
		for _, target := range nb.outcomes {
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		}
	}

	var out []string
	for _, name := range b.order {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}
