// Package validator checks properties of a compiled graph that compilation
// alone does not guarantee.
package validator

import (
	"fmt"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
)

// ValidateGraph reports nodes from which no terminal can be reached. Such a
// node traps a conversation forever: it can only be escaped by a reset.
func ValidateGraph(g *dsl.Graph) error {
	nodes := g.Nodes()

	// Crawl backwards from the terminals over reversed edges.
	incoming := make(map[string][]string, len(nodes))
	var queue []string
	for _, n := range nodes {
		for _, target := range n.Targets {
			incoming[target] = append(incoming[target], n.Name)
		}
		if n.Terminal {
			queue = append(queue, n.Name)
		}
	}

	live := make(map[string]bool, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if live[current] {
			continue
		}
		live[current] = true
		for _, from := range incoming[current] {
			if !live[from] {
				queue = append(queue, from)
			}
		}
	}

	var errors []string
	for _, n := range nodes {
		if !live[n.Name] {
			errors = append(errors, fmt.Sprintf("No terminal reachable from '%s'", n.Name))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}
