package graph

import (
	"fmt"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
)

// Overlay marks runtime state on top of the static graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid renders a compiled graph as a Mermaid flowchart.
// Shapes:
//   - Entry: ((Circle))
//   - Waiting node: [/Parallelogram/]
//   - Terminal: ([Stadium])
//   - Default: [Rectangle]
//
// Branch edges are dotted; plain edges are solid.
func GenerateMermaid(g *dsl.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch {
		case node.Name == g.Entry():
			opener, closer = "((", "))"
		case node.Terminal:
			opener, closer = "([", "])"
		case node.Waits:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.Name, closer)

		arrow := "-->"
		if node.Conditional {
			arrow = "-.->"
		}
		for _, target := range node.Targets {
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills under both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(name)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
