package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Overlay carries session state to highlight on the rendered graph.
type Overlay struct {
	Values  map[string]domain.Value
	Blocked []string
	Active  []string
}

// Mermaid renders the graph as a Mermaid flowchart. Each edge is labelled with the rule
// that contributes it; overlay styling is applied when overlay is not nil.
func (g *Graph) Mermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, key := range g.order {
		label := key
		if overlay != nil {
			if v := overlay.Values[key]; v.IsSet() {
				label = fmt.Sprintf("%s = %s", key, v)
			}
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", mermaidID(key), escapeLabel(label))
	}
	for _, e := range g.edges {
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", mermaidID(e.From), escapeLabel(e.Rule), mermaidID(e.To))
	}

	if overlay == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Session state\n")
	// Force black text for contrast on light fills regardless of theme
	sb.WriteString("    classDef set fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef blocked fill:#ffcdd2,stroke:#b71c1c,stroke-width:3px,color:#000;\n")

	for _, key := range g.order {
		if overlay.Values[key].IsSet() {
			fmt.Fprintf(&sb, "    class %s set;\n", mermaidID(key))
		}
	}
	for _, key := range overlay.Active {
		if g.Has(key) && !overlay.Values[key].IsSet() {
			fmt.Fprintf(&sb, "    class %s active;\n", mermaidID(key))
		}
	}
	for _, key := range overlay.Blocked {
		if g.Has(key) {
			fmt.Fprintf(&sb, "    class %s blocked;\n", mermaidID(key))
		}
	}
	return sb.String()
}

func mermaidID(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(key)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
