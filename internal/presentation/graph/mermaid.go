package graph

import (
	"fmt"
	"strings"

	flowgraph "github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// GraphOverlay contains per-contact data to visualize on the graph.
type GraphOverlay struct {
	// CurrentNode is the contact's saved position.
	CurrentNode string
}

const labelLimit = 40

// GenerateMermaid produces a Mermaid flowchart of a flow document.
// It applies semantic styling:
// - Trigger: ((Circle))
// - AI: [[Subroutine]]
// - Text: [Rectangle]
// - Unknown type: [/Parallelogram/]
// Edges the engine follows are solid; extra outgoing edges are dotted.
func GenerateMermaid(doc domain.FlowDocument, overlay *GraphOverlay) string {
	g := flowgraph.Load(doc)
	trigger, hasTrigger := g.TriggerNode()

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case hasTrigger && node.ID == trigger.ID:
			opener, closer = "((", "))"
		case node.Type == domain.NodeTypeAI:
			opener, closer = "[[", "]]"
		case node.Type == domain.NodeTypeText:
		default:
			opener, closer = "[/", "/]"
		}

		label := node.ID
		if summary := summarize(node); summary != "" {
			label = fmt.Sprintf("%s <br/> %s", node.ID, summary)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	followed := make(map[string]bool)
	for _, e := range g.Edges() {
		arrow := "-->"
		if followed[e.Source] {
			arrow = "-.->"
		}
		followed[e.Source] = true
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil && overlay.CurrentNode != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
	}

	return sb.String()
}

// summarize returns a short, quote-safe preview of the node's text or prompt.
func summarize(node domain.Node) string {
	s := node.String(domain.DataKeyMessage)
	if node.Type == domain.NodeTypeAI {
		s = "AI: " + node.String(domain.DataKeyPrompt)
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "\"", "'")
	if r := []rune(s); len(r) > labelLimit {
		s = string(r[:labelLimit-3]) + "..."
	}
	return s
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
