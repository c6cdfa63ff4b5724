// Package validator checks flow documents before they are activated.
package validator

import (
	"fmt"
	"strings"

	"github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// Severity of an Issue.
type Severity string

const (
	// SeverityError marks a flow the engine cannot run as authored.
	SeverityError Severity = "error"
	// SeverityWarning marks something the engine tolerates but is likely a mistake.
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity Severity
	NodeID   string
	Message  string
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: node %q: %s", i.Severity, i.NodeID, i.Message)
}

// Report collects the findings for one document.
type Report struct {
	Issues []Issue
}

// Errors returns the error-level issues.
func (r Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-level issues.
func (r Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Err summarizes the error-level issues, or returns nil when there are none.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

func (r *Report) add(s Severity, nodeID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: s, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// Validate inspects doc the way the engine will walk it.
//
// Errors: missing or duplicate node ids, edges pointing at unknown nodes,
// no trigger node. Warnings: unknown node types, empty text or prompt,
// extra outgoing edges (only the first is followed), nodes the walk from
// the trigger never reaches.
func Validate(doc domain.FlowDocument) Report {
	var r Report
	if len(doc.Nodes) == 0 {
		r.add(SeverityWarning, "", "flow has no nodes")
		return r
	}

	g := graph.Load(doc)

	seen := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		switch {
		case n.ID == "":
			r.add(SeverityError, "", "node without id")
			continue
		case seen[n.ID]:
			r.add(SeverityError, n.ID, "duplicate node id; only the first declaration is used")
			continue
		}
		seen[n.ID] = true

		switch n.Type {
		case domain.NodeTypeText:
			if n.String(domain.DataKeyMessage) == "" {
				r.add(SeverityWarning, n.ID, "text node has no message; nothing will be sent")
			}
		case domain.NodeTypeAI:
			if n.String(domain.DataKeyPrompt) == "" {
				r.add(SeverityWarning, n.ID, "AI node has no prompt")
			}
		default:
			r.add(SeverityWarning, n.ID, "unknown node type %q; the node routes without replying", n.Type)
		}
	}

	outgoing := make(map[string]int)
	for _, e := range doc.Edges {
		if _, ok := g.FindNode(e.Source); !ok {
			r.add(SeverityError, e.Source, "edge %q leaves an unknown node", e.ID)
		}
		if _, ok := g.FindNode(e.Target); !ok {
			r.add(SeverityError, e.Source, "edge %q points at unknown node %q", e.ID, e.Target)
		}
		outgoing[e.Source]++
		if outgoing[e.Source] == 2 {
			r.add(SeverityWarning, e.Source, "node has several outgoing edges; only the first is followed")
		}
	}

	trigger, ok := g.TriggerNode()
	if !ok {
		r.add(SeverityError, "", "no trigger node: every node is the target of an edge")
		return r
	}

	reached := walk(g, trigger.ID)
	for _, n := range doc.Nodes {
		if n.ID != "" && !reached[n.ID] {
			r.add(SeverityWarning, n.ID, "unreachable from trigger node %q", trigger.ID)
		}
	}
	return r
}

// walk follows first outgoing edges from start until a dead end or a cycle.
func walk(g *graph.Graph, start string) map[string]bool {
	reached := make(map[string]bool)
	id := start
	for !reached[id] {
		if _, ok := g.FindNode(id); !ok {
			break
		}
		reached[id] = true
		next := g.Next(id)
		if next == nil {
			break
		}
		id = *next
	}
	return reached
}
