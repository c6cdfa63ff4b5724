package domain

// NodeType constants are the tags the flow editor writes into a node's "type" field.
const (
	// NodeTypeText sends the literal Data["message"] string.
	NodeTypeText = "textMessage"
	// NodeTypeAI sends a reply generated from Data["prompt"] and the chat history.
	NodeTypeAI = "aiResponse"
)

// Data keys read by the built-in node kinds.
const (
	DataKeyMessage = "message"
	DataKeyPrompt  = "prompt"
)

// Node represents a single step in a flow graph.
type Node struct {
	ID   string `json:"id" yaml:"id" mapstructure:"id"`
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	// Data holds the type-specific payload written by the flow editor.
	// Unknown keys (positions, labels) are preserved and ignored.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

// String returns Data[key] when it is a string, or "" otherwise.
func (n Node) String(key string) string {
	if n.Data == nil {
		return ""
	}
	s, _ := n.Data[key].(string)
	return s
}

// Edge is a directed transition between two nodes.
type Edge struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}
