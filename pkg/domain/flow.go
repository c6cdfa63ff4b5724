package domain

// FlowDocument is the node graph payload of a flow ("flow_data").
// Order is significant: the first matching edge wins and the first
// node without an incoming edge is the trigger.
type FlowDocument struct {
	Nodes []Node `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges" mapstructure:"edges"`
}

// Flow is an administrator-authored conversation graph.
// The store guarantees that at most one flow has IsActive set.
type Flow struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Data     FlowDocument `json:"flow_data"`
	IsActive bool         `json:"is_active"`
}
