// Package compiler turns raw flow documents (editor JSON, YAML files, store
// documents) into typed domain values.
package compiler

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw bytes into flows.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// flowEnvelope is the shape of a stored flow ("flow_data" wrapping the graph).
type flowEnvelope struct {
	ID       string         `mapstructure:"id"`
	Name     string         `mapstructure:"name"`
	FlowData map[string]any `mapstructure:"flow_data"`
	IsActive bool           `mapstructure:"is_active"`
}

// Parse decodes a JSON or YAML flow file. Both a bare graph ({nodes, edges})
// and a full flow ({name, flow_data, is_active}) are accepted.
func (p *Parser) Parse(data []byte) (*domain.Flow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to parse flow: empty document")
	}

	if _, wrapped := raw["flow_data"]; !wrapped {
		doc, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		return &domain.Flow{Data: doc}, nil
	}

	var env flowEnvelope
	if err := decode(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	doc, err := Decode(env.FlowData)
	if err != nil {
		return nil, err
	}
	return &domain.Flow{ID: env.ID, Name: env.Name, Data: doc, IsActive: env.IsActive}, nil
}

// Decode maps a raw flow_data value onto a FlowDocument. Only the structural
// shape is checked: missing nodes or edges decode to empty slices.
func Decode(raw map[string]any) (domain.FlowDocument, error) {
	var doc domain.FlowDocument
	if raw == nil {
		return doc, nil
	}
	if err := decode(raw, &doc); err != nil {
		return domain.FlowDocument{}, fmt.Errorf("failed to decode flow_data: %w", err)
	}
	return doc, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
