package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatflow-ai/chatflow/internal/compiler"
	"github.com/chatflow-ai/chatflow/internal/validator"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// LoadFlowFile reads a JSON or YAML flow file. A flow without a name is named
// after the file.
func LoadFlowFile(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	flow, err := compiler.NewParser().Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if flow.Name == "" {
		flow.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return flow, nil
}

// ActivateFlowFile validates the flow in path and saves it as the active flow.
// Warnings are logged; errors reject the flow.
func ActivateFlowFile(ctx context.Context, store ports.FlowStore, path string, logger *slog.Logger) (*domain.Flow, error) {
	flow, err := LoadFlowFile(path)
	if err != nil {
		return nil, err
	}

	report := validator.Validate(flow.Data)
	for _, w := range report.Warnings() {
		logger.Warn("Flow warning", "flow", flow.Name, "issue", w.String())
	}
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("flow %q rejected: %w", flow.Name, err)
	}

	flow.IsActive = true
	saved, err := store.SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}
	logger.Info("Flow activated", "flow", saved.Name, "flow_id", saved.ID, "nodes", len(saved.Data.Nodes))
	return saved, nil
}
