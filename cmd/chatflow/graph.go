package main

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/internal/cli"
	"github.com/chatflow-ai/chatflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow-file>",
	Short: "Export the flow graph visualization",
	Long: `Reads a flow file (JSON or YAML) and outputs a Mermaid diagram (graph TD).
The trigger node is drawn as a circle; the edge the engine follows from each
node is solid, any other outgoing edge is dotted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := cli.LoadFlowFile(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.GraphOverlay{CurrentNode: current}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow.Data, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight a contact position (node id)")
}
