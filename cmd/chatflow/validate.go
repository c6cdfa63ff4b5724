package main

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/internal/cli"
	"github.com/chatflow-ai/chatflow/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>",
	Short: "Check a flow for consistency",
	Long: `Reports broken edges, duplicate ids and a missing trigger node as errors,
and unreachable nodes, empty messages and unknown node types as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := cli.LoadFlowFile(args[0])
		if err != nil {
			return err
		}

		report := validator.Validate(flow.Data)
		out := cmd.OutOrStdout()
		for _, issue := range report.Issues {
			fmt.Fprintln(out, issue.String())
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if err := report.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if strict && len(report.Warnings()) > 0 {
			return fmt.Errorf("validation failed: %d warnings in strict mode", len(report.Warnings()))
		}

		fmt.Fprintf(out, "Flow %q is valid! ✅\n", flow.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
}
