// cmd/ask/registry.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"analytics-assistant/pkg/registry"
)

var registryPath string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the activity registry",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the activity registry against its schema",
	Long: `Load the activity registry and report every schema problem.

Examples:
  ask registry validate
  ask registry validate --path ./configs/activity-registry.json`,
	RunE: runRegistryValidate,
}

func init() {
	registryValidateCmd.Flags().StringVar(&registryPath, "path", "configs/activity-registry.json", "Path to the activity registry")
	registryCmd.AddCommand(registryValidateCmd)
}

func runRegistryValidate(cmd *cobra.Command, _ []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return err
	}

	problems := reg.Validate()
	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintf(out, "  ✗ %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) in %s", len(problems), registryPath)
	}

	fmt.Fprintf(out, "✓ %d activities valid\n", len(reg.Activities))
	return nil
}
