package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/redcellhq/redcell/internal/catalog"
	"github.com/redcellhq/redcell/internal/config"
)

// =============================================================================
// Models and Config Command Handlers
// =============================================================================

func runModels(cmd *cobra.Command) error {
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load model catalogue: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tNAME\tCONTEXT\tTOOLS\tAVAILABLE")
	for _, entry := range cat.Availability() {
		tools := "yes"
		if !entry.SupportsTools {
			tools = "no"
		}
		available := "yes"
		if !entry.Available {
			available = fmt.Sprintf("no (set %s)", catalog.EnvKey(entry.Provider))
		}
		fmt.Fprintf(w, "%s:%s\t%s\t%d\t%s\t%s\n",
			entry.Provider, entry.ID, entry.Name, entry.ContextLength, tools, available)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nSelect a model with `redcell chat -m provider:model`.")
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("generate config schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return nil
}
