package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spboyer/flowstats/internal/export"
	"github.com/spboyer/flowstats/internal/fetch"
	"github.com/spboyer/flowstats/internal/models"
)

var (
	definitionsFormat      string
	definitionsEnabledOnly bool
	definitionsProject     string
	definitionsBaseURL     string
)

func newDefinitionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "List the project's evaluation definitions",
		Args:  cobra.NoArgs,
		RunE:  definitionsCommandE,
	}

	cmd.Flags().StringVarP(&definitionsFormat, "format", "f", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&definitionsEnabledOnly, "enabled-only", false, "Only list enabled evaluations")
	cmd.Flags().StringVar(&definitionsProject, "project", "", "Voiceflow project ID (default: $"+envProjectID+")")
	cmd.Flags().StringVar(&definitionsBaseURL, "base-url", "", "Analytics API base URL")

	return cmd
}

func definitionsCommandE(cmd *cobra.Command, _ []string) error {
	if definitionsFormat != "table" && definitionsFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", definitionsFormat)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	cycleOpts.projectID = definitionsProject
	cycleOpts.baseURL = definitionsBaseURL
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	f := &fetch.EvaluationFetcher{API: client}
	defs, err := f.Definitions(cmd.Context(), client.ProjectID(), definitionsEnabledOnly)
	if err != nil {
		return withHint(fmt.Errorf("fetching evaluation definitions: %w", err))
	}

	if definitionsFormat == "json" {
		if defs == nil {
			defs = []models.EvaluationDefinition{}
		}
		return export.WriteJSON(cmd.OutOrStdout(), defs)
	}
	printDefinitionsTable(cmd.OutOrStdout(), defs)
	return nil
}

func printDefinitionsTable(w io.Writer, defs []models.EvaluationDefinition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No evaluation definitions found.") //nolint:errcheck
		return
	}
	t := newTable("ID", "Name", "Type", "Enabled")
	for _, d := range defs {
		enabled := "no"
		if d.Enabled {
			enabled = "yes"
		}
		t.add(d.ID, d.Name, string(d.Type), enabled)
	}
	t.render(w)
}
