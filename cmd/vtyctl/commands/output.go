package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

const (
	formatText = "text"
	formatYAML = "yaml"
	formatJSON = "json"
)

// outputFormat resolves --output. The global --json flag wins when
// --output was not given.
func outputFormat(cmd *cobra.Command, flag string) (string, error) {
	if jsonOutput && !cmd.Flags().Changed("output") {
		return formatJSON, nil
	}
	switch flag {
	case formatText, formatYAML, formatJSON:
		return flag, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, yaml or json)", flag)
	}
}

// writeStructured encodes v as YAML or JSON.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

var operationMarkers = map[engine.OperationType]string{
	engine.OperationCreate: "+",
	engine.OperationUpdate: "~",
	engine.OperationDelete: "-",
	engine.OperationNoop:   " ",
}

// writePlanText renders a plan for people. Converged resources are only
// counted.
func writePlanText(w io.Writer, plan *engine.Plan) {
	fmt.Fprintf(w, "Target %s (config %s)\n", plan.Target, shortDigest(plan.Digest))
	if !plan.HasChanges() {
		fmt.Fprintf(w, "  No changes. %d resources in sync.\n\n", plan.Summary.Noop)
		return
	}

	for _, rp := range plan.Pending() {
		fmt.Fprintf(w, "  %s %s\n", operationMarkers[rp.Operation], rp.ID)
		for _, c := range rp.Changes {
			fmt.Fprintf(w, "      %s\n", describeChange(c))
		}
		for _, cmd := range rp.Commands {
			fmt.Fprintf(w, "      | %s\n", cmd)
		}
	}

	s := plan.Summary
	fmt.Fprintf(w, "  Plan: %d to create, %d to update, %d to delete, %d commands.\n\n",
		s.Create, s.Update, s.Delete, s.Commands)
}

func describeChange(c engine.Change) string {
	switch c.Kind {
	case engine.DeltaList:
		parts := make([]string, 0, len(c.Added)+len(c.Removed))
		for _, v := range c.Removed {
			parts = append(parts, "-"+v)
		}
		for _, v := range c.Added {
			parts = append(parts, "+"+v)
		}
		return fmt.Sprintf("%s: %s", c.Property, strings.Join(parts, " "))
	case engine.DeltaBecamePresent:
		return fmt.Sprintf("%s: (unset) => %v", c.Property, c.After)
	case engine.DeltaBecameAbsent:
		return fmt.Sprintf("%s: %v => (unset)", c.Property, c.Before)
	default:
		return fmt.Sprintf("%s: %v => %v", c.Property, c.Before, c.After)
	}
}

func shortDigest(d string) string {
	if d == "" {
		return "unknown"
	}
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
