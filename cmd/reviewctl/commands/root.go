package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"review_toolkit/internal/registry"
)

// NewRoot builds the CLI from the operator catalog: one subcommand per
// operator, flags generated from its declared parameter schema.
func NewRoot(reg *registry.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewctl",
		Short: "reviewctl scrapes, transforms and imports product reviews.",
	}
	root.AddCommand(listCommand(reg))
	for _, op := range reg.Operators() {
		root.AddCommand(operatorCommand(reg, op))
	}
	return root
}

func Execute(ctx context.Context, reg *registry.Registry) {
	if err := NewRoot(reg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCommand(reg *registry.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available operators and their parameters.",
		Run: func(cmd *cobra.Command, args []string) {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Operator", "Summary", "Parameters"})
			for _, op := range reg.Operators() {
				params := ""
				for i, p := range op.Params {
					if i > 0 {
						params += ", "
					}
					params += p.Name
					if p.Required {
						params += "*"
					}
				}
				t.AppendRow(table.Row{op.Name, op.Summary, params})
			}
			t.Render()
		},
	}
}

func operatorCommand(reg *registry.Registry, op *registry.Operator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op.Name,
		Short: op.Summary,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]string{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				values[f.Name] = f.Value.String()
			})
			res, err := reg.Invoke(cmd.Context(), op.Name, values)
			if err != nil {
				return err
			}
			renderResult(cmd, res)
			return nil
		},
	}
	for _, p := range op.Params {
		registerFlag(cmd, p)
		if p.Required {
			_ = cmd.MarkFlagRequired(p.Name)
		}
	}
	return cmd
}

func registerFlag(cmd *cobra.Command, p registry.ParamSpec) {
	switch p.Type {
	case registry.TypeInt:
		def, _ := strconv.Atoi(p.Default)
		cmd.Flags().Int(p.Name, def, p.Help)
	case registry.TypeFloat:
		def, _ := strconv.ParseFloat(p.Default, 64)
		cmd.Flags().Float64(p.Name, def, p.Help)
	case registry.TypeBool:
		def, _ := strconv.ParseBool(p.Default)
		cmd.Flags().Bool(p.Name, def, p.Help)
	default:
		cmd.Flags().String(p.Name, p.Default, p.Help)
	}
}

func renderResult(cmd *cobra.Command, res registry.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"operator", res.Operator})
	t.AppendRow(table.Row{"run_id", res.RunID})
	t.AppendRow(table.Row{"dry_run", res.DryRun})
	switch {
	case res.Scrape != nil:
		t.AppendRow(table.Row{"fetched", res.Scrape.Fetched})
		t.AppendRow(table.Row{"normalized", res.Scrape.Normalized})
		t.AppendRow(table.Row{"skipped", res.Scrape.Skipped})
		t.AppendRow(table.Row{"last_page", res.Scrape.LastPage})
	case res.Import != nil:
		t.AppendRow(table.Row{"inserted", res.Import.Inserted})
		t.AppendRow(table.Row{"duplicates", res.Import.Duplicates})
		t.AppendRow(table.Row{"failed", res.Import.Failed})
		t.AppendRow(table.Row{"csv_skipped", res.CSVSkipped})
	case res.Change != nil:
		t.AppendRow(table.Row{"matched", res.Change.Matched})
		t.AppendRow(table.Row{"changed", res.Change.Changed})
	}
	t.Render()

	if res.Change != nil && len(res.Change.Preview) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "preview:")
		for _, line := range res.Change.Preview {
			fmt.Fprintln(cmd.OutOrStdout(), "  "+line)
		}
	}
}
