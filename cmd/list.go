package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List every task and the path table",
	Long: `List every task with the tasks it runs first, and optionally the path
table mapping each asset category to its source glob and output directory.

Examples:
  sitepipe list                  # Tasks as a table
  sitepipe list --paths          # Also show the path table
  sitepipe list -f json          # Output as JSON
  sitepipe list -f yaml          # Output as YAML`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listFormat string
	listPaths  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json, yaml)")
	listCmd.Flags().BoolVar(&listPaths, "paths", false, "Include the path table")
}

type taskListing struct {
	Name  string   `json:"name" yaml:"name"`
	Usage string   `json:"usage" yaml:"usage"`
	Deps  []string `json:"deps,omitempty" yaml:"deps,omitempty"`
}

type pathListing struct {
	Category string `json:"category" yaml:"category"`
	Source   string `json:"source" yaml:"source"`
	Dest     string `json:"dest,omitempty" yaml:"dest,omitempty"`
}

type listing struct {
	Tasks []taskListing `json:"tasks" yaml:"tasks"`
	Paths []pathListing `json:"paths,omitempty" yaml:"paths,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out, err := buildListing(cfg, listPaths)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch listFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	case "table":
		return writeListingTable(w, out)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", listFormat)
	}
}

func buildListing(cfg *config.Config, withPaths bool) (listing, error) {
	pipeline, err := tasks.New(cfg, logging.Nop(), tasks.Options{})
	if err != nil {
		return listing{}, err
	}

	var out listing
	for _, t := range pipeline.Tasks() {
		out.Tasks = append(out.Tasks, taskListing{Name: t.Name, Usage: t.Usage, Deps: t.Deps})
	}

	if withPaths {
		table, err := cfg.Table()
		if err != nil {
			return listing{}, err
		}
		for _, c := range table.Categories() {
			entry := table.MustResolve(c)
			out.Paths = append(out.Paths, pathListing{Category: string(c), Source: entry.Source, Dest: entry.Dest})
		}
	}
	return out, nil
}

func writeListingTable(out io.Writer, l listing) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "TASK\tRUNS FIRST\tDESCRIPTION")
	fmt.Fprintln(w, "----\t----------\t-----------")
	for _, t := range l.Tasks {
		deps := "-"
		if len(t.Deps) > 0 {
			deps = strings.Join(t.Deps, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, deps, t.Usage)
	}

	if len(l.Paths) > 0 {
		title := cases.Title(language.English)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CATEGORY\tSOURCE\tOUTPUT")
		fmt.Fprintln(w, "--------\t------\t------")
		for _, p := range l.Paths {
			dest := p.Dest
			if dest == "" {
				dest = "(read only)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", title.String(p.Category), p.Source, dest)
		}
	}

	return w.Flush()
}
