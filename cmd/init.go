package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/assets"
	"github.com/conneroisu/sitepipe/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default configuration file",
	Long: `Write a .sitepipe.yml that spells out every default. If no directory is
given, the current one is used.

Examples:
  sitepipe init                  # Write .sitepipe.yml here
  sitepipe init my-site          # Create my-site/ and write the config there
  sitepipe init --scaffold       # Also create a starter source tree
  sitepipe init --force          # Replace an existing config file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce    bool
	initScaffold bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initScaffold, "scaffold", false, "Create a starter page, layout, stylesheet and script")
}

// starter files, keyed by path relative to the source directory
var scaffoldFiles = map[string]string{
	"templates/layout.html": `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ Title() }}</title>
<link rel="stylesheet" href="/style.css">
</head>
<body>
{{ Body() }}
<script src="/js/app.js" defer></script>
</body>
</html>
`,
	"pages/index.html": `{% extends "/templates/layout.html" %}
{% macro Title %}Home{% end %}
{% macro Body %}
<main class="page">
<h1>It works</h1>
</main>
{% end %}
`,
	"css/style.css": `.page {
  max-width: 40rem;
  margin: 0 auto;
}
`,
	"js/app.js": "document.documentElement.classList.add('js');\n",
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	cfg := config.Default()
	file := filepath.Join(dir, config.FileName)
	if err := config.WriteFile(file, cfg, initForce); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", file)

	if !initScaffold {
		return nil
	}

	for _, sub := range []string{"images", "fonts", "videos"} {
		if err := os.MkdirAll(filepath.Join(dir, cfg.Source, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	for name, content := range scaffoldFiles {
		target := filepath.Join(dir, cfg.Source, filepath.FromSlash(name))
		if _, err := os.Stat(target); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Kept", target)
			continue
		}
		if err := assets.WriteFile(target, []byte(content)); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Created", target)
	}
	return nil
}
