// Package cmd provides the sitepipe command-line interface.
//
// Configuration is read with the following precedence:
//  1. Command-line flags (--config, --log-level, --port, ...)
//  2. SITEPIPE_CONFIG_FILE environment variable: custom config file path
//  3. Individual environment variables (SITEPIPE_SERVER_PORT, SITEPIPE_CSS_VARIABLES, ...)
//  4. The .sitepipe.yml file in the working directory
//
// Every value has a default, so a project laid out the stock way needs no
// configuration at all.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

var cfgFile string

// rootCmd runs the dev task when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Static-site asset pipeline with a live-reload dev server",
	Long: `sitepipe renders page templates to HTML, bundles, lints and purges the
stylesheet, copies scripts, fonts, images and videos into the output
directory, and serves the result with live reload while you work.

Quick Start:
  sitepipe init        Write a .sitepipe.yml with every default spelled out
  sitepipe             Build once, then watch and serve (same as "sitepipe dev")
  sitepipe build       Clean and produce the complete output
  sitepipe list        Show every task and what it depends on`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, tasks.Dev)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.FileName+", can also use SITEPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	addServerFlags(rootCmd)
}

// initConfig points viper at the config file and enables SITEPIPE_ env
// overrides. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITEPIPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.FileName, ".yml"))
	}

	viper.SetEnvPrefix("SITEPIPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// normalizeFlag accepts --log_level for --log-level.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
