// Package main provides the entry point for the querycheck CLI tool.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/querycheck/cmd/querycheck/commands"
	"github.com/Sumatoshi-tech/querycheck/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	global := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "querycheck",
		Short: "Tree-sitter query validation against grammar descriptions",
		Long: `querycheck checks that tree-sitter query patterns can match trees
produced by a grammar, and reports the first offending node of every
pattern that never can.

Commands:
  check     Check query files
  grammar   Inspect and validate grammar.json files
  lsp       Language server for query files
  mcp       MCP server for AI agents`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "config file (default: querycheck.yaml)")
	rootCmd.PersistentFlags().StringVar(&global.EnvFile, "env-file", commands.DefaultEnvFile, "environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&global.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewCheckCommand(global))
	rootCmd.AddCommand(commands.NewGrammarCommand(global))
	rootCmd.AddCommand(commands.NewLSPCommand(global))
	rootCmd.AddCommand(commands.NewMCPCommand(global))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "querycheck %s\n", version.String())
}
