package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/querycheck/pkg/mcp"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes querycheck as tools that AI agents can discover
and invoke:
  - query_check: check query text against a grammar
  - grammar_rules: list the top-level rules of a grammar`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), global)
		},
	}
}

func runMCP(ctx context.Context, global *GlobalOptions) error {
	sess, err := setup(global, observability.ModeMCP, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	store, release, err := sess.openStore(sess.cfg.Grammar)
	if err != nil {
		return err
	}
	defer release()

	ck, err := newChecker(sess.cfg, sess)
	if err != nil {
		return err
	}

	red, err := observability.NewREDMetrics(sess.providers.Meter)
	if err != nil {
		return fmt.Errorf("create request metrics: %w", err)
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Grammars: store,
		Checker:  ck,
		Version:  version.Version,
		Logger:   sess.logger,
		Metrics:  red,
		Tracer:   sess.providers.Tracer,
	})

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := store.Watch(watchCtx)
	if watchErr != nil {
		sess.logger.Warn("grammar watching disabled", "error", watchErr)
	}

	return srv.Run(ctx)
}
