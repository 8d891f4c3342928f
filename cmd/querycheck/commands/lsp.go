package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/querycheck/pkg/lsp"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/version"
)

// NewLSPCommand creates the language server command.
func NewLSPCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server on stdio",
		Long: `Start a Language Server Protocol server on stdio.

Open query files are checked on open, change and save; diagnostics are
published for syntax errors and structural issues. Hovering a node or field
name shows what the grammar says about it. Edits to a loaded grammar.json
re-check every open document.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd.Context(), global)
		},
	}
}

func runLSP(ctx context.Context, global *GlobalOptions) error {
	sess, err := setup(global, observability.ModeLSP, nil)
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

	srv := lsp.NewServer(ck, store,
		lsp.WithLogger(sess.logger),
		lsp.WithMetrics(red),
		lsp.WithVersion(version.Version),
		lsp.WithContext(ctx),
	)

	store.Subscribe(srv.GrammarChanged)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := store.Watch(watchCtx)
	if watchErr != nil {
		sess.logger.Warn("grammar watching disabled", "error", watchErr)
	}

	return srv.Run()
}
