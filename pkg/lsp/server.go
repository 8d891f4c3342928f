// Package lsp serves query diagnostics and grammar hovers to editors over
// the Language Server Protocol.
package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/safeconv"
)

const (
	serverName       = "querycheck"
	diagnosticSource = "querycheck"
	syntaxErrorCode  = "SyntaxError"
	noGrammarCode    = "NoGrammar"
)

// Grammars resolves the grammar a query document is checked against.
type Grammars interface {
	Resolve(queryPath string) (*grammar.Grammar, error)
}

// Server implements the query language server.
type Server struct {
	store    *DocumentStore
	handler  protocol.Handler
	checker  *checker.Checker
	grammars Grammars
	logger   *slog.Logger
	metrics  *observability.REDMetrics
	version  string
	ctx      context.Context //nolint:containedctx // glsp handlers carry no request context.

	mu     sync.Mutex
	notify glsp.NotifyFunc
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		if logger != nil {
			srv.logger = logger
		}
	}
}

// WithMetrics records request metrics on m.
func WithMetrics(m *observability.REDMetrics) Option {
	return func(srv *Server) {
		srv.metrics = m
	}
}

// WithContext sets the context documents are checked under. glsp passes no
// request context to handlers, so spans and cancellation come from ctx.
func WithContext(ctx context.Context) Option {
	return func(srv *Server) {
		if ctx != nil {
			srv.ctx = ctx
		}
	}
}

// WithVersion sets the version reported to the client.
func WithVersion(version string) Option {
	return func(srv *Server) {
		srv.version = version
	}
}

// NewServer creates a language server checking documents with ck against
// the grammars resolved by grammars.
func NewServer(ck *checker.Checker, grammars Grammars, opts ...Option) *Server {
	srv := &Server{
		store:    NewDocumentStore(),
		checker:  ck,
		grammars: grammars,
		logger:   slog.Default(),
		version:  "dev",
		ctx:      context.Background(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.handler = protocol.Handler{
		Initialize:            srv.initialize,
		Initialized:           srv.initialized,
		Shutdown:              srv.shutdown,
		SetTrace:              srv.setTrace,
		TextDocumentDidOpen:   srv.didOpen,
		TextDocumentDidChange: srv.didChange,
		TextDocumentDidSave:   srv.didSave,
		TextDocumentDidClose:  srv.didClose,
		TextDocumentHover:     srv.hover,
	}

	return srv
}

// Run serves on stdio until the client disconnects.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	if err := lspServer.RunStdio(); err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

// GrammarChanged re-publishes diagnostics of every open document. It is
// meant to be subscribed to grammar file changes.
func (srv *Server) GrammarChanged(path string) {
	srv.mu.Lock()
	notify := srv.notify
	srv.mu.Unlock()

	if notify == nil {
		return
	}

	srv.logger.InfoContext(srv.ctx, "grammar changed, re-checking open documents", "path", path)

	for _, uri := range srv.store.URIs() {
		srv.publish(notify, uri)
	}
}

func (srv *Server) initialize(ctx *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	srv.remember(ctx)

	capabilities := srv.handler.CreateServerCapabilities()

	if opts, ok := capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions); ok {
		full := protocol.TextDocumentSyncKindFull
		opts.Change = &full
	}

	version := srv.version

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (srv *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	srv.remember(ctx)

	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	srv.remember(ctx)

	uri := params.TextDocument.URI

	srv.store.Set(uri, params.TextDocument.Text)
	srv.publish(ctx.Notify, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	text, _ := srv.store.Get(uri)

	for _, change := range params.ContentChanges {
		switch change := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			start, end := change.Range.IndexesIn(text)
			text = text[:start] + change.Text + text[end:]
		}
	}

	srv.store.Set(uri, text)
	srv.publish(ctx.Notify, uri)

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if params.Text != nil {
		srv.store.Set(uri, *params.Text)
	}

	if _, ok := srv.store.Get(uri); ok {
		srv.publish(ctx.Notify, uri)
	}

	return nil
}

func (srv *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})

	return nil
}

func (srv *Server) remember(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}

	srv.mu.Lock()
	srv.notify = ctx.Notify
	srv.mu.Unlock()
}

func (srv *Server) publish(notify glsp.NotifyFunc, uri string) {
	notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: srv.Diagnostics(srv.ctx, uri),
	})
}

// Diagnostics checks the open document at uri. Syntax errors and structural
// issues become errors; a document without a grammar gets one warning.
func (srv *Server) Diagnostics(ctx context.Context, uri string) []protocol.Diagnostic {
	started := time.Now()
	status := observability.StatusOK

	done := srv.metrics.TrackInflight(ctx, "lsp.diagnostics")
	defer func() {
		done()
		srv.metrics.RecordRequest(ctx, "lsp.diagnostics", status, time.Since(started))
	}()

	diagnostics := []protocol.Diagnostic{}

	text, ok := srv.store.Get(uri)
	if !ok {
		return diagnostics
	}

	path := pathOf(uri)

	g, err := srv.grammars.Resolve(path)
	if err != nil {
		status = observability.StatusError

		return append(diagnostics, diagnostic(protocol.Range{}, protocol.DiagnosticSeverityWarning,
			noGrammarCode, err.Error()))
	}

	report, err := srv.checker.Check(ctx, g, path, text)
	if report == nil {
		status = observability.StatusError
		srv.logger.WarnContext(ctx, "cannot check document", "uri", uri, "error", err)

		return diagnostics
	}

	if err != nil {
		status = observability.StatusError
	}

	for _, syntaxErr := range report.SyntaxErrors {
		diagnostics = append(diagnostics, diagnostic(
			protocol.Range{Start: position(syntaxErr.Start.Row, syntaxErr.Start.Column),
				End: position(syntaxErr.End.Row, syntaxErr.End.Column)},
			protocol.DiagnosticSeverityError, syntaxErrorCode, syntaxErr.Message))
	}

	for _, issue := range report.Issues() {
		diagnostics = append(diagnostics, diagnostic(
			protocol.Range{Start: position(issue.Range.Start.Row, issue.Range.Start.Column),
				End: position(issue.Range.End.Row, issue.Range.End.Column)},
			protocol.DiagnosticSeverityError, string(issue.Kind), issue.Message()))
	}

	return diagnostics
}

func diagnostic(rng protocol.Range, severity protocol.DiagnosticSeverity, code, message string) protocol.Diagnostic {
	source := diagnosticSource

	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: code},
		Source:   &source,
		Message:  message,
	}
}

func position(row, column uint) protocol.Position {
	return protocol.Position{
		Line:      safeconv.ClampUintToUint32(row),
		Character: safeconv.ClampUintToUint32(column),
	}
}

// pathOf returns the file path of a file URI, or the URI itself.
func pathOf(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "file" {
		return uri
	}

	return parsed.Path
}
