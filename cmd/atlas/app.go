package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whharris917/atlas-sub000/internal/analysis"
	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/config"
	"github.com/whharris917/atlas-sub000/internal/diag"
	"github.com/whharris917/atlas-sub000/internal/lint"
	"github.com/whharris917/atlas-sub000/internal/output"
	"github.com/whharris917/atlas-sub000/internal/parser"
	"github.com/whharris917/atlas-sub000/internal/shared/observability"
	"github.com/whharris917/atlas-sub000/internal/store"
	"github.com/whharris917/atlas-sub000/internal/watcher"
)

// App owns the long-lived pieces of a run: the parser, the config-derived
// allowlist, and the optional store. Each scan builds a fresh catalog and
// fresh reports from them.
type App struct {
	cfg    *config.Config
	parser *parser.Parser
	allow  catalog.Allowlist
	st     *store.Store

	scanMu sync.Mutex
}

func NewApp(cfg *config.Config) (*App, error) {
	p, err := parser.NewParser()
	if err != nil {
		return nil, fmt.Errorf("initialize parser: %w", err)
	}

	app := &App{
		cfg:    cfg,
		parser: p,
		allow: catalog.Allowlist{
			Namespaces: cfg.External.Namespaces,
			Members:    cfg.External.Members,
		},
	}

	if cfg.Output.StorePath != "" {
		st, err := store.Open(cfg.Output.StorePath, cfg.Output.ProjectKey)
		if err != nil {
			p.Close()
			return nil, err
		}
		app.st = st
	}

	return app, nil
}

func (a *App) Close() {
	a.parser.Close()
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
}

// Scan runs both passes end to end and writes every configured output.
// Concurrent invocations serialize; the watcher calls this from its own
// goroutine.
func (a *App) Scan(ctx context.Context) error {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "scan")
	defer span.End()

	disc, err := parser.NewDiscovery(a.cfg.SourceRoots, a.cfg.Exclude.Dirs, a.cfg.Exclude.Files)
	if err != nil {
		return err
	}
	modules, err := parser.Load(disc, a.parser, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("sources loaded", "modules", len(modules))

	sink := diag.LogSink{Logger: slog.Default()}

	catalogStart := time.Now()
	catCtx, catSpan := observability.Tracer.Start(ctx, "catalog")
	builder := catalog.NewBuilder(a.allow, nil, sink, slog.Default())
	cat, err := builder.Build(catCtx, modules)
	catSpan.End()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	observability.PassDuration.WithLabelValues("catalog").Observe(time.Since(catalogStart).Seconds())
	slog.Info("catalog built",
		"classes", len(cat.Classes),
		"functions", len(cat.Functions),
		"state", len(cat.State),
	)

	if findings := lint.NewChecker(sink).Check(cat); findings > 0 {
		slog.Info("annotation findings", "count", findings)
	}

	analysisStart := time.Now()
	anCtx, anSpan := observability.Tracer.Start(ctx, "analysis")
	classifiers := []analysis.CallClassifier{analysis.NewEmitDetector(a.cfg.EmitVerbs)}
	orch := analysis.NewOrchestrator(cat, a.allow, classifiers, sink, slog.Default())
	reports := orch.Run(anCtx, modules)
	anSpan.End()
	observability.PassDuration.WithLabelValues("analysis").Observe(time.Since(analysisStart).Seconds())

	if a.cfg.Output.CatalogPath != "" {
		if err := output.WriteCatalog(a.cfg.Output.CatalogPath, cat); err != nil {
			return err
		}
	}
	if a.cfg.Output.ReportPath != "" {
		if err := output.WriteReports(a.cfg.Output.ReportPath, reports); err != nil {
			return err
		}
	}
	if a.st != nil {
		runID, err := a.st.SaveRun(cat, reports)
		if err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		slog.Info("run persisted", "run_id", runID)
	}

	return nil
}

// WatchLoop rescans on debounced filesystem changes until ctx is canceled.
// A change batch triggers a full rescan; the two-pass design has no
// incremental mode.
func (a *App) WatchLoop(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.cfg.Watch.Debounce,
		a.cfg.Watch.RescanPerSec,
		a.cfg.Exclude.Dirs,
		a.cfg.Exclude.Files,
		func(paths []string) {
			slog.Info("sources changed", "files", len(paths))
			if err := a.Scan(ctx); err != nil {
				slog.Error("rescan failed", "error", err)
			}
		},
	)
	if err != nil {
		return fmt.Errorf("initialize watcher: %w", err)
	}
	defer w.Close()

	if err := w.Watch(a.cfg.SourceRoots); err != nil {
		return fmt.Errorf("watch roots: %w", err)
	}

	<-ctx.Done()
	return nil
}
