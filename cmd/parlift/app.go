package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parlift/internal/compiler"
	"parlift/internal/config"
	"parlift/internal/history"
	"parlift/internal/util"
	"parlift/internal/watcher"
)

// App wires the compiler, the optional history store and the watch-mode
// observability endpoint.
type App struct {
	cfg      *config.Config
	compiler *compiler.Compiler
	store    *history.Store
	watcher  *watcher.Watcher
	metrics  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:      cfg,
		compiler: compiler.New(cfg),
	}
	if cfg.DB.Enabled {
		store, err := history.Open(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		app.store = store
	}
	return app, nil
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Run compiles every host source reachable from paths.
func (a *App) Run(ctx context.Context, paths []string) (*compiler.Summary, error) {
	files, err := util.ScanSourceFiles(paths, a.cfg.Exclude.Dirs, a.cfg.Exclude.Files)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &compiler.Summary{}, nil
	}

	summary, err := a.compiler.Compile(ctx, files)
	if err != nil {
		return summary, err
	}
	a.recordRun(summary)
	return summary, nil
}

func (a *App) recordRun(summary *compiler.Summary) {
	if a.store == nil || summary == nil {
		return
	}
	runID, err := a.store.SaveRun(history.Run{
		FileCount:     summary.Files,
		ClassCount:    summary.Classes,
		InputBinds:    summary.InputBinds,
		Operations:    summary.Operations,
		OutputBinds:   summary.OutputBinds,
		MethodCalls:   summary.MethodCalls,
		ParallelOps:   summary.Parallel,
		SequentialOps: summary.Sequential,
		KernelFiles:   summary.KernelFiles,
		Warnings:      summary.Warnings,
		Errors:        summary.Errors,
		Duration:      summary.Duration,
	})
	if err != nil {
		slog.Warn("failed to record compilation run", "error", err)
		return
	}
	slog.Debug("recorded compilation run", "run_id", runID)
}

// StartWatcher recompiles changed sources and serves /metrics while
// watching.
func (a *App) StartWatcher(ctx context.Context, paths []string) error {
	w, err := watcher.NewWatcher(
		a.cfg.Watch.Debounce,
		a.cfg.Watch.RecompilesPerSecond,
		a.cfg.Watch.Burst,
		a.cfg.Exclude.Dirs,
		a.cfg.Exclude.Files,
		func(changed []string) {
			slog.Info("detected changes", "count", len(changed))
			summary, err := a.compiler.Compile(ctx, changed)
			if err != nil {
				slog.Error("recompilation failed", "error", err)
				return
			}
			a.recordRun(summary)
			a.PrintSummary(summary)
		},
	)
	if err != nil {
		return err
	}
	a.watcher = w
	if err := w.Watch(paths); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: a.cfg.Observability.MetricsAddress, Handler: mux}
	go func() {
		slog.Info("metrics server starting", "addr", a.cfg.Observability.MetricsAddress)
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

// PrintHistory lists the most recent compilation runs.
func (a *App) PrintHistory(limit int) error {
	if a.store == nil {
		return fmt.Errorf("history is disabled; enable db in %s", "parlift.toml")
	}
	runs, err := a.store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(os.Stdout, "%s  %s  files=%d classes=%d ops=%d (parallel=%d sequential=%d) warnings=%d errors=%d %s\n",
			run.RunID[:8], run.Timestamp.Format("2006-01-02 15:04:05"),
			run.FileCount, run.ClassCount, run.Operations,
			run.ParallelOps, run.SequentialOps, run.Warnings, run.Errors, run.Duration)
	}
	return nil
}
