package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parlift/internal/analyzer"
	"parlift/internal/config"
	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/observability"
	"parlift/internal/rewrite"
	"parlift/internal/symbols"
	"parlift/internal/translation"
	"parlift/internal/translation/pmruntime"
	"parlift/internal/translation/renderscript"
	"parlift/internal/userlib"
	"parlift/internal/util"
)

// FileResult is the per-file outcome of one compilation.
type FileResult struct {
	Path        string
	Classes     int
	InputBinds  int
	Operations  int
	OutputBinds int
	MethodCalls int
	Parallel    int
	Sequential  int
	Warnings    []string
	Err         error
}

// Summary aggregates one compilation run.
type Summary struct {
	Files       int
	Classes     int
	InputBinds  int
	Operations  int
	OutputBinds int
	MethodCalls int
	Parallel    int
	Sequential  int
	KernelFiles int
	Warnings    int
	Errors      int
	Duration    time.Duration
	Results     []FileResult
}

// Compiler drives the pipeline: parse and collect every file, then extract,
// classify, translate and rewrite class by class. Files are independent; a
// fatal error aborts its file only.
type Compiler struct {
	cfg       *config.Config
	catalog   userlib.Catalog
	backends  []*translation.Backend
	preferred translation.Target
	secondary translation.Target

	seq             int
	compiledClasses []compiledClass
}

type compiledClass struct {
	packageName string
	className   string
}

// fileState carries one file's artifacts between the two passes.
type fileState struct {
	path   string
	source *analyzer.Source
	table  *symbols.Table
}

func New(cfg *config.Config) *Compiler {
	catalog := userlib.NewCatalog()
	ctrans := translation.JavaCTranslator{}

	preferred := translation.TargetParallelME
	secondary := translation.TargetRenderScript
	if cfg.Runtime.Preferred == "renderscript" {
		preferred, secondary = secondary, preferred
	}

	return &Compiler{
		cfg:     cfg,
		catalog: catalog,
		backends: []*translation.Backend{
			renderscript.New(ctrans, catalog),
			pmruntime.New(ctrans, catalog),
		},
		preferred: preferred,
		secondary: secondary,
	}
}

// Compile runs the whole pipeline over the given source files.
func (c *Compiler) Compile(ctx context.Context, files []string) (*Summary, error) {
	ctx, span := observability.Tracer.Start(ctx, "compiler.Compile",
		trace.WithAttributes(attribute.Int("files", len(files))))
	defer span.End()

	start := time.Now()
	summary := &Summary{Files: len(files)}

	// First pass over every file before any second pass runs. Each file
	// keeps its own symbol table; no symbols are shared across files.
	states := make([]*fileState, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		state, err := c.firstPass(path)
		if err != nil {
			summary.Errors++
			summary.Results = append(summary.Results, FileResult{Path: path, Err: err})
			observability.FilesCompiledTotal.WithLabelValues("error").Inc()
			slog.Error("first pass failed", "file", path, "error", err)
			continue
		}
		states = append(states, state)
	}
	defer func() {
		for _, state := range states {
			state.source.Close()
		}
	}()

	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := c.compileFile(ctx, state)
		summary.Results = append(summary.Results, result)
		if result.Err != nil {
			summary.Errors++
			observability.FilesCompiledTotal.WithLabelValues("error").Inc()
			slog.Error("compilation failed", "file", state.path, "error", result.Err)
			continue
		}
		observability.FilesCompiledTotal.WithLabelValues("ok").Inc()
		summary.Classes += result.Classes
		summary.InputBinds += result.InputBinds
		summary.Operations += result.Operations
		summary.OutputBinds += result.OutputBinds
		summary.MethodCalls += result.MethodCalls
		summary.Parallel += result.Parallel
		summary.Sequential += result.Sequential
		summary.Warnings += len(result.Warnings)
		summary.KernelFiles += result.Classes * len(c.backends)
	}

	if len(c.compiledClasses) > 0 {
		if err := c.writeAndroidMK(); err != nil {
			summary.Errors++
			slog.Error("build script emission failed", "error", err)
		}
		if err := c.exportInternalLibraries(); err != nil {
			summary.Errors++
			slog.Error("internal library export failed", "error", err)
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (c *Compiler) firstPass(path string) (*fileState, error) {
	timer := time.Now()
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source, err := analyzer.ParseSource(path, content)
	if err != nil {
		return nil, err
	}
	table := symbols.NewTable()
	if err := analyzer.NewFirstPass(table, source.Stream, c.catalog).Run(source.Root()); err != nil {
		source.Close()
		return nil, err
	}
	observability.PassDuration.WithLabelValues("first").Observe(time.Since(timer).Seconds())
	slog.Info("1st pass file", "file", path)
	return &fileState{path: path, source: source, table: table}, nil
}

func (c *Compiler) compileFile(ctx context.Context, state *fileState) FileResult {
	_, span := observability.Tracer.Start(ctx, "compiler.compileFile",
		trace.WithAttributes(attribute.String("file", state.path)))
	defer span.End()

	result := FileResult{Path: state.path}
	slog.Info("2nd pass file", "file", state.path)

	timer := time.Now()
	pass := analyzer.NewSecondPass(state.table, state.source.Stream, c.catalog)
	analysis, next, err := pass.Run(state.source.Root(), c.seq)
	if err != nil {
		result.Err = errors.AddContext(err, errors.CtxFile, state.path)
		return result
	}
	c.seq = next
	observability.PassDuration.WithLabelValues("second").Observe(time.Since(timer).Seconds())

	rewriter := rewrite.NewRewriter(state.source.Stream)
	for _, class := range analysis.Classes {
		if !class.HasUserLibraryUsage() {
			continue
		}
		diags := ir.Classify(class.Ops.Operations)
		for _, d := range diags {
			observability.NonFinalCaptureWarnings.Inc()
			msg := fmt.Sprintf("%s:%d: %s", state.path, d.Line, d.Message)
			result.Warnings = append(result.Warnings, msg)
			slog.Warn(d.Message, "file", state.path, "line", d.Line)
		}
		if err := c.translateClass(analysis, class, state, rewriter); err != nil {
			result.Err = errors.AddContext(err, errors.CtxFile, state.path)
			return result
		}
		result.Classes++
		result.InputBinds += len(class.Ops.InputBinds)
		result.Operations += len(class.Ops.Operations)
		result.OutputBinds += len(class.Ops.OutputBinds)
		result.MethodCalls += len(class.MethodCalls)
		for _, op := range class.Ops.Operations {
			if op.Execution == ir.ExecutionParallel {
				result.Parallel++
			} else {
				result.Sequential++
			}
		}
	}

	// A file without user-library references produces no artifacts and is
	// left byte-identical on disk.
	if result.Classes == 0 {
		return result
	}

	rewritten, err := rewriter.Render()
	if err != nil {
		result.Err = errors.AddContext(err, errors.CtxFile, state.path)
		return result
	}
	dest := c.javaDestination(analysis.PackageName)
	if err := util.WriteGenerated(filepath.Base(state.path), dest, rewritten); err != nil {
		result.Err = err
		return result
	}
	return result
}

// translateClass emits the wrapper interface, both wrapper implementations
// and both kernel files, then schedules the host-source edits.
func (c *Compiler) translateClass(analysis *analyzer.FileAnalysis, class analyzer.ClassAnalysis, state *fileState, rewriter *rewrite.Rewriter) error {
	timer := time.Now()
	defer func() {
		observability.TranslationDuration.Observe(time.Since(timer).Seconds())
	}()

	packageName := analysis.PackageName
	dest := c.javaDestination(packageName)

	for _, op := range class.Ops.Operations {
		observability.OperationsTotal.WithLabelValues(op.Kind.String(), op.Execution.String()).Inc()
	}

	// 1. Back-end-neutral wrapper interface.
	iface, err := translation.WrapperInterface(packageName, class.Name, class.Ops, class.MethodCalls, c.catalog, translation.InterfaceImports())
	if err != nil {
		return err
	}
	if err := util.WriteGenerated(translation.WrapperInterfaceName(class.Name)+".java", dest, iface); err != nil {
		return err
	}

	// 2. One implementation plus one kernel file per back-end.
	for _, backend := range c.backends {
		impl, err := translation.WrapperImplementation(backend, packageName, class.Name, class.Ops, class.MethodCalls, c.catalog)
		if err != nil {
			return errors.AddContext(err, errors.CtxBackend, backend.Target.String())
		}
		implName := translation.WrapperClassName(class.Name, backend.Target) + ".java"
		if err := util.WriteGenerated(implName, dest, impl); err != nil {
			return err
		}

		kernels, err := translation.KernelFileContents(backend, packageName, class.Name, class.Ops, class.MethodCalls)
		if err != nil {
			return errors.AddContext(err, errors.CtxBackend, backend.Target.String())
		}
		kernelDir := filepath.Join(c.cfg.Paths.Destination, backend.KernelDir)
		if err := util.WriteGenerated(backend.KernelFileName(packageName, class.Name), kernelDir, kernels); err != nil {
			return err
		}
		observability.KernelsEmittedTotal.WithLabelValues(backend.Target.String()).Inc()
	}
	observability.ClassesTranslatedTotal.Inc()

	// 3. Host-source edits.
	c.rewriteClass(class, state, rewriter)
	c.compiledClasses = append(c.compiledClasses, compiledClass{packageName: packageName, className: class.Name})
	return nil
}

// rewriteClass schedules the token edits replacing user-library usage with
// wrapper delegation.
func (c *Compiler) rewriteClass(class analyzer.ClassAnalysis, state *fileState, rewriter *rewrite.Rewriter) {
	classSym := state.table.Get(class.Class)

	rewriter.InsertBefore(classSym.Address.Start, c.hostImports())
	rewriter.InsertAfter(classSym.BodyAddress.Start,
		translation.InitializationCode(class.Name, c.preferred, c.secondary))

	for _, bind := range class.Ops.InputBinds {
		// A combined `Type x = new Type(...);` has one statement serving as
		// both declaration and creation; the replace covers it alone.
		if bind.DeclarationRange != bind.CreationRange {
			rewriter.Delete(bind.DeclarationRange)
		}
		rewriter.Replace(bind.CreationRange, translation.InputBindCall(bind))
	}
	for _, op := range class.Ops.Operations {
		rewriter.Replace(op.StatementRange, translation.OperationCall(op))
	}
	for _, bind := range class.Ops.OutputBinds {
		rewriter.Replace(bind.StatementRange, translation.OutputBindCall(bind))
	}
	for _, mc := range class.MethodCalls {
		rewriter.Replace(mc.ExpressionRange, translation.MethodCallReplacement(mc))
	}
}

func (c *Compiler) hostImports() string {
	set := map[string]bool{}
	for _, backend := range c.backends {
		for _, imp := range backend.HostImports {
			set[imp] = true
		}
	}
	var b strings.Builder
	for _, imp := range util.SortedStringKeys(set) {
		fmt.Fprintf(&b, "import %s;\n", imp)
	}
	b.WriteString("\n")
	return b.String()
}

func (c *Compiler) javaDestination(packageName string) string {
	pkgPath := strings.ReplaceAll(packageName, ".", string(filepath.Separator))
	return filepath.Join(c.cfg.Paths.Destination, "java", pkgPath)
}

// exportInternalLibraries writes each back-end's runtime helpers once per
// destination.
func (c *Compiler) exportInternalLibraries() error {
	for _, backend := range c.backends {
		files := backend.InternalLibraryFiles(c.internalLibraryPackage())
		for _, rel := range util.SortedStringKeys(files) {
			path := filepath.Join(c.cfg.Paths.Destination, rel)
			if err := util.WriteFileWithDirs(path, []byte(files[rel]), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

// internalLibraryPackage is the package the shared helper artifacts carry;
// the first compiled class decides it.
func (c *Compiler) internalLibraryPackage() string {
	if len(c.compiledClasses) > 0 {
		return c.compiledClasses[0].packageName
	}
	return "org.parallelme"
}

// Sequence exposes the kernel numbering cursor for watch-mode restarts.
func (c *Compiler) Sequence() int {
	return c.seq
}
