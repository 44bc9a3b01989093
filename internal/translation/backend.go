package translation

import (
	"parlift/internal/errors"
	"parlift/internal/ir"
)

// KernelEmitter produces the kernel functions for one operation: the user
// function first (C requires declaration before use), then the driver
// kernel(s) for the operation kind.
type KernelEmitter func(packageName, className string, op ir.Operation) ([]string, error)

// TypeTranslator is the emission surface for one user-library class on one
// back-end. All functions are pure emitters over the IR.
type TypeTranslator struct {
	// Kernel-side emission.
	InputBindKernel  func(packageName, className string, b ir.InputBind) string
	OutputBindKernel func(packageName, className string, b ir.OutputBind) string
	MethodCallKernel func(packageName, className string, mc ir.MethodCall) string
	Operations       map[ir.OperationKind]KernelEmitter

	// Java-side wrapper emission.
	InputBindDeclarations func(b ir.InputBind) []string
	InputBindCreation     func(className string, b ir.InputBind) string
	OperationCall         func(className string, op ir.Operation) string
	OutputBindCall        func(className string, b ir.OutputBind) string
	MethodCall            func(mc ir.MethodCall) (string, error)

	// Optional class-level declarations per construct; the foreign-function
	// back-end uses these for its native method declarations.
	OperationDeclarations  func(op ir.Operation) []string
	OutputBindDeclarations func(b ir.OutputBind) []string
	MethodCallDeclarations func(mc ir.MethodCall) []string
}

// Backend bundles everything one target runtime contributes: the dispatch
// table of type translators plus class-level scaffolding. Shared behavior
// lives in free functions of this package rather than a base type.
type Backend struct {
	Target Target

	// Imports added to generated wrapper sources and the rewritten host
	// class.
	WrapperImports []string
	HostImports    []string

	// IsValidBody is the body of the generated isValid method.
	IsValidBody string

	// InitializationLines declares the fields and constructor of a wrapper
	// implementation class.
	InitializationLines func(className string) []string

	Translators map[string]*TypeTranslator

	// KernelDir is the destination subdirectory for kernel artifacts.
	KernelDir string

	// KernelFileName names the kernel artifact for one class.
	KernelFileName func(packageName, className string) string

	// KernelFilePreamble opens the kernel file for one class.
	KernelFilePreamble func(packageName, className string) string

	// InternalLibraryFiles are runtime helper sources exported once per
	// destination, keyed by relative path.
	InternalLibraryFiles func(packageName string) map[string]string
}

// TranslatorFor resolves the type translator for a user-library class.
func (b *Backend) TranslatorFor(typeName string) (*TypeTranslator, error) {
	t, ok := b.Translators[typeName]
	if !ok {
		return nil, errors.Newf(errors.KindUnsupportedMethod,
			"user-library class %q has no translator for back-end %s", typeName, b.Target)
	}
	return t, nil
}

// TranslateOperation emits every kernel function of one operation through
// the back-end's dispatch table.
func TranslateOperation(b *Backend, packageName, className string, op ir.Operation) ([]string, error) {
	t, err := b.TranslatorFor(op.Variable.TypeName)
	if err != nil {
		return nil, err
	}
	emit, ok := t.Operations[op.Kind]
	if !ok {
		return nil, errors.Newf(errors.KindInvalidOperation,
			"operation kind %s reached back-end %s without an emitter", op.Kind, b.Target)
	}
	return emit(packageName, className, op)
}

// KernelFileContents assembles the kernel translation unit for one class:
// preamble, then input-bind kernels, operation kernels in discovery order,
// output-bind kernels and method-call accessors. Textually identical
// functions (type-level bind kernels, shared external globals) collapse
// into a single emission.
func KernelFileContents(b *Backend, packageName, className string, ops ir.OperationsAndBinds, methodCalls []ir.MethodCall) (string, error) {
	var functions []string

	for _, bind := range ops.InputBinds {
		t, err := b.TranslatorFor(bind.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.InputBindKernel != nil {
			if fn := t.InputBindKernel(packageName, className, bind); fn != "" {
				functions = append(functions, fn)
			}
		}
	}

	for _, op := range ops.Operations {
		fns, err := TranslateOperation(b, packageName, className, op)
		if err != nil {
			return "", err
		}
		functions = append(functions, fns...)
	}

	for _, bind := range ops.OutputBinds {
		t, err := b.TranslatorFor(bind.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.OutputBindKernel != nil {
			if fn := t.OutputBindKernel(packageName, className, bind); fn != "" {
				functions = append(functions, fn)
			}
		}
	}

	for _, mc := range methodCalls {
		t, err := b.TranslatorFor(mc.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.MethodCallKernel != nil {
			if fn := t.MethodCallKernel(packageName, className, mc); fn != "" {
				functions = append(functions, fn)
			}
		}
	}

	contents := HeaderComment() + "\n" + b.KernelFilePreamble(packageName, className)
	emitted := map[string]bool{}
	for _, fn := range functions {
		// Two operations capturing the same external declare the same
		// global; emit it once.
		if emitted[fn] {
			continue
		}
		emitted[fn] = true
		contents += "\n\n" + fn
	}
	contents += "\n"
	return contents, nil
}
