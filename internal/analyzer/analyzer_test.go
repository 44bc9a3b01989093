package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlift/internal/ir"
	"parlift/internal/symbols"
	"parlift/internal/userlib"
)

const hostSource = `package com.example.effects;

import android.graphics.Bitmap;
import org.parallelme.userlibrary.image.BitmapImage;

public class Tint {
	private BitmapImage image;

	public void apply(Bitmap bitmap) {
		final float k = 1.5f;
		image = new BitmapImage(bitmap);
		image.foreach(pixel -> {
			pixel.rgba.red = pixel.rgba.red * k;
		});
		int w = image.getWidth();
		Bitmap result = image.toBitmap();
	}
}
`

func analyze(t *testing.T, source string) (*Source, *symbols.Table, *FileAnalysis) {
	t.Helper()
	catalog := userlib.NewCatalog()

	src, err := ParseSource("Tint.java", []byte(source))
	require.NoError(t, err)
	t.Cleanup(src.Close)

	table := symbols.NewTable()
	require.NoError(t, NewFirstPass(table, src.Stream, catalog).Run(src.Root()))

	analysis, _, err := NewSecondPass(table, src.Stream, catalog).Run(src.Root(), 0)
	require.NoError(t, err)
	return src, table, analysis
}

func TestFirstPassSymbols(t *testing.T) {
	src, table, _ := analyze(t, hostSource)
	_ = src

	classes := table.LookupInScope(table.Root(), "Tint", symbols.KindClass)
	require.Len(t, classes, 1)
	class := classes[0]

	fields := table.LookupInScope(class, "image", symbols.KindUserLibraryVariable)
	require.Len(t, fields, 1)
	assert.Equal(t, "BitmapImage", table.Get(fields[0]).TypeName)

	methods := table.LookupInScope(class, "apply", symbols.KindMethod)
	require.Len(t, methods, 1)

	k := table.LookupInScope(methods[0], "k", symbols.KindVariable)
	require.Len(t, k, 1)
	assert.Equal(t, "final", table.Get(k[0]).Modifier)

	creators := table.Collect(class, symbols.KindCreator, true)
	require.Len(t, creators, 1)
	assert.Equal(t, "image", table.Get(creators[0]).AttributedObjectName)
	require.Len(t, table.Get(creators[0]).Arguments, 1)
}

func TestSecondPassExtraction(t *testing.T) {
	_, _, analysis := analyze(t, hostSource)

	assert.Equal(t, "com.example.effects", analysis.PackageName)
	assert.Len(t, analysis.ImportRanges, 2)
	require.Len(t, analysis.Classes, 1)

	class := analysis.Classes[0]
	assert.Equal(t, "Tint", class.Name)

	require.Len(t, class.Ops.InputBinds, 1)
	bind := class.Ops.InputBinds[0]
	assert.Equal(t, 1, bind.SequenceIndex)
	assert.Equal(t, "image", bind.Variable.Name)
	require.Len(t, bind.Arguments, 1)
	arg, ok := bind.Arguments[0].(ir.Variable)
	require.True(t, ok)
	assert.Equal(t, "bitmap", arg.Name)
	assert.True(t, bind.DeclarationRange.Valid())
	assert.True(t, bind.CreationRange.Valid())

	require.Len(t, class.Ops.Operations, 1)
	op := class.Ops.Operations[0]
	assert.Equal(t, ir.OperationForeach, op.Kind)
	assert.Equal(t, 1, op.SequenceIndex)
	assert.Equal(t, "pixel", op.UserFunction.Argument.Name)
	assert.Equal(t, "Pixel", op.UserFunction.Argument.TypeName)
	assert.Contains(t, op.UserFunction.Code, "pixel.rgba.red * k")
	require.Len(t, op.ExternalVariables, 1)
	assert.Equal(t, "k", op.ExternalVariables[0].Name)
	assert.True(t, op.ExternalVariables[0].IsFinal())

	require.Len(t, class.Ops.OutputBinds, 1)
	out := class.Ops.OutputBinds[0]
	assert.Equal(t, ir.OutputBindDeclarativeAssignment, out.Kind)
	assert.Equal(t, "result", out.Destination.Name)
	assert.Equal(t, "Bitmap", out.Destination.TypeName)

	require.Len(t, class.MethodCalls, 1)
	assert.Equal(t, "getWidth", class.MethodCalls[0].MethodName)
}

func TestNonFinalCaptureOrderAndClassifier(t *testing.T) {
	source := `package demo;

public class Scale {
	private BitmapImage image;

	public void run(Bitmap bitmap) {
		float k = 2f;
		final int offset = 7;
		image = new BitmapImage(bitmap);
		image.foreach(p -> {
			p.rgba.red = p.rgba.red * k + offset;
		});
	}
}
`
	_, _, analysis := analyze(t, source)
	require.Len(t, analysis.Classes, 1)
	ops := analysis.Classes[0].Ops.Operations
	require.Len(t, ops, 1)

	// Captures appear in first-reference order.
	require.Len(t, ops[0].ExternalVariables, 2)
	assert.Equal(t, "k", ops[0].ExternalVariables[0].Name)
	assert.Equal(t, "offset", ops[0].ExternalVariables[1].Name)

	diags := ir.Classify(ops)
	require.Len(t, diags, 1)
	assert.Equal(t, ir.ExecutionSequential, ops[0].Execution)
	assert.Contains(t, diags[0].Message, "sequential")
}

func TestReduceOnTypedArray(t *testing.T) {
	source := `package demo;

public class Sum {
	private Array<Int32> numbers;

	public void run(int[] data) {
		numbers = new Array<Int32>(data);
		numbers.reduce((a, b) -> {
			return a.value + b.value;
		});
	}
}
`
	_, _, analysis := analyze(t, source)
	ops := analysis.Classes[0].Ops.Operations
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, ir.OperationReduce, op.Kind)
	assert.Equal(t, "Int32", op.UserFunction.Argument.TypeName)
	require.Len(t, op.UserFunction.ExtraArguments, 1)
	assert.Equal(t, "b", op.UserFunction.ExtraArguments[0].Name)
}

func TestFileWithoutUserLibraryUsage(t *testing.T) {
	source := `package demo;

public class Plain {
	public int add(int a, int b) {
		return a + b;
	}
}
`
	_, _, analysis := analyze(t, source)
	require.Len(t, analysis.Classes, 1)
	assert.False(t, analysis.Classes[0].HasUserLibraryUsage())
}

func TestUnrecognizedMethodIsIgnored(t *testing.T) {
	source := `package demo;

public class Odd {
	private BitmapImage image;

	public void run(Bitmap bitmap) {
		image = new BitmapImage(bitmap);
		image.recycle();
	}
}
`
	_, _, analysis := analyze(t, source)
	class := analysis.Classes[0]
	assert.Empty(t, class.MethodCalls)
	assert.Empty(t, class.Ops.Operations)
	// The bind itself is still recognized.
	assert.Len(t, class.Ops.InputBinds, 1)
}

func TestTokenStreamAddressing(t *testing.T) {
	src, _, _ := analyze(t, hostSource)
	ts := src.Stream

	require.Greater(t, ts.Len(), 0)
	first := ts.Token(0)
	assert.Equal(t, "package", first.Text)
	assert.Equal(t, 1, first.Line)

	// Round-trip: the full range covers the file up to the last token.
	last := ts.Token(ts.Len() - 1)
	full := ts.Text(0, ts.Len()-1)
	assert.Equal(t, hostSource[first.StartByte:last.EndByte], full)
}
