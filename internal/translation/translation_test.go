package translation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlift/internal/ir"
	"parlift/internal/userlib"
)

func pixelForeach(modifier string) ir.Operation {
	return ir.Operation{
		Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
		Kind:          ir.OperationForeach,
		SequenceIndex: 1,
		UserFunction: ir.UserFunction{
			Code:     "{\n\tpixel.rgba.red = pixel.rgba.red * k;\n\tpixel.x = pixel.x;\n}",
			Argument: ir.Variable{Name: "pixel", TypeName: "Pixel", Modifier: "final"},
		},
		ExternalVariables: []ir.Variable{{Name: "k", TypeName: "float", Modifier: modifier}},
	}
}

func TestUserFunctionBodyPixelSubstitution(t *testing.T) {
	catalog := userlib.NewCatalog()
	op := pixelForeach("final")

	body := UserFunctionBody(op, catalog, JavaCTranslator{})

	assert.Contains(t, body, "PM_in.s0 = PM_in.s0 * k;")
	assert.Contains(t, body, "return PM_in;")
	// Accessor sugar is gone: no .rgba. survives, coordinates are bare.
	assert.NotContains(t, body, ".rgba.")
	assert.NotContains(t, body, "pixel")
	assert.Contains(t, body, "x = x;")
}

func TestUserFunctionBodyNumericReduce(t *testing.T) {
	catalog := userlib.NewCatalog()
	op := ir.Operation{
		Variable:      ir.Variable{Name: "numbers", TypeName: "Array", TypeParameter: "Int32"},
		Kind:          ir.OperationReduce,
		SequenceIndex: 2,
		UserFunction: ir.UserFunction{
			Code:           "{\n\treturn a.value + b.value;\n}",
			Argument:       ir.Variable{Name: "a", TypeName: "Int32", Modifier: "final"},
			ExtraArguments: []ir.Variable{{Name: "b", TypeName: "Int32", Modifier: "final"}},
		},
	}

	body := UserFunctionBody(op, catalog, JavaCTranslator{})
	assert.Contains(t, body, "return PM_in1 + PM_in2;")
	assert.NotContains(t, body, ".value")
}

func TestUserFunctionBodyFilterPredicate(t *testing.T) {
	catalog := userlib.NewCatalog()
	op := ir.Operation{
		Variable:      ir.Variable{Name: "values", TypeName: "Array", TypeParameter: "Float32"},
		Kind:          ir.OperationFilter,
		SequenceIndex: 3,
		UserFunction: ir.UserFunction{
			Code:     "{\n\treturn x.value > 0.5f;\n}",
			Argument: ir.Variable{Name: "x", TypeName: "Float32", Modifier: "final"},
		},
	}

	body := UserFunctionBody(op, catalog, JavaCTranslator{})
	assert.Contains(t, body, "return PM_in > 0.5f;")
	// Filter bodies do not gain an element return.
	assert.NotContains(t, body, "return PM_in;")
}

func TestOperationSignatureFinalVsNonFinal(t *testing.T) {
	parallel := pixelForeach("final")
	parallel.Execution = ir.ExecutionParallel
	assert.Equal(t, "public void foreach1(float k)", OperationSignature(parallel))

	sequential := pixelForeach("")
	sequential.Execution = ir.ExecutionSequential
	assert.Equal(t, "public void foreach1(float[] k)", OperationSignature(sequential))
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "function7", FunctionName(7))
	assert.Equal(t, "TintWrapper", WrapperInterfaceName("Tint"))
	assert.Equal(t, "TintWrapperRS", WrapperClassName("Tint", TargetRenderScript))
	assert.Equal(t, "TintWrapperPM", WrapperClassName("Tint", TargetParallelME))
	assert.Equal(t, "$imageIn", VariableInName(ir.Variable{Name: "image"}))
	assert.Equal(t, "$imageOut", VariableOutName(ir.Variable{Name: "image"}))

	bind := ir.InputBind{Variable: ir.Variable{Name: "image"}, SequenceIndex: 1}
	assert.Equal(t, "inputBindImage1", InputBindName(bind))
	assert.Equal(t, "outputBindImage", OutputBindName(ir.OutputBind{Variable: ir.Variable{Name: "image"}}))
	assert.Equal(t, "getWidthImage", MethodCallName(ir.MethodCall{Variable: ir.Variable{Name: "image"}, MethodName: "getWidth"}))
}

func TestSequentialOperationCallWrapsNonFinals(t *testing.T) {
	op := pixelForeach("")
	op.Execution = ir.ExecutionSequential

	call := OperationCall(op)
	assert.Contains(t, call, "float[] $k = new float[1];")
	assert.Contains(t, call, "$k[0] = k;")
	assert.Contains(t, call, "$parallelME.foreach1($k);")
	assert.Contains(t, call, "k = $k[0];")
}

func TestParallelOperationCallPassesPlainNames(t *testing.T) {
	op := pixelForeach("final")
	op.Execution = ir.ExecutionParallel
	assert.Equal(t, "$parallelME.foreach1(k);", OperationCall(op))
}

func TestOutputBindCallDeclarative(t *testing.T) {
	bind := ir.OutputBind{
		Variable:    ir.Variable{Name: "image", TypeName: "BitmapImage"},
		Destination: ir.Variable{Name: "result", TypeName: "Bitmap"},
		Kind:        ir.OutputBindDeclarativeAssignment,
	}
	call := OutputBindCall(bind)
	assert.Equal(t, "Bitmap result;\n$parallelME.outputBindImage(result);", call)

	bind.Kind = ir.OutputBindAssignment
	assert.Equal(t, "$parallelME.outputBindImage(result);", OutputBindCall(bind))
}

func TestInitializationCodePreferredAndFallback(t *testing.T) {
	code := InitializationCode("Tint", TargetParallelME, TargetRenderScript)
	assert.Contains(t, code, "private TintWrapper $parallelME;")
	assert.Contains(t, code, "this.$parallelME = new TintWrapperPM();")
	assert.Contains(t, code, "this.$parallelME = new TintWrapperRS(PM_mRS);")
	// Preferred first, fallback behind the isValid check.
	require.Less(t, strings.Index(code, "TintWrapperPM"), strings.Index(code, "TintWrapperRS"))

	swapped := InitializationCode("Tint", TargetRenderScript, TargetParallelME)
	require.Less(t, strings.Index(swapped, "TintWrapperRS"), strings.Index(swapped, "TintWrapperPM"))
}

func TestWrapperInterfaceLayout(t *testing.T) {
	catalog := userlib.NewCatalog()
	ops := ir.OperationsAndBinds{
		InputBinds: []ir.InputBind{{
			Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
			SequenceIndex: 1,
			Arguments:     []ir.Parameter{ir.Variable{Name: "bitmap", TypeName: "Bitmap"}},
		}},
		Operations: []ir.Operation{func() ir.Operation {
			op := pixelForeach("final")
			op.Execution = ir.ExecutionParallel
			return op
		}()},
		OutputBinds: []ir.OutputBind{{
			Variable:    ir.Variable{Name: "image", TypeName: "BitmapImage"},
			Destination: ir.Variable{Name: "result", TypeName: "Bitmap"},
		}},
	}
	calls := []ir.MethodCall{{Variable: ir.Variable{Name: "image", TypeName: "BitmapImage"}, MethodName: "getWidth"}}

	iface, err := WrapperInterface("com.example", "Tint", ops, calls, catalog, InterfaceImports())
	require.NoError(t, err)

	assert.Contains(t, iface, "package com.example;")
	assert.Contains(t, iface, "import android.graphics.Bitmap;")
	assert.Contains(t, iface, "public interface TintWrapper {")
	assert.Contains(t, iface, "public boolean isValid();")
	assert.Contains(t, iface, "public void inputBindImage1(Bitmap bitmap);")
	assert.Contains(t, iface, "public void foreach1(float k);")
	assert.Contains(t, iface, "public void outputBindImage(Bitmap result);")
	assert.Contains(t, iface, "public int getWidthImage();")
}

func TestCTypeTables(t *testing.T) {
	assert.True(t, IsPrimitive("float"))
	assert.Equal(t, "bool", PrimitiveCType("boolean"))
	assert.True(t, IsBoxed("Integer"))
	assert.Equal(t, "int", BoxedCType("Integer"))
	assert.Equal(t, "MyType", PrimitiveCType("MyType"))
}
