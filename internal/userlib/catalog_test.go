package userlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogRecognition(t *testing.T) {
	catalog := NewCatalog()

	assert.True(t, catalog.Recognizes("BitmapImage"))
	assert.True(t, catalog.Recognizes("Array"))
	assert.True(t, catalog.Recognizes("Float32"))
	assert.False(t, catalog.Recognizes("ArrayList"))

	assert.True(t, catalog.IsCollection("HDRImage"))
	assert.False(t, catalog.IsCollection("Pixel"))

	assert.True(t, catalog.IsTyped("Array"))
	assert.False(t, catalog.IsTyped("BitmapImage"))
}

func TestCatalogMethods(t *testing.T) {
	catalog := NewCatalog()

	kind, ok := catalog.ValidMethod("BitmapImage", "foreach")
	assert.True(t, ok)
	assert.Equal(t, OperationForeach, kind)

	kind, ok = catalog.ValidMethod("Array", "reduce")
	assert.True(t, ok)
	assert.Equal(t, OperationReduce, kind)

	kind, ok = catalog.ValidMethod("BitmapImage", "toBitmap")
	assert.True(t, ok)
	assert.Equal(t, OperationOutputBind, kind)

	kind, ok = catalog.ValidMethod("Array", "toArray")
	assert.True(t, ok)
	assert.Equal(t, OperationOutputBind, kind)

	kind, ok = catalog.ValidMethod("HDRImage", "getWidth")
	assert.True(t, ok)
	assert.Equal(t, OperationMethodCall, kind)

	_, ok = catalog.ValidMethod("BitmapImage", "resize")
	assert.False(t, ok)

	_, ok = catalog.ValidMethod("Pixel", "foreach")
	assert.False(t, ok)
}

func TestCatalogCTypes(t *testing.T) {
	catalog := NewCatalog()

	assert.Equal(t, "float4", catalog.CType("Pixel"))
	assert.Equal(t, "int", catalog.CType("Int32"))
	assert.Equal(t, "short", catalog.CType("Int16"))
	assert.Equal(t, "float", catalog.CType("Float32"))
	// Unknown type names pass through untouched.
	assert.Equal(t, "MyClass", catalog.CType("MyClass"))
}

func TestElementTypeName(t *testing.T) {
	catalog := NewCatalog()

	assert.Equal(t, "Pixel", catalog.ElementTypeName("BitmapImage", ""))
	assert.Equal(t, "Int32", catalog.ElementTypeName("Array", "Int32"))
	assert.Equal(t, "int", catalog.MethodReturnType("BitmapImage", "getWidth"))
}
