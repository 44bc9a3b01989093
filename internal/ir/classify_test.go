package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parlift/internal/symbols"
)

func TestClassifyAllFinal(t *testing.T) {
	ops := []Operation{{
		Kind: OperationForeach,
		ExternalVariables: []Variable{
			{Name: "k", TypeName: "float", Modifier: "final"},
			{Name: "n", TypeName: "int", Modifier: "final"},
		},
	}}

	diags := Classify(ops)
	assert.Empty(t, diags)
	assert.Equal(t, ExecutionParallel, ops[0].Execution)
}

func TestClassifyNonFinalDemotes(t *testing.T) {
	ops := []Operation{{
		Kind:           OperationForeach,
		StatementRange: symbols.TokenAddress{Start: 10, Stop: 20, Line: 42},
		ExternalVariables: []Variable{
			{Name: "k", TypeName: "float"},
		},
	}}

	diags := Classify(ops)
	assert.Len(t, diags, 1)
	assert.Equal(t, 42, diags[0].Line)
	assert.Contains(t, diags[0].Message, "sequential operation")
	assert.Equal(t, ExecutionSequential, ops[0].Execution)
}

func TestClassifyNoCaptures(t *testing.T) {
	ops := []Operation{{Kind: OperationMap}}
	diags := Classify(ops)
	assert.Empty(t, diags)
	assert.Equal(t, ExecutionParallel, ops[0].Execution)
}

func TestVariableEquality(t *testing.T) {
	a := Variable{Name: "k", TypeName: "float", Modifier: "final"}
	b := Variable{Name: "k", TypeName: "float", Modifier: "final"}
	assert.Equal(t, a, b)

	// Literal equality is structural, not identity-based.
	assert.Equal(t, Literal{Value: "1.5f", TypeName: "float"}, Literal{Value: "1.5f", TypeName: "float"})
}
