package ir

import "fmt"

// Diagnostic is a non-fatal classification warning tied to a source line.
type Diagnostic struct {
	Line    int
	Message string
}

// Classify decides parallel vs. sequential execution for every operation.
// An operation runs in parallel iff every external variable is final; a
// single non-final capture demotes it to sequential with a warning naming
// the offending statement's line. The decision is irrevocable.
func Classify(operations []Operation) []Diagnostic {
	var diags []Diagnostic
	for i := range operations {
		op := &operations[i]
		op.Execution = ExecutionParallel
		for _, v := range op.ExternalVariables {
			if !v.IsFinal() {
				op.Execution = ExecutionSequential
				diags = append(diags, Diagnostic{
					Line: op.StatementRange.Line,
					Message: fmt.Sprintf(
						"operation with non-final external variable %q in line %d will be translated to a sequential operation in the target runtime",
						v.Name, op.StatementRange.Line),
				})
				break
			}
		}
	}
	return diags
}
