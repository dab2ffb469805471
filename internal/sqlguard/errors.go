package sqlguard

import "fmt"

// Kind is a machine-readable validation failure category.
type Kind string

const (
	KindEmptyInput          Kind = "EMPTY_INPUT"
	KindMultiStatement      Kind = "MULTI_STATEMENT"
	KindParseError          Kind = "PARSE_ERROR"
	KindOperationNotAllowed Kind = "OPERATION_NOT_ALLOWED"
	KindTableNotAllowed     Kind = "TABLE_NOT_ALLOWED"
)

// ValidationError carries the failure kind plus the offending operation or
// object when one is known. Operation is empty for statements rejected only
// because they are not SELECTs.
type ValidationError struct {
	Kind      Kind
	Message   string
	Operation string
	Table     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsPolicy reports whether the failure is a policy violation rather than a
// syntax problem.
func (e *ValidationError) IsPolicy() bool {
	return e.Kind != KindParseError
}

func newError(kind Kind, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Message: msg}
}

func operationError(op string) *ValidationError {
	return &ValidationError{
		Kind:      KindOperationNotAllowed,
		Message:   fmt.Sprintf("operation %s is not allowed", op),
		Operation: op,
	}
}

func notSelectError() *ValidationError {
	return newError(KindOperationNotAllowed, "only SELECT statements are allowed")
}

func tableError(name string) *ValidationError {
	return &ValidationError{
		Kind:    KindTableNotAllowed,
		Message: fmt.Sprintf("table or view %q is not allowed", name),
		Table:   name,
	}
}
