package classify

import "fmt"

// ClassificationError describes why a batch fell back to the default label
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
