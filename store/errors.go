package store

import "fmt"

// WriteError is returned when a batch fails to commit. Batches committed
// before it remain in the store.
type WriteError struct {
	Batch int // 1-based number of the failed batch within the load
	Ops   int // Writes lost with the batch
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("batch %d (%d writes) failed: %v", e.Batch, e.Ops, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
