package segment

import "fmt"

// ExtractionError is returned when a page lacks the structure needed to
// extract a record. The affected problem is skipped.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("extraction failed: %s", e.Reason)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, e.Reason)
}
