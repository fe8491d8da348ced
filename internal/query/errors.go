package query

import "fmt"

// BadQueryError is returned when a predicate mapping cannot be parsed:
// an unknown "$"-operator at the top level, or a malformed operator shape.
type BadQueryError struct {
	Reason string
}

func (e *BadQueryError) Error() string {
	return fmt.Sprintf("bad query: %s", e.Reason)
}

func badQuery(format string, args ...any) error {
	return &BadQueryError{Reason: fmt.Sprintf(format, args...)}
}

// BadProjectionError is returned when a projection mixes inclusion (1)
// and exclusion (0) entries, or uses a value other than 0/1.
type BadProjectionError struct {
	Reason string
}

func (e *BadProjectionError) Error() string {
	return fmt.Sprintf("bad projection: %s", e.Reason)
}

func badProjection(format string, args ...any) error {
	return &BadProjectionError{Reason: fmt.Sprintf(format, args...)}
}
