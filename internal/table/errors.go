package table

import "fmt"

// MalformedInputError indicates the HTML holds no usable table
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func newMalformed(reason string) *MalformedInputError {
	return &MalformedInputError{Reason: reason}
}
