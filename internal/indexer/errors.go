package indexer

import "fmt"

// UnavailableError reports a physical index location that cannot be opened
// or created: permissions, corruption, or a database without an
// addressable storage path.
type UnavailableError struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("index unavailable at %q", e.Path)
	if e.Reason != "" {
		msg += " - " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
