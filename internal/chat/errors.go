package chat

import "fmt"

// UpstreamError wraps a failure of an external collaborator (model API or
// store) during a turn. Clients only ever see a generic message for it.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
