package ai

import "fmt"

// UpstreamError wraps a collaborator transport, auth or quota failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream failure: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ParseError means a collaborator answered, but with structurally
// invalid output. It is never coerced into a best-effort result.
type ParseError struct {
	Op     string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid collaborator output: %s", e.Op, e.Reason)
}
