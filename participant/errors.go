package participant

import "fmt"

// UnresolvedError is returned by Registry.Resolve when no participant is
// registered under the given logical name. Client returns it from the
// step call that named the participant, and the orchestrator treats it
// as that step's failure; the saga is not refused at admission.
type UnresolvedError struct {
	ServiceName string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("participant %q is not registered", e.ServiceName)
}

func (e *UnresolvedError) NotFound() bool { return true }

// UnavailableError wraps a transport failure that survived the bounded
// retry policy before being treated as a step failure. It satisfies
// errors.Normalize's Unavailable() probe.
type UnavailableError struct {
	ServiceName string
	Cause       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("participant %q unavailable: %v", e.ServiceName, e.Cause)
}

func (e *UnavailableError) Unwrap() error    { return e.Cause }
func (e *UnavailableError) Unavailable() bool { return true }
