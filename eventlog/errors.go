package eventlog

import "fmt"

// UnavailableError is returned by Publish/PublishBatch when the log
// backend cannot be reached. It satisfies errors.Normalize's
// unavailableError detection.
type UnavailableError struct {
	Topic string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("event log unavailable for topic %q: %v", e.Topic, e.Cause)
}

func (e *UnavailableError) Unwrap() error    { return e.Cause }
func (e *UnavailableError) Unavailable() bool { return true }

func errUnavailable(topic string, cause error) error {
	return &UnavailableError{Topic: topic, Cause: cause}
}

// NewUnavailableError lets backend packages (redisstream, natsstream)
// construct an UnavailableError without duplicating its definition.
func NewUnavailableError(topic string, cause error) error {
	return errUnavailable(topic, cause)
}
