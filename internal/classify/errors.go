package classify

import "fmt"

// ConfigurationError means the client cannot issue a request at all.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

// RateLimitError is returned once every attempt was answered with HTTP 429.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("classification API rate limit exceeded after %d attempts", e.Attempts)
}

// RemoteError carries a non-2xx response other than 429.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.Status, e.Body)
}

// ConnectionError wraps a transport failure.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string { return "connection error calling classification API" }
func (e *ConnectionError) Unwrap() error { return e.Cause }

// TimeoutError is returned when an attempt exceeds the request timeout.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string { return "timeout calling classification API" }
func (e *TimeoutError) Unwrap() error { return e.Cause }

// ResponseError means a 2xx response body could not be understood.
type ResponseError struct {
	Cause error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("invalid classification response: %v", e.Cause)
}
func (e *ResponseError) Unwrap() error { return e.Cause }
