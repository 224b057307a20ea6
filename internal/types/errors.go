package types

import "fmt"

// ValidationError marks user-correctable input problems, both before
// encoding (size, format) and after re-encoding (payload cap).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PermissionError marks a denied capture device.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// DecodeError marks malformed or unsupported audio input. Terminal for
// the current attempt, never retried.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RateLimitError is returned after upload retries against a throttling
// provider are exhausted.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

// ServerError carries a provider-side failure that is surfaced without
// automatic retry.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error (status %d)", e.StatusCode)
}

// ProtocolError marks a provider response the client does not recognize.
// This is a bug-class error, not user-correctable.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// HistoryFetchError marks a failed history listing. Previously known
// data must be retained by the caller.
type HistoryFetchError struct {
	Err error
}

func (e *HistoryFetchError) Error() string {
	return fmt.Sprintf("history fetch failed: %v", e.Err)
}

func (e *HistoryFetchError) Unwrap() error { return e.Err }
