package ephemeris

import (
	"fmt"
	"strings"
)

// InvalidInputError reports a request that was rejected before any upstream
// call: an unknown body name or a missing field.
type InvalidInputError struct {
	Field  string
	Value  string
	Valid  []string // accepted values, if the field is an enumeration
	Reason string
}

func (e *InvalidInputError) Error() string {
	if len(e.Valid) > 0 {
		return fmt.Sprintf("invalid %s %q: must be one of %s", e.Field, e.Value, strings.Join(e.Valid, ", "))
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError reports a failed or non-success upstream call.
type NetworkError struct {
	BodyID  string
	Status  int    // 0 when no response was received
	Excerpt string // truncated response body or transport message
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("ephemeris request for %s failed: %s", e.BodyID, e.Excerpt)
	}
	return fmt.Sprintf("ephemeris request for %s returned status %d: %s", e.BodyID, e.Status, e.Excerpt)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FormatError reports an upstream payload that could not be parsed.
type FormatError struct {
	BodyID string
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed ephemeris for %s: %s", e.BodyID, e.Detail)
}

// EmptyResultError reports an upstream payload with no usable rows.
type EmptyResultError struct {
	BodyID string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("ephemeris for %s contained no data rows", e.BodyID)
}

// excerptLimit caps how much of an upstream body is carried in errors.
const excerptLimit = 200

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= excerptLimit {
		return body
	}
	return body[:excerptLimit] + "..."
}
