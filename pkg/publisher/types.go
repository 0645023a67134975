// Package publisher holds the lookup request/result model for Sincera
// publisher metadata and turns lookup results into output rows.
package publisher

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPublisherID is returned for publisher ids that are not integers.
var ErrInvalidPublisherID = errors.New("invalid publisher_id")

// IdentifierKind selects which lookup the API performs.
type IdentifierKind string

const (
	KindDomain      IdentifierKind = "domain"
	KindPublisherID IdentifierKind = "publisher_id"
)

// LookupRequest is one row's lookup. Kind and Value are authoritative; the
// Input fields keep the row's original cells for the output.
type LookupRequest struct {
	Kind  IdentifierKind
	Value string

	InputDomain      string
	InputPublisherID string

	// Row is the 1-based row number in the source sheet.
	Row int
}

// NewLookupRequest builds the request for a row. The domain wins when both
// cells are filled. Returns false when the row has no identifier at all.
func NewLookupRequest(row int, domain, publisherID string) (LookupRequest, bool) {
	domain = strings.TrimSpace(domain)
	publisherID = strings.TrimSpace(publisherID)

	req := LookupRequest{
		InputDomain:      domain,
		InputPublisherID: publisherID,
		Row:              row,
	}

	switch {
	case domain != "":
		req.Kind = KindDomain
		req.Value = domain
	case publisherID != "":
		req.Kind = KindPublisherID
		req.Value = publisherID
	default:
		return req, false
	}
	return req, true
}

// Key identifies the lookup independent of the row it came from.
func (r LookupRequest) Key() string {
	return string(r.Kind) + ":" + r.Value
}

// String implements fmt.Stringer.
func (r LookupRequest) String() string {
	return fmt.Sprintf("%s=%s", r.Kind, r.Value)
}

// NormalizePublisherID returns the canonical integer form of a publisher id.
// Spreadsheets often render integers as "123.0", which is accepted.
func NormalizePublisherID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPublisherID)
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n < 0 {
			return "", fmt.Errorf("%w: %q is negative", ErrInvalidPublisherID, value)
		}
		return strconv.FormatInt(n, 10), nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPublisherID, value)
	}
	if f != math.Trunc(f) || f < 0 {
		return "", fmt.Errorf("%w: %q is not a whole number", ErrInvalidPublisherID, value)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 {
		return "", fmt.Errorf("%w: %q is out of range", ErrInvalidPublisherID, value)
	}
	return strconv.FormatInt(int64(f), 10), nil
}

// State is the lifecycle of a single lookup.
//
//	PENDING -> IN_FLIGHT -> SUCCESS
//	                     -> RETRYABLE_FAILURE -> IN_FLIGHT
//	                     -> TERMINAL_FAILURE
type State string

const (
	StatePending          State = "pending"
	StateInFlight         State = "in_flight"
	StateSuccess          State = "success"
	StateRetryableFailure State = "retryable_failure"
	StateTerminalFailure  State = "terminal_failure"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateTerminalFailure
}

// LookupResult is the outcome of one lookup.
type LookupResult struct {
	Request LookupRequest
	State   State

	// Payload holds the flattened response fields on success.
	Payload map[string]string

	// Err is the last error seen when the lookup failed.
	Err error

	// Attempts counts HTTP attempts, including retries.
	Attempts int
}

// Success reports whether the lookup ended in StateSuccess.
func (r LookupResult) Success() bool {
	return r.State == StateSuccess
}

// Reason returns the failure reason, or "" on success.
func (r LookupResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ForRequest returns a copy of r attributed to another row with the same
// lookup key.
func (r LookupResult) ForRequest(req LookupRequest) LookupResult {
	out := r
	out.Request = req
	return out
}
