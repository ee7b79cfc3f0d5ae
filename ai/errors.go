package ai

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a relay failure.
type Kind int

const (
	// KindNone is reported for nil or foreign errors.
	KindNone Kind = iota
	// KindTransport: the request never completed (DNS, refused, TLS, bad URL).
	KindTransport
	// KindStatus: a response arrived with a non-2xx status.
	KindStatus
	// KindParse: a 2xx body did not decode into a Response.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindParse:
		return "parse"
	default:
		return "none"
	}
}

// RelayError is the tagged error returned by Relay.Send.
type RelayError struct {
	Kind       Kind
	StatusCode int    // set for KindStatus
	Reason     string // reason phrase for KindStatus, e.g. "Not Found"
	Err        error
}

func (e *RelayError) Error() string {
	switch e.Kind {
	case KindTransport:
		return "send request failed: " + causeText(e.Err)
	case KindStatus:
		return strings.TrimSpace(fmt.Sprintf("api request failed: status code %d %s", e.StatusCode, e.Reason))
	case KindParse:
		return "parse response failed: " + causeText(e.Err)
	default:
		return causeText(e.Err)
	}
}

func (e *RelayError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause walk through a RelayError.
func (e *RelayError) Cause() error { return e.Err }

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// KindOf reports the relay failure kind of err, or KindNone.
func KindOf(err error) Kind {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindNone
}

// IsKind reports whether err is a relay failure of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
