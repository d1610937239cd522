package exchange

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindCredentials
	KindValidation
	KindAPI
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindCredentials:
		return "credentials"
	case KindValidation:
		return "validation"
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	default:
		return "unexpected"
	}
}

var (
	ErrCredentialsMissing = errors.New("API credentials required for authenticated requests")
	ErrInvalidDepth       = errors.New("invalid order book depth")
)

// Error is the single error type returned by a Client. Callers that only care
// about "the exchange call failed" can match it with errors.As; Kind tells the
// failure classes apart.
type Error struct {
	Exchange   string
	Kind       Kind
	StatusCode int // set for KindAPI when the failure came from the HTTP status
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s error: %s", e.Exchange, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func newError(exchange string, kind Kind, msg string, err error) *Error {
	return &Error{Exchange: exchange, Kind: kind, Message: msg, Err: err}
}
