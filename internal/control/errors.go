package control

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind int

const (
	// KindConnection: the call never got a verdict from the remote.
	KindConnection Kind = iota + 1
	// KindAlreadyExists: the user is already registered on the inbound.
	KindAlreadyExists
	// KindUnknownRemote: the remote rejected the call for any other reason.
	KindUnknownRemote
	// KindInvalidRecord: the record was rejected before anything was sent.
	KindInvalidRecord
)

var (
	ErrConnection    = errors.New("connection error")
	ErrAlreadyExists = errors.New("user already exists")
	ErrUnknownRemote = errors.New("unknown remote error")
	ErrInvalidRecord = errors.New("invalid user record")
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAlreadyExists:
		return "already-exists"
	case KindUnknownRemote:
		return "unknown-remote"
	case KindInvalidRecord:
		return "invalid-record"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindUnknownRemote:
		return ErrUnknownRemote
	case KindInvalidRecord:
		return ErrInvalidRecord
	}

	return nil
}

// Error is the failure of a single operation.
//
// Code is the gRPC status reported for the call, or codes.OK when the failure
// happened before any status existed (bad record, non-gRPC transport error).
type Error struct {
	Kind    Kind
	Code    codes.Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		prefix = s.Error()
	}

	if e.Code == codes.OK {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}

	return fmt.Sprintf("%s: %s (code=%s)", prefix, e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of a *Error anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

// Classify maps an RPC failure onto the error taxonomy. A nil err yields nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	st, ok := status.FromError(err)
	if !ok {
		return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
	}

	out := &Error{Code: st.Code(), Message: st.Message(), Err: err}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		out.Kind = KindConnection
	case codes.AlreadyExists:
		out.Kind = KindAlreadyExists
	case codes.Unknown:
		// The proxy reports duplicates as plain errors, which arrive as Unknown.
		if strings.Contains(strings.ToLower(st.Message()), "already exists") {
			out.Kind = KindAlreadyExists
		} else {
			out.Kind = KindUnknownRemote
		}
	default:
		out.Kind = KindUnknownRemote
	}

	return out
}

func invalidRecord(err error) *Error {
	return &Error{Kind: KindInvalidRecord, Message: err.Error(), Err: err}
}
