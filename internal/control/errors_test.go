package control

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tcs := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode codes.Code
		sentinel error
	}{
		{
			name:     "unavailable",
			err:      status.Error(codes.Unavailable, "connection refused"),
			wantKind: KindConnection,
			wantCode: codes.Unavailable,
			sentinel: ErrConnection,
		},
		{
			name:     "deadline",
			err:      status.Error(codes.DeadlineExceeded, "context deadline exceeded"),
			wantKind: KindConnection,
			wantCode: codes.DeadlineExceeded,
			sentinel: ErrConnection,
		},
		{
			name:     "canceled",
			err:      status.Error(codes.Canceled, "context canceled"),
			wantKind: KindConnection,
			wantCode: codes.Canceled,
			sentinel: ErrConnection,
		},
		{
			name:     "not a status",
			err:      context.DeadlineExceeded,
			wantKind: KindConnection,
			wantCode: codes.OK,
			sentinel: ErrConnection,
		},
		{
			name:     "already exists status",
			err:      status.Error(codes.AlreadyExists, "duplicate"),
			wantKind: KindAlreadyExists,
			wantCode: codes.AlreadyExists,
			sentinel: ErrAlreadyExists,
		},
		{
			name:     "already exists reported as unknown",
			err:      status.Error(codes.Unknown, "User love@xray.com already exists."),
			wantKind: KindAlreadyExists,
			wantCode: codes.Unknown,
			sentinel: ErrAlreadyExists,
		},
		{
			name:     "other unknown",
			err:      status.Error(codes.Unknown, "User love@xray.com not found."),
			wantKind: KindUnknownRemote,
			wantCode: codes.Unknown,
			sentinel: ErrUnknownRemote,
		},
		{
			name:     "not found",
			err:      status.Error(codes.NotFound, "handler not found: vless_tls"),
			wantKind: KindUnknownRemote,
			wantCode: codes.NotFound,
			sentinel: ErrUnknownRemote,
		},
		{
			name:     "permission denied",
			err:      status.Error(codes.PermissionDenied, "nope"),
			wantKind: KindUnknownRemote,
			wantCode: codes.PermissionDenied,
			sentinel: ErrUnknownRemote,
		},
		{
			name:     "already classified",
			err:      fmt.Errorf("wrapped: %w", invalidRecord(errors.New("email is empty"))),
			wantKind: KindInvalidRecord,
			wantCode: codes.OK,
			sentinel: ErrInvalidRecord,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)

			assert.Equal(t, tc.wantKind, got.Kind)
			assert.Equal(t, tc.wantCode, got.Code)
			assert.ErrorIs(t, got, tc.sentinel)
			assert.Equal(t, tc.wantKind, KindOf(got))
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestError_Error(t *testing.T) {
	tcs := []struct {
		name   string
		err    *Error
		expect string
	}{
		{
			name:   "with remote code",
			err:    &Error{Kind: KindUnknownRemote, Code: codes.NotFound, Message: "handler not found"},
			expect: "unknown remote error: handler not found (code=NotFound)",
		},
		{
			name:   "without remote code",
			err:    &Error{Kind: KindInvalidRecord, Message: "email is empty"},
			expect: "invalid user record: email is empty",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	raw := status.Error(codes.Unavailable, "down")
	e := Classify(raw)

	assert.ErrorIs(t, e, raw)
	assert.NotErrorIs(t, e, ErrAlreadyExists)
}
