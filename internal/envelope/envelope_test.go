package envelope

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xtls/xray-core/common/protocol"
	"github.com/xtls/xray-core/common/serial"
	"github.com/xtls/xray-core/proxy/vless"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/testing/protocmp"
)

const (
	testID    = "099d680f-1e2d-4ef3-9973-64044ff8009b"
	testEmail = "love@xray.com"
	testFlow  = "xtls-rprx-vision"
)

func TestWrap_Fidelity(t *testing.T) {
	tcs := []struct {
		name    string
		payload Payload
		want    proto.Message
	}{
		{
			name:    "account",
			payload: NewAccount(testID, testFlow),
			want: &vless.Account{
				Id:         testID,
				Flow:       testFlow,
				Encryption: "none",
			},
		},
		{
			name:    "account with default flow",
			payload: NewAccount(testID, ""),
			want: &vless.Account{
				Id:         testID,
				Encryption: "none",
			},
		},
		{
			name:    "remove user",
			payload: &RemoveUser{Email: testEmail},
			want:    &command.RemoveUserOperation{Email: testEmail},
		},
		{
			name: "add user",
			payload: &AddUser{User: &User{
				Level:   1,
				Email:   testEmail,
				Account: NewAccount(testID, testFlow),
			}},
			want: &command.AddUserOperation{User: &protocol.User{
				Level: 1,
				Email: testEmail,
				Account: mustWrap(t, &vless.Account{
					Id:         testID,
					Flow:       testFlow,
					Encryption: "none",
				}),
			}},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tm, err := Wrap(tc.payload)
			require.NoError(t, err)
			require.NotNil(t, tm)

			assert.Equal(t, string(proto.MessageName(tc.want)), tm.GetType())
			assert.Equal(t, tc.payload.TypeName(), tm.GetType())

			got, err := Open(tm)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got, protocmp.Transform()); diff != "" {
				t.Errorf("Open(Wrap()) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// mustWrap builds the envelope the way the remote side expects it, straight
// from the generated message.
func mustWrap(t *testing.T, m proto.Message) *serial.TypedMessage {
	t.Helper()

	b, err := proto.Marshal(m)
	require.NoError(t, err)

	return &serial.TypedMessage{Type: string(proto.MessageName(m)), Value: b}
}

func TestWrap_NilShortCircuit(t *testing.T) {
	tcs := []struct {
		name    string
		payload Payload
	}{
		{"untyped nil", nil},
		{"nil account", (*Account)(nil)},
		{"nil add user", (*AddUser)(nil)},
		{"nil remove user", (*RemoveUser)(nil)},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tm, err := Wrap(tc.payload)
			assert.NoError(t, err)
			assert.Nil(t, tm)
		})
	}
}

func TestWrap_NilInnerPositions(t *testing.T) {
	tcs := []struct {
		name   string
		op     *AddUser
		assert func(t *testing.T, op *command.AddUserOperation)
	}{
		{
			name: "nil user",
			op:   &AddUser{},
			assert: func(t *testing.T, op *command.AddUserOperation) {
				assert.Nil(t, op.GetUser())
			},
		},
		{
			name: "nil account",
			op:   &AddUser{User: &User{Email: testEmail}},
			assert: func(t *testing.T, op *command.AddUserOperation) {
				require.NotNil(t, op.GetUser())
				assert.Equal(t, testEmail, op.GetUser().GetEmail())
				assert.Nil(t, op.GetUser().GetAccount())
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tm, err := Wrap(tc.op)
			require.NoError(t, err)
			require.NotNil(t, tm)

			msg, err := Open(tm)
			require.NoError(t, err)

			op, ok := msg.(*command.AddUserOperation)
			require.True(t, ok)
			tc.assert(t, op)
		})
	}
}

func TestOpen(t *testing.T) {
	tcs := []struct {
		name   string
		input  *serial.TypedMessage
		assert func(t *testing.T, msg proto.Message, err error)
	}{
		{
			name:  "nil envelope",
			input: nil,
			assert: func(t *testing.T, msg proto.Message, err error) {
				assert.NoError(t, err)
				assert.Nil(t, msg)
			},
		},
		{
			name:  "unknown type",
			input: &serial.TypedMessage{Type: "xray.proxy.vmess.Account"},
			assert: func(t *testing.T, msg proto.Message, err error) {
				assert.ErrorIs(t, err, ErrUnknownType)
				assert.Nil(t, msg)
			},
		},
		{
			name:  "corrupt value",
			input: &serial.TypedMessage{Type: RemoveUserType, Value: []byte{0x0a, 0xff}},
			assert: func(t *testing.T, msg proto.Message, err error) {
				assert.Error(t, err)
				assert.Nil(t, msg)
			},
		},
		{
			name:  "empty value decodes to zero message",
			input: &serial.TypedMessage{Type: AccountType},
			assert: func(t *testing.T, msg proto.Message, err error) {
				require.NoError(t, err)
				assert.Empty(t, msg.(*vless.Account).GetId())
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Open(tc.input)
			tc.assert(t, msg, err)
		})
	}
}
