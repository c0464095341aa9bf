// Package envelope builds the typed messages the proxy's control API takes as
// polymorphic arguments: the full protobuf name of a payload paired with its
// serialized bytes, so the receiver can decode it without any side channel.
//
// The set of payloads is closed. Each variant carries its type name as a
// constant instead of looking it up at run time.
package envelope

import (
	"errors"
	"fmt"

	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xtls/xray-core/common/protocol"
	"github.com/xtls/xray-core/common/serial"
	"github.com/xtls/xray-core/proxy/vless"
	"google.golang.org/protobuf/proto"
)

const (
	AccountType    = "xray.proxy.vless.Account"
	AddUserType    = "xray.app.proxyman.command.AddUserOperation"
	RemoveUserType = "xray.app.proxyman.command.RemoveUserOperation"
)

// DefaultEncryption is the only encryption VLESS accepts for accounts.
const DefaultEncryption = "none"

var (
	ErrTypeMismatch = errors.New("envelope type does not match payload")
	ErrUnknownType  = errors.New("unknown envelope type")
)

// Payload is one of *Account, *AddUser or *RemoveUser.
type Payload interface {
	TypeName() string
	// message builds the protobuf form; a nil receiver yields a nil message.
	message() (proto.Message, error)
}

var (
	_ Payload = (*Account)(nil)
	_ Payload = (*AddUser)(nil)
	_ Payload = (*RemoveUser)(nil)
)

// Account is the VLESS credential of a user.
type Account struct {
	ID         string
	Flow       string
	Encryption string
}

// NewAccount returns an account with the default encryption. An empty flow
// selects the protocol default.
func NewAccount(id, flow string) *Account {
	return &Account{ID: id, Flow: flow, Encryption: DefaultEncryption}
}

func (a *Account) TypeName() string { return AccountType }

func (a *Account) message() (proto.Message, error) {
	if a == nil {
		return nil, nil
	}

	return &vless.Account{
		Id:         a.ID,
		Flow:       a.Flow,
		Encryption: a.Encryption,
	}, nil
}

// User is the protocol-level user an AddUser operation carries. It is not an
// envelope payload itself; its Account is.
type User struct {
	Level   uint32
	Email   string
	Account *Account
}

func (u *User) proto() (*protocol.User, error) {
	if u == nil {
		return nil, nil
	}

	account, err := Wrap(u.Account)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	return &protocol.User{
		Level:   u.Level,
		Email:   u.Email,
		Account: account,
	}, nil
}

// AddUser asks an inbound to accept a new user.
type AddUser struct {
	User *User
}

func (op *AddUser) TypeName() string { return AddUserType }

func (op *AddUser) message() (proto.Message, error) {
	if op == nil {
		return nil, nil
	}

	user, err := op.User.proto()
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}

	return &command.AddUserOperation{User: user}, nil
}

// RemoveUser asks an inbound to drop the user registered under Email.
type RemoveUser struct {
	Email string
}

func (op *RemoveUser) TypeName() string { return RemoveUserType }

func (op *RemoveUser) message() (proto.Message, error) {
	if op == nil {
		return nil, nil
	}

	return &command.RemoveUserOperation{Email: op.Email}, nil
}

// Wrap serializes p into an envelope. A nil payload, typed or not, yields a
// nil envelope and no error.
func Wrap(p Payload) (*serial.TypedMessage, error) {
	if p == nil {
		return nil, nil
	}

	msg, err := p.message()
	if err != nil {
		return nil, err
	}

	if msg == nil {
		return nil, nil
	}

	if name := string(proto.MessageName(msg)); name != p.TypeName() {
		return nil, fmt.Errorf("%w: %s built %s", ErrTypeMismatch, p.TypeName(), name)
	}

	value, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.TypeName(), err)
	}

	return &serial.TypedMessage{
		Type:  p.TypeName(),
		Value: value,
	}, nil
}

var decoders = map[string]func() proto.Message{
	AccountType:    func() proto.Message { return new(vless.Account) },
	AddUserType:    func() proto.Message { return new(command.AddUserOperation) },
	RemoveUserType: func() proto.Message { return new(command.RemoveUserOperation) },
}

// Open decodes an envelope produced by Wrap. A nil envelope yields a nil
// message and no error.
func Open(tm *serial.TypedMessage) (proto.Message, error) {
	if tm == nil {
		return nil, nil
	}

	newMsg, ok := decoders[tm.GetType()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tm.GetType())
	}

	msg := newMsg()
	if err := proto.Unmarshal(tm.GetValue(), msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", tm.GetType(), err)
	}

	return msg, nil
}
