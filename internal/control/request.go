package control

import (
	"fmt"

	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xvzc/xrayctl/internal/envelope"
)

// BuildAddUserRequest nests the record as account, user and add-user
// operation, and addresses the result to the record's inbound.
func BuildAddUserRequest(rec UserRecord) (*command.AlterInboundRequest, error) {
	op, err := envelope.Wrap(&envelope.AddUser{
		User: &envelope.User{
			Level:   rec.Level,
			Email:   rec.Email,
			Account: envelope.NewAccount(rec.UUID, rec.Flow),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build add user operation: %w", err)
	}

	return &command.AlterInboundRequest{
		Tag:       rec.InTag,
		Operation: op,
	}, nil
}

// BuildRemoveUserRequest only carries the record's email and inbound tag.
func BuildRemoveUserRequest(rec UserRecord) (*command.AlterInboundRequest, error) {
	op, err := envelope.Wrap(&envelope.RemoveUser{Email: rec.Email})
	if err != nil {
		return nil, fmt.Errorf("build remove user operation: %w", err)
	}

	return &command.AlterInboundRequest{
		Tag:       rec.InTag,
		Operation: op,
	}, nil
}
