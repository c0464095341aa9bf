package control

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// maxCustomIDLen is the longest non-UUID id the proxy maps onto a UUID.
const maxCustomIDLen = 30

// UserRecord describes one proxy account. It only lives for the duration of a
// call; the client keeps no copy.
type UserRecord struct {
	UUID  string
	Level uint32
	InTag string
	// Email is the removal key and must be unique within the inbound.
	Email string
	// Flow selects a protocol flow variant; empty means the default.
	Flow string
}

// ValidateAdd reports every field that would make an add-user request invalid.
func (r UserRecord) ValidateAdd() error {
	return errors.Join(
		checkTag(r.InTag),
		checkEmail(r.Email),
		CheckID(r.UUID),
	)
}

// ValidateRemove only looks at the fields a remove-user request uses.
func (r UserRecord) ValidateRemove() error {
	return errors.Join(
		checkTag(r.InTag),
		checkEmail(r.Email),
	)
}

// CheckID accepts a UUID, or any other string of 1 to 30 bytes, which the
// proxy turns into a name-based UUID on its side.
func CheckID(id string) error {
	if id == "" {
		return errors.New("uuid is empty")
	}

	if _, err := uuid.Parse(id); err == nil {
		return nil
	}

	if len(id) > maxCustomIDLen {
		return fmt.Errorf("uuid %q is neither a UUID nor a custom id of at most %d bytes", id, maxCustomIDLen)
	}

	return nil
}

func checkTag(tag string) error {
	if tag == "" {
		return errors.New("inbound tag is empty")
	}

	return nil
}

func checkEmail(email string) error {
	if email == "" {
		return errors.New("email is empty")
	}

	return nil
}
