package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Regexp(t, `^v\d+\.\d+\.\d+$`, String())
}
