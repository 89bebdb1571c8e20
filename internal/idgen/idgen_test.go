package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUnique(t *testing.T) {
	assert.NotEqual(t, New(), New())
}

func TestWithPrefixIncludesPrefix(t *testing.T) {
	id := WithPrefix("account")
	assert.True(t, strings.HasPrefix(id, "account-"))
}
