package randid

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	id := Generate(12)
	assert.Len(t, id, 12)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+$`), id)

	assert.Empty(t, Generate(0))
	assert.Empty(t, Generate(-1))
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("user", 8)
	assert.True(t, strings.HasPrefix(id, "user-"))
	assert.Len(t, id, len("user-")+8)

	assert.Len(t, WithPrefix("", 8), 8)
}
