package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithPrefix(t *testing.T) {
	id := GenerateUUIDWithPrefix(UUID_PREFIX_CUSTOMER_PRODUCT)
	assert.True(t, strings.HasPrefix(id, "cp_"))
	assert.Len(t, id, len("cp_")+26) // ULIDs are 26 characters

	assert.NotEqual(t, id, GenerateUUIDWithPrefix(UUID_PREFIX_CUSTOMER_PRODUCT))
}

func TestGenerateShortIDWithPrefix(t *testing.T) {
	id := GenerateShortIDWithPrefix(UUID_PREFIX_LINE_ITEM + "_")
	assert.True(t, strings.HasPrefix(id, "LI_"), "got %q", id)
	assert.LessOrEqual(t, len(id), 12)
	assert.Greater(t, len(id), len("LI_"))
	assert.Equal(t, strings.ToUpper(id), id)

	// A prefix that leaves no room for the id itself yields nothing.
	assert.Empty(t, GenerateShortIDWithPrefix("TOO_LONG_PREFIX_"))
}
