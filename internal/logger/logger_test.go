package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"room_id", 7, "api_key", "abc", "vapid_private_key", "xyz", "dangling"})
	assert.Equal(t, []interface{}{"room_id", 7, "api_key", "[REDACTED]", "vapid_private_key", "[REDACTED]", "dangling"}, out)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("  short  ", 10))
	assert.Equal(t, "abc...", Excerpt("abcdef", 3))
	assert.Equal(t, "phòng...", Excerpt("phòng họp", 5))
}
