package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"5511999990000", "+5511999990000", "5511999990000@c.us", "777123@lid", "5511999990000@s.whatsapp.net", "120363-1234@g.us"} {
		assert.True(t, ValidIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "abc", "123", "5511@x.us", "12345678901234567890123@c.us", "a-b@g.us"} {
		assert.False(t, ValidIdentifier(bad), bad)
	}
}

func TestParseContactID(t *testing.T) {
	id, ok := ParseContactID("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	for _, bad := range []string{"0", "-1", "x", ""} {
		_, ok := ParseContactID(bad)
		assert.False(t, ok, bad)
	}
}

func TestValidEmailAndSanitize(t *testing.T) {
	assert.True(t, ValidEmail("a@b.c"))
	assert.False(t, ValidEmail("@b.c"))
	assert.False(t, ValidEmail("a b@c"))
	assert.Equal(t, "abc", SanitizeString(" a\x00bc "))
}
