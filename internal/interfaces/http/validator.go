package http

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxIdentifierLength = 64
	MaxEmailLength      = 254
	MinPasswordLength   = 6
)

var (
	identifierPattern = regexp.MustCompile(`^\+?[0-9]{6,20}(@(c\.us|lid|s\.whatsapp\.net))?$`)
	groupPattern      = regexp.MustCompile(`^[0-9-]{6,40}@g\.us$`)
)

// ValidIdentifier accepts a phone number or a "<digits>@<server>" identifier.
func ValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLength {
		return false
	}
	if strings.HasSuffix(s, "@g.us") {
		return groupPattern.MatchString(s)
	}
	return identifierPattern.MatchString(s)
}

// ParseContactID reads a positive numeric path parameter.
func ParseContactID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func ValidEmail(s string) bool {
	if len(s) > MaxEmailLength {
		return false
	}
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}

// SanitizeString removes null bytes and invalid UTF-8.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return strings.TrimSpace(s)
}
