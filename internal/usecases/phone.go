package usecases

import (
	"strings"

	"wacontacts/internal/entities"
)

// PhoneBR returns the Brazilian mobile form of phone: country code 55,
// two-digit area code and a nine-digit subscriber number. Legacy eight
// digit mobiles (starting 6-9) gain the leading 9. A bare ten-digit
// number is read as a local Brazilian one and gains the country code.
// Other numbers come back as plain digits.
func PhoneBR(phone string) string {
	d := entities.Digits(phone)
	var local string
	switch {
	case len(d) == 10:
		local = d
	case strings.HasPrefix(d, "55") && len(d) >= 12:
		local = d[2:]
	default:
		return d
	}
	if len(local) == 10 && local[2] >= '6' && local[2] <= '9' {
		local = local[:2] + "9" + local[2:]
	}
	return "55" + local
}

// SessionPhone extracts the phone digits from a session identity such as
// "5511999999999:12@s.whatsapp.net" or "5511999999999@c.us".
func SessionPhone(identity string) string {
	s := strings.TrimSpace(identity)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return entities.Digits(s)
}
