package entities

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is 1:1 with User. WAPhones lists the extra session phones
// that authorize as this user.
type Profile struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Token    string    `json:"-"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Document string    `json:"document"`
	WAPhones PhoneList `json:"wa_phones"`
}

// PhoneList is the wa_phones column.
type PhoneList []string

// Contains reports whether phone matches an element after digit normalization.
func (l PhoneList) Contains(phone string) bool {
	want := Digits(phone)
	if want == "" {
		return false
	}
	for _, p := range l {
		if Digits(p) == want {
			return true
		}
	}
	return false
}

// Normalized returns the list as digit strings, without empties or repeats.
// This is the stored form of wa_phones.
func (l PhoneList) Normalized() PhoneList {
	out := make(PhoneList, 0, len(l))
	seen := make(map[string]bool, len(l))
	for _, p := range l {
		d := Digits(p)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// Digits keeps only ASCII digits.
func Digits(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}
