package entities

import "strings"

// Link is the ordered, duplicate-free list of identifiers that refer to
// one Contact.
type Link []string

func (l Link) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id unless it is empty or already present.
func (l Link) Add(id string) Link {
	if id == "" || l.Contains(id) {
		return l
	}
	return append(l, id)
}

// Merge returns l followed by the elements of other not already in l.
func (l Link) Merge(other Link) Link {
	out := make(Link, 0, len(l)+len(other))
	for _, v := range l {
		out = out.Add(v)
	}
	for _, v := range other {
		out = out.Add(v)
	}
	return out
}

// Label is one per-user WhatsApp label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color"`
}

type Labels []Label

// Merge adds labels from other whose id is not already present.
func (l Labels) Merge(other Labels) Labels {
	seen := make(map[string]bool, len(l)+len(other))
	out := make(Labels, 0, len(l)+len(other))
	for _, lb := range l {
		if seen[lb.ID] {
			continue
		}
		seen[lb.ID] = true
		out = append(out, lb)
	}
	for _, lb := range other {
		if seen[lb.ID] {
			continue
		}
		seen[lb.ID] = true
		out = append(out, lb)
	}
	return out
}

const (
	ContactServer = "c.us"
	LIDServer     = "lid"
	GroupServer   = "g.us"
)

// IsLID reports whether id is a secondary linked identifier ("<n>@lid").
func IsLID(id string) bool {
	return strings.HasSuffix(id, "@"+LIDServer)
}

// IsGroupID reports whether id addresses a group chat.
func IsGroupID(id string) bool {
	return strings.HasSuffix(id, "@"+GroupServer)
}

// UserPart returns the part of an identifier before "@".
func UserPart(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		return id[:i]
	}
	return id
}

// WIDForPhone builds the primary identifier for a phone number.
func WIDForPhone(phone string) string {
	digits := Digits(phone)
	if digits == "" {
		return ""
	}
	return digits + "@" + ContactServer
}
