package entities

// ContactMessage is the latest message snapshot for a (contact, user) pair.
// Body is absent for non-text message types.
type ContactMessage struct {
	ContactID   int64       `json:"contact_id"`
	UserID      int64       `json:"user_id"`
	MessageID   string      `json:"message_id"`
	ChatID      string      `json:"chat_id"`
	Body        Opt[string] `json:"body"`
	Type        string      `json:"type"`
	TimestampMs int64       `json:"timestamp_ms"`
	Ack         int         `json:"ack"`
	IsForwarded bool        `json:"is_forwarded"`
	UnreadCount int         `json:"unread_count"`
	HasUnread   bool        `json:"has_unread"`
	Exists      bool        `json:"exists_flag"`
}

// Delivery ack codes.
const (
	AckError   = -1
	AckPending = 0
	AckServer  = 1
	AckDevice  = 2
	AckRead    = 3
	AckPlayed  = 4
)

// IsTextType reports whether a message type keeps its body in storage.
func IsTextType(t string) bool {
	switch t {
	case "chat", "text":
		return true
	}
	return false
}
