package entities

import "time"

// Contact is the canonical, tenant-global identity row.
// WID is absent for orphans known only through a linked identifier.
type Contact struct {
	ID        int64       `json:"id"`
	WID       Opt[string] `json:"wid"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	PhoneBR   string      `json:"phoneBR"`
	ThereIs   bool        `json:"there_is"`
	Link      Link        `json:"link"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ContactUser is the per-user overlay on a Contact.
type ContactUser struct {
	ContactID              int64          `json:"contact_id"`
	UserID                 int64          `json:"user_id"`
	LID                    Opt[string]    `json:"lid"`
	IsBusiness             Opt[bool]      `json:"is_business"`
	IsContactSyncCompleted Opt[bool]      `json:"is_contact_sync_completed"`
	IsEnterprise           Opt[bool]      `json:"is_enterprise"`
	IsGroup                bool           `json:"is_group"`
	Name                   Opt[string]    `json:"name"`
	PushName               Opt[string]    `json:"pushname"`
	ShortName              Opt[string]    `json:"short_name"`
	SyncToAddressbook      Opt[bool]      `json:"sync_to_addressbook"`
	Type                   Opt[string]    `json:"type"`
	VerifiedName           Opt[string]    `json:"verified_name"`
	Labels                 Labels         `json:"wa_labels"`
	AssignedAt             Opt[time.Time] `json:"assigned_at"`
	DeletedAt              Opt[time.Time] `json:"deleted_at"`
}

// ContactRecord is one enriched observation ready to be written.
type ContactRecord struct {
	Contact Contact
	Overlay ContactUser
	Message *ContactMessage
}

// Addressable reports whether the record carries any identifier.
func (r ContactRecord) Addressable() bool {
	return r.Contact.WID.Valid || r.Overlay.LID.Valid
}

// ContactView is the read shape served from the active/deleted views and
// the read-through cache.
type ContactView struct {
	Contact Contact         `json:"contact"`
	Overlay ContactUser     `json:"overlay"`
	Message *ContactMessage `json:"last_message,omitempty"`
}

type ContactStats struct {
	UserID         int64 `json:"user_id"`
	ContactCount   int64 `json:"contact_count"`
	DeletedCount   int64 `json:"deleted_count"`
	UnreadChats    int64 `json:"unread_chats"`
	UnreadMessages int64 `json:"unread_messages"`
}
