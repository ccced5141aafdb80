package interfaces

import (
	"context"
	"time"

	"wacontacts/internal/entities"
)

// Session is the calling messaging session. Entry points take it
// explicitly; nothing reads a process-wide client.
type Session interface {
	SessionIdentity() string
	Ready() bool
}

// Directory is the read-only view of the live messaging collaborator.
type Directory interface {
	Session

	// Exists returns nil when the identifier is not on WhatsApp.
	Exists(ctx context.Context, identifier string) (*ExistsResult, error)
	// LIDEntry returns nil when no linked-identifier entry is known.
	LIDEntry(ctx context.Context, identifier string) (*LIDEntry, error)
	ListChats(ctx context.Context) ([]Chat, error)
	RecentMessages(ctx context.Context, chatID string, limit int) ([]MessageSnapshot, error)
	ListLabels(ctx context.Context) ([]entities.Label, error)
	ContactModels(ctx context.Context) ([]ContactModel, error)
}

type ExistsResult struct {
	WID          string
	LID          string
	Name         string
	VerifiedName string
	IsBusiness   bool
}

// LIDEntry links a secondary identifier to its phone and the contact
// info known under it.
type LIDEntry struct {
	LID     string
	Phone   string
	Contact *ContactModel
}

// ContactModel is one contact as enumerated by the live collaborator. ID
// is either a primary identifier or a "@lid" one.
type ContactModel struct {
	ID                     string
	LID                    string
	Name                   string
	PushName               string
	ShortName              string
	VerifiedName           string
	Type                   string
	IsBusiness             entities.Opt[bool]
	IsEnterprise           entities.Opt[bool]
	IsContactSyncCompleted bool
	SyncToAddressbook      entities.Opt[bool]
	IsGroup                bool
	LabelIDs               []string
}

type Chat struct {
	ID          string
	UnreadCount int
	LabelIDs    []string
	LastMessage *MessageSnapshot
}

type MessageSnapshot struct {
	ID          string
	ChatID      string
	Body        string
	Type        string
	TimestampMs int64
	Ack         int
	IsForwarded bool
	FromMe      bool
}

// SyncReport summarizes one bulk sync run for notifiers.
type SyncReport struct {
	UserID   int64
	Session  string
	Total    int
	Saved    int
	Failed   int
	Skipped  int
	Promoted int
	Duration time.Duration
}

type Notifier interface {
	NotifySync(ctx context.Context, report SyncReport) error
}
