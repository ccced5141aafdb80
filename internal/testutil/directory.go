package testutil

import (
	"context"
	"sync"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
)

// FakeDirectory is an in-memory interfaces.Directory. Maps are keyed by
// identifier; a missing key answers nil.
type FakeDirectory struct {
	Identity string
	NotReady bool

	Models   []interfaces.ContactModel
	Chats    []interfaces.Chat
	Labels   []entities.Label
	Messages map[string][]interfaces.MessageSnapshot
	Existing map[string]*interfaces.ExistsResult
	LIDs     map[string]*interfaces.LIDEntry

	ModelsErr error
	ChatsErr  error
	ExistsErr error

	mu          sync.Mutex
	existsCalls int
}

var _ interfaces.Directory = (*FakeDirectory)(nil)

func NewFakeDirectory(identity string) *FakeDirectory {
	return &FakeDirectory{
		Identity: identity,
		Messages: make(map[string][]interfaces.MessageSnapshot),
		Existing: make(map[string]*interfaces.ExistsResult),
		LIDs:     make(map[string]*interfaces.LIDEntry),
	}
}

func (d *FakeDirectory) SessionIdentity() string { return d.Identity }

func (d *FakeDirectory) Ready() bool { return !d.NotReady }

func (d *FakeDirectory) Exists(_ context.Context, identifier string) (*interfaces.ExistsResult, error) {
	d.mu.Lock()
	d.existsCalls++
	d.mu.Unlock()
	if d.ExistsErr != nil {
		return nil, d.ExistsErr
	}
	return d.Existing[identifier], nil
}

// ExistsCalls counts live lookups made through Exists.
func (d *FakeDirectory) ExistsCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.existsCalls
}

func (d *FakeDirectory) LIDEntry(_ context.Context, identifier string) (*interfaces.LIDEntry, error) {
	return d.LIDs[identifier], nil
}

func (d *FakeDirectory) ListChats(context.Context) ([]interfaces.Chat, error) {
	return d.Chats, d.ChatsErr
}

func (d *FakeDirectory) RecentMessages(_ context.Context, chatID string, limit int) ([]interfaces.MessageSnapshot, error) {
	msgs := d.Messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (d *FakeDirectory) ListLabels(context.Context) ([]entities.Label, error) {
	return d.Labels, nil
}

func (d *FakeDirectory) ContactModels(context.Context) ([]interfaces.ContactModel, error) {
	return d.Models, d.ModelsErr
}
