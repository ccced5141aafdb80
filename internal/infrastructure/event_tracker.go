package infrastructure

import (
	"sort"
	"sync"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
)

const trackedMessagesPerChat = 20

type chatState struct {
	unread   int
	labels   []string
	messages []interfaces.MessageSnapshot
}

// EventTracker folds whatsmeow events into the label directory and the
// per-chat state served by WhatsAppDirectory.
type EventTracker struct {
	mu     sync.RWMutex
	labels map[string]entities.Label
	chats  map[string]*chatState

	// OnMessage is called outside the lock for every tracked message.
	OnMessage func(interfaces.MessageSnapshot)
}

func NewEventTracker() *EventTracker {
	return &EventTracker{
		labels: make(map[string]entities.Label),
		chats:  make(map[string]*chatState),
	}
}

// Handle is registered with whatsmeow's AddEventHandler.
func (t *EventTracker) Handle(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		if snap, ok := t.trackMessage(v); ok && t.OnMessage != nil {
			t.OnMessage(snap)
		}
	case *events.Receipt:
		t.trackReceipt(v)
	case *events.LabelEdit:
		t.trackLabel(v)
	case *events.LabelAssociationChat:
		t.trackLabelAssociation(v)
	case *events.MarkChatAsRead:
		t.trackRead(v)
	}
}

func (t *EventTracker) chat(id string) *chatState {
	c, ok := t.chats[id]
	if !ok {
		c = &chatState{}
		t.chats[id] = c
	}
	return c
}

func (t *EventTracker) trackMessage(evt *events.Message) (interfaces.MessageSnapshot, bool) {
	if evt.Info.Chat.Server == types.BroadcastServer {
		return interfaces.MessageSnapshot{}, false
	}
	snap := interfaces.MessageSnapshot{
		ID:          evt.Info.ID,
		ChatID:      contactID(evt.Info.Chat),
		Type:        messageType(evt.Info),
		TimestampMs: evt.Info.Timestamp.UnixMilli(),
		Ack:         entities.AckPending,
		FromMe:      evt.Info.IsFromMe,
	}
	if snap.FromMe {
		snap.Ack = entities.AckServer
	}
	snap.Body, snap.IsForwarded = messageBody(evt.Message)

	t.mu.Lock()
	c := t.chat(snap.ChatID)
	c.messages = append(c.messages, snap)
	if len(c.messages) > trackedMessagesPerChat {
		c.messages = c.messages[len(c.messages)-trackedMessagesPerChat:]
	}
	if snap.FromMe {
		c.unread = 0
	} else {
		c.unread++
	}
	t.mu.Unlock()
	return snap, true
}

func (t *EventTracker) trackReceipt(evt *events.Receipt) {
	var ack int
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		ack = entities.AckDevice
	case types.ReceiptTypeRead:
		ack = entities.AckRead
	case types.ReceiptTypePlayed:
		ack = entities.AckPlayed
	default:
		return
	}
	ids := make(map[string]bool, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		ids[id] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chats[contactID(evt.Chat)]
	if !ok {
		return
	}
	for i := range c.messages {
		if ids[c.messages[i].ID] && c.messages[i].Ack < ack {
			c.messages[i].Ack = ack
		}
	}
}

func (t *EventTracker) trackLabel(evt *events.LabelEdit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if evt.Action.GetDeleted() {
		delete(t.labels, evt.LabelID)
		return
	}
	t.labels[evt.LabelID] = entities.Label{
		ID:    evt.LabelID,
		Name:  evt.Action.GetName(),
		Color: int(evt.Action.GetColor()),
	}
}

func (t *EventTracker) trackLabelAssociation(evt *events.LabelAssociationChat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.chat(contactID(evt.JID))
	kept := c.labels[:0]
	for _, id := range c.labels {
		if id != evt.LabelID {
			kept = append(kept, id)
		}
	}
	c.labels = kept
	if evt.Action.GetLabeled() {
		c.labels = append(c.labels, evt.LabelID)
	}
}

func (t *EventTracker) trackRead(evt *events.MarkChatAsRead) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.chat(contactID(evt.JID))
	if evt.Action.GetRead() {
		c.unread = 0
	} else if c.unread == 0 {
		c.unread = 1
	}
}

// Labels returns the label directory ordered by id.
func (t *EventTracker) Labels() []entities.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]entities.Label, 0, len(t.labels))
	for _, l := range t.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *EventTracker) Chats() []interfaces.Chat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]interfaces.Chat, 0, len(t.chats))
	for id, c := range t.chats {
		chat := interfaces.Chat{
			ID:          id,
			UnreadCount: c.unread,
			LabelIDs:    append([]string(nil), c.labels...),
		}
		if n := len(c.messages); n > 0 {
			last := c.messages[n-1]
			chat.LastMessage = &last
		}
		out = append(out, chat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Messages returns up to limit most recent messages of a chat, newest last.
func (t *EventTracker) Messages(chatID string, limit int) []interfaces.MessageSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.chats[chatID]
	if !ok {
		return nil
	}
	msgs := c.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]interfaces.MessageSnapshot(nil), msgs...)
}

func messageType(info types.MessageInfo) string {
	if info.Type == "text" {
		return "chat"
	}
	if info.MediaType != "" {
		return info.MediaType
	}
	return info.Type
}

func messageBody(msg *waE2E.Message) (string, bool) {
	if msg == nil {
		return "", false
	}
	if msg.GetConversation() != "" {
		return msg.GetConversation(), false
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText(), ext.GetContextInfo().GetIsForwarded()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption(), img.GetContextInfo().GetIsForwarded()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption(), vid.GetContextInfo().GetIsForwarded()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption(), doc.GetContextInfo().GetIsForwarded()
	}
	return "", false
}
