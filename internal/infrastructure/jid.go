package infrastructure

import (
	"go.mau.fi/whatsmeow/types"

	"wacontacts/internal/entities"
)

// contactID renders a whatsmeow JID in the identifier form stored in
// contacts.link: "<phone>@c.us", "<n>@lid" or "<id>@g.us".
func contactID(jid types.JID) string {
	jid = jid.ToNonAD()
	switch jid.Server {
	case types.DefaultUserServer:
		return jid.User + "@" + entities.ContactServer
	case types.HiddenUserServer:
		return jid.User + "@" + entities.LIDServer
	}
	return jid.String()
}
