// Package presence turns registry session-count transitions into
// user-status-update events.
package presence

import (
	"log/slog"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/samber/lo"
)

// Record is the derived presence of one identity.
type Record struct {
	UserID chat.Identity       `json:"userId"`
	Status chat.PresenceStatus `json:"status"`
	Online bool                `json:"online"`
}

// Broadcaster announces online/offline transitions to every other
// connected identity. It installs itself as the registry's observer.
type Broadcaster struct {
	reg *hub.Registry
	log *slog.Logger
}

// NewBroadcaster creates a Broadcaster and registers it with reg.
func NewBroadcaster(reg *hub.Registry, log *slog.Logger) *Broadcaster {
	b := &Broadcaster{reg: reg, log: log}
	reg.SetPresenceObserver(b)
	return b
}

// PresenceChanged implements hub.PresenceObserver.
func (b *Broadcaster) PresenceChanged(change hub.PresenceChange, audience []*hub.Session) {
	status := chat.StatusOffline
	if change.Online {
		status = chat.StatusOnline
	}
	evt := chat.UserStatusUpdate{
		UserID:    change.Identity,
		Status:    status,
		Timestamp: change.At,
	}

	delivered := 0
	for _, s := range audience {
		if s.Sink().Deliver(evt) {
			delivered++
			continue
		}
		b.log.Warn("Dropped presence update for slow session", "session", s.ID, "user", s.Identity)
	}
	b.log.Info("Presence changed", "user", change.Identity, "status", status, "audience", delivered)
}

// Lookup reports the current presence of each identity, in argument order.
// It must not be called from inside a registry callback.
func (b *Broadcaster) Lookup(identities ...chat.Identity) []Record {
	return lo.Map(identities, func(id chat.Identity, _ int) Record {
		online := b.reg.IsOnline(id)
		status := chat.StatusOffline
		if online {
			status = chat.StatusOnline
		}
		return Record{UserID: id, Status: status, Online: online}
	})
}
