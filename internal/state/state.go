package state

import (
	"sort"
	"time"

	"moexwatch/internal/history"
)

// ChatRefs holds the live message ids owned by one chat. A zero id means
// the message has not been created yet (or its handle went stale and was
// cleared for re-creation).
type ChatRefs struct {
	PriceMessageID int64 `json:"price_message_id"`
	ChartMessageID int64 `json:"chart_message_id"`
}

// Snapshot is the full durable state of the tracker: the bounded value
// history plus per-chat message references.
type Snapshot struct {
	History *history.Series
	Chats   map[int64]*ChatRefs
}

// NewSnapshot constructs an empty snapshot with the given canonical zone.
func NewSnapshot(loc *time.Location) *Snapshot {
	return &Snapshot{
		History: history.NewSeries(loc),
		Chats:   make(map[int64]*ChatRefs),
	}
}

// EnsureChat returns the refs for a chat, creating an empty record on
// first contact.
func (s *Snapshot) EnsureChat(chatID int64) *ChatRefs {
	refs, ok := s.Chats[chatID]
	if !ok {
		refs = &ChatRefs{}
		s.Chats[chatID] = refs
	}
	return refs
}

// ChatIDs returns the known chat ids in stable ascending order.
func (s *Snapshot) ChatIDs() []int64 {
	ids := make([]int64, 0, len(s.Chats))
	for id := range s.Chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
