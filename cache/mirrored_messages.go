package cache

import (
	"context"
	"sync"
	"time"
)

const (
	// MirroredMessagesHorizon is how long an original message can be edited or deleted
	// and still have the change replayed onto its mirrored copies.
	MirroredMessagesHorizon = time.Hour

	// MirroredMessagesSweepInterval is how often expired entries get evicted.
	MirroredMessagesSweepInterval = 10 * time.Minute
)

// MirroredMessage references one copy of an original message, posted through a webhook.
type MirroredMessage struct {
	ChannelID    string
	MessageID    string
	WebhookID    string
	WebhookToken string
}

type mirroredEntry struct {
	createdAt time.Time
	messages  []MirroredMessage
}

// MirroredMessages maps original message IDs to the copies posted for them.
// Nothing in here survives a restart.
type MirroredMessages struct {
	sync.Mutex

	entries map[string]*mirroredEntry
}

func NewMirroredMessages() *MirroredMessages {
	return &MirroredMessages{
		entries: make(map[string]*mirroredEntry),
	}
}

// Record appends a mirrored copy to the entry of originalID. createdAt is only used
// when the entry does not exist yet.
func (m *MirroredMessages) Record(originalID string, createdAt time.Time, message MirroredMessage) {
	m.Lock()
	defer m.Unlock()

	entry, ok := m.entries[originalID]
	if !ok {
		entry = &mirroredEntry{createdAt: createdAt}
		m.entries[originalID] = entry
	}
	entry.messages = append(entry.messages, message)
}

// Lookup returns the mirrored copies of originalID in the order they were recorded.
func (m *MirroredMessages) Lookup(originalID string) ([]MirroredMessage, bool) {
	m.Lock()
	defer m.Unlock()

	entry, ok := m.entries[originalID]
	if !ok {
		return nil, false
	}

	messages := make([]MirroredMessage, len(entry.messages))
	copy(messages, entry.messages)
	return messages, true
}

// Take removes the entry of originalID and returns its copies. Copies recorded
// afterwards start a new entry.
func (m *MirroredMessages) Take(originalID string) ([]MirroredMessage, bool) {
	m.Lock()
	defer m.Unlock()

	entry, ok := m.entries[originalID]
	if !ok {
		return nil, false
	}
	delete(m.entries, originalID)
	return entry.messages, true
}

func (m *MirroredMessages) Len() int {
	m.Lock()
	defer m.Unlock()

	return len(m.entries)
}

// Sweep evicts every entry created before now-horizon and returns how many were evicted.
func (m *MirroredMessages) Sweep(now time.Time, horizon time.Duration) (removed int) {
	deadline := now.Add(-horizon)

	m.Lock()
	expired := make([]string, 0)
	for originalID, entry := range m.entries {
		if entry.createdAt.Before(deadline) {
			expired = append(expired, originalID)
		}
	}
	m.Unlock()

	for _, originalID := range expired {
		m.Lock()
		// a Record between both passes may have replaced the entry
		if entry, ok := m.entries[originalID]; ok && entry.createdAt.Before(deadline) {
			delete(m.entries, originalID)
			removed++
		}
		m.Unlock()
	}

	return removed
}

// Run sweeps every interval until ctx is done. onSweep, if set, is called after each sweep.
func (m *MirroredMessages) Run(ctx context.Context, interval time.Duration, onSweep func(removed, left int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			GetLogger().WithField("module", "cache").Debug("cleaning mirrored message cache")
			removed := m.Sweep(now, MirroredMessagesHorizon)
			left := m.Len()
			GetLogger().WithField("module", "cache").Infof(
				"removed %d mirrored messages from cache, %d left", removed, left)
			if onSweep != nil {
				onSweep(removed, left)
			}
		}
	}
}
