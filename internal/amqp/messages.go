package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kmbot/internal/core"
)

// EntrySyncMessage asks the worker to export one ledger entry. It carries
// only the reference; the worker reads the entry from the database.
type EntrySyncMessage struct {
	EventID   string         `json:"event_id"`
	Kind      core.EntryKind `json:"kind"`
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEntrySyncMessage(kind core.EntryKind, id int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		EventID:   uuid.NewString(),
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON decodes and validates a message body.
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.IsValid() {
		return nil, fmt.Errorf("unknown entry kind %q", msg.Kind)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid entry id %d", msg.ID)
	}
	return &msg, nil
}
