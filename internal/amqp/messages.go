package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncRequestMessage asks a worker to run an incremental sync for one user.
// It deliberately carries no access token: the worker resolves credentials
// locally so they never transit the broker.
type SyncRequestMessage struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(userID string) *SyncRequestMessage {
	return &SyncRequestMessage{
		RequestID: uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON creates a message from JSON bytes.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
