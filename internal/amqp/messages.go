package amqp

import (
	"encoding/json"
	"time"
)

// RefreshRequestMessage asks the server to re-read the spreadsheet
type RefreshRequestMessage struct {
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRefreshRequestMessage creates a request stamped with the current time
func NewRefreshRequestMessage(requestedBy, reason string) *RefreshRequestMessage {
	return &RefreshRequestMessage{
		RequestedBy: requestedBy,
		Reason:      reason,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshRequestMessageFromJSON decodes a message from JSON bytes
func RefreshRequestMessageFromJSON(data []byte) (*RefreshRequestMessage, error) {
	var msg RefreshRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
