package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeVentasUpdated MessageType = "ventas_updated"
	TypeSyncCompleted MessageType = "sync_completed"
	TypePing          MessageType = "ping"
	TypePong          MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}
