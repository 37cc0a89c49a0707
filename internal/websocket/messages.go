package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/audioscribe/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeBatchStarted MessageType = usecase.EventBatchStarted
	MessageTypeFileDone     MessageType = usecase.EventFileDone
	MessageTypeBatchDone    MessageType = usecase.EventBatchDone
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ProgressMessage reports batch progress to the session's browser tabs
type ProgressMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	Key       string `json:"key,omitempty"`
	Name      string `json:"name,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage answers a ping
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error sent to the client
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// CreateProgressMessage converts a batch event into a wire message
func CreateProgressMessage(sessionID string, event usecase.ProgressEvent) *ProgressMessage {
	return &ProgressMessage{
		BaseMessage: newBase(MessageType(event.Type)),
		SessionID:   sessionID,
		Key:         event.Key,
		Name:        event.Name,
		IsError:     event.IsError,
		Done:        event.Done,
		Total:       event.Total,
	}
}

// CreatePongMessage creates a pong reply
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateErrorMessage creates an error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
	}
}

// ParseClientMessage decodes a message sent by the browser. Only ping is
// accepted; the stream is otherwise server to client.
func ParseClientMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil
	case "":
		return nil, fmt.Errorf("message type is required")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}
