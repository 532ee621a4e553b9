// Package protocol defines the wire types shared by the robot server and its
// clients: RPC requests and responses, and the event messages pushed over
// the event WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket event message
type MessageType string

const (
	// Robot → client events
	TypeDevices  MessageType = "devices"  // Installed modules changed
	TypeMotors   MessageType = "motors"   // Motor command accepted
	TypeWatchdog MessageType = "watchdog" // Motors stopped by the watchdog

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all event messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Event Message Types
// =============================================================================

// DevicesData lists the installed modules
type DevicesData struct {
	Devices []string `json:"devices"`
	Reason  string   `json:"reason,omitempty"` // "startup", "init"
}

// MotorsData is the active motor command and watchdog state
type MotorsData struct {
	Left  int  `json:"left"`
	Right int  `json:"right"`
	Armed bool `json:"armed"`
	Ticks int  `json:"ticks"`
}

// WatchdogData reports a safety stop
type WatchdogData struct {
	Reason    string `json:"reason"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
