package protocol

import (
	"fmt"
	"time"
)

// NewDevicesMessage creates a devices event
func NewDevicesMessage(devices []string, reason string) (*Message, error) {
	if devices == nil {
		devices = []string{}
	}
	return NewMessage(TypeDevices, DevicesData{
		Devices: devices,
		Reason:  reason,
	})
}

// NewMotorsMessage creates a motors event
func NewMotorsMessage(data MotorsData) (*Message, error) {
	return NewMessage(TypeMotors, data)
}

// NewWatchdogMessage creates a watchdog event
func NewWatchdogMessage(reason string, timeout time.Duration) (*Message, error) {
	return NewMessage(TypeWatchdog, WatchdogData{
		Reason:    reason,
		TimeoutMs: timeout.Milliseconds(),
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// Payload is the set of event data types.
type Payload interface {
	DevicesData | MotorsData | WatchdogData | PingData | PongData
}

func payloadType(v any) MessageType {
	switch v.(type) {
	case DevicesData:
		return TypeDevices
	case MotorsData:
		return TypeMotors
	case WatchdogData:
		return TypeWatchdog
	case PingData:
		return TypePing
	default:
		return TypePong
	}
}

// Decode extracts the data of msg. It fails when msg is not of the type
// that carries T.
func Decode[T Payload](msg *Message) (*T, error) {
	var data T
	if want := payloadType(data); msg.Type != want {
		return nil, fmt.Errorf("%s message does not carry %s data", msg.Type, want)
	}
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
