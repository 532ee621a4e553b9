package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "devices message",
			msgType: TypeDevices,
			data:    DevicesData{Devices: []string{"Lights", "Motors"}},
			wantErr: false,
		},
		{
			name:    "motors message",
			msgType: TypeMotors,
			data:    MotorsData{Left: 30, Right: -30, Armed: true},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
			wantErr: false,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeMotors,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp not set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original, err := NewMotorsMessage(MotorsData{Left: 40, Right: 40, Armed: true, Ticks: 2})
	if err != nil {
		t.Fatalf("NewMotorsMessage() error = %v", err)
	}

	data, err := original.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeMotors {
		t.Errorf("type = %v, want %v", parsed.Type, TypeMotors)
	}

	motors, err := Decode[MotorsData](parsed)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if motors.Left != 40 || motors.Ticks != 2 || !motors.Armed {
		t.Errorf("motors = %+v", motors)
	}
}

func TestDevicesMessage_NeverNull(t *testing.T) {
	msg, err := NewDevicesMessage(nil, "startup")
	if err != nil {
		t.Fatalf("NewDevicesMessage() error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["devices"]) != "[]" {
		t.Errorf("devices = %s, want []", raw["devices"])
	}
}

func TestWatchdogMessage(t *testing.T) {
	msg, err := NewWatchdogMessage("expired", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	wd, err := Decode[WatchdogData](msg)
	if err != nil {
		t.Fatal(err)
	}
	if wd.Reason != "expired" || wd.TimeoutMs != 5000 {
		t.Errorf("watchdog = %+v", wd)
	}
}

func TestPingPongMessage(t *testing.T) {
	ping, err := NewPingMessage("abc")
	if err != nil {
		t.Fatal(err)
	}
	pd, err := Decode[PingData](ping)
	if err != nil {
		t.Fatal(err)
	}
	if pd.ID != "abc" || pd.Timestamp == 0 {
		t.Errorf("ping = %+v", pd)
	}

	pong, err := NewPongMessage(pd.ID, 1000, 1025)
	if err != nil {
		t.Fatal(err)
	}
	po, err := Decode[PongData](pong)
	if err != nil {
		t.Fatal(err)
	}
	if po.LatencyMs != 25 {
		t.Errorf("latency = %d, want 25", po.LatencyMs)
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("ParseMessage() accepted invalid JSON")
	}
}

func TestDecode_WrongType(t *testing.T) {
	msg, err := NewMotorsMessage(MotorsData{Left: 10, Right: 10, Armed: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode[WatchdogData](msg); err == nil {
		t.Error("Decode() accepted a motors message as watchdog data")
	}
}
