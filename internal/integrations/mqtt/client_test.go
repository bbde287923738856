package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"attendance-kiosk/config"
	"attendance-kiosk/internal/wire"
)

func TestTopics(t *testing.T) {
	c := NewClient(config.MQTTConfig{BaseTopic: "kiosk/lobby/"})
	if got := c.AvailabilityTopic(); got != "kiosk/lobby/availability" {
		t.Errorf("AvailabilityTopic = %q", got)
	}
	if got := c.Topic("attendance"); got != "kiosk/lobby/attendance" {
		t.Errorf("Topic = %q", got)
	}
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"online", "online"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{true, "true"},
		{wire.ModeFace, "face"},
		{map[string]string{"name": "Alice"}, `{"name":"Alice"}`},
	}
	for _, tt := range tests {
		got, err := encodePayload(tt.in)
		if err != nil {
			t.Fatalf("encodePayload(%v): %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("encodePayload(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	c := NewClient(config.MQTTConfig{})
	if err := c.Publish("x", "y"); err == nil {
		t.Fatal("expected an error when not connected")
	}
	// Disabled clients start without touching the network.
	if err := c.Start(); err != nil {
		t.Fatalf("Start on disabled client: %v", err)
	}
	c.Stop()
}

type fakeCommander struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	done   chan struct{}
}

func (f *fakeCommander) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	if call == f.failOn {
		return errors.New("refused")
	}
	return nil
}

func (f *fakeCommander) Start() (bool, error) { return true, f.record("start") }
func (f *fakeCommander) Continue() error { return f.record("continue") }
func (f *fakeCommander) SetMode(m wire.Mode) error { return f.record("mode:" + string(m)) }

func TestCommandHandler(t *testing.T) {
	f := &fakeCommander{failOn: "continue"}
	h := NewCommandHandler(f)

	for _, payload := range []string{"start", " Continue ", "mode face", "mode sideways", "mode", "jump", ""} {
		h.HandleMessage("kiosk/command", []byte(payload))
	}

	want := []string{"start", "continue", "mode:face"}
	if len(f.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.calls, want)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", f.calls, want)
		}
	}
}

func TestDispatchRunsHandlers(t *testing.T) {
	f := &fakeCommander{done: make(chan struct{}, 1)}
	c := NewClient(config.MQTTConfig{BaseTopic: "kiosk"})
	c.RegisterHandler(NewCommandHandler(f))

	c.dispatch(c.CommandTopic(), []byte("start"))
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}
