package homeassistant

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"attendance-kiosk/internal/integrations/mqtt"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/wire"
)

type message struct {
	topic   string
	payload interface{}
	retain  bool
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []message
}

func (b *fakeBroker) Publish(topic string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, message{topic, payload, false})
	return nil
}

func (b *fakeBroker) PublishRetain(topic string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, message{topic, payload, true})
	return nil
}

func (b *fakeBroker) Topic(parts ...string) string { return mqtt.Topic("kiosk", parts...) }

func (b *fakeBroker) AvailabilityTopic() string { return "kiosk/availability" }

func TestPublisherRecord(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b)
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	if err := p.Record(context.Background(), kiosk.Recognition{KioskID: "k1", Name: "Alice", Known: true, At: at}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := p.Record(context.Background(), kiosk.Recognition{KioskID: "k1", Name: "unknown", At: at}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(b.msgs) != 3 {
		t.Fatalf("messages = %+v", b.msgs)
	}
	if b.msgs[0].topic != "kiosk/attendance" || b.msgs[0].retain {
		t.Errorf("first message = %+v", b.msgs[0])
	}
	if b.msgs[1].topic != "kiosk/last_attendee" || !b.msgs[1].retain {
		t.Errorf("second message = %+v", b.msgs[1])
	}
	ev, ok := b.msgs[2].payload.(AttendanceEvent)
	if !ok || ev.Known || ev.Name != "unknown" {
		t.Errorf("third message = %+v", b.msgs[2])
	}
}

func TestPublisherDisplay(t *testing.T) {
	b := &fakeBroker{}
	var d kiosk.Display = NewPublisher(b)

	d.ModeChanged(wire.ModeFace)
	d.Status(kiosk.NoticeFacePrompt)
	d.ShowResult(kiosk.Result{Name: "Alice", Known: true})
	d.Disconnected()

	if len(b.msgs) != 3 {
		t.Fatalf("messages = %+v", b.msgs)
	}
	if b.msgs[0].topic != "kiosk/mode" || b.msgs[0].payload != wire.ModeFace {
		t.Errorf("mode message = %+v", b.msgs[0])
	}
	if b.msgs[2].payload != string(kiosk.NoticeDisconnected) {
		t.Errorf("disconnect message = %+v", b.msgs[2])
	}
}

func TestDiscoverySensors(t *testing.T) {
	b := &fakeBroker{}
	dm := NewDiscoveryManager(b, "", "Lobby-1", "1.0.0")

	if err := dm.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(b.msgs) != 3 {
		t.Fatalf("discovery messages = %d, want 3", len(b.msgs))
	}

	sensors := dm.Sensors()
	cfg, ok := sensors["homeassistant/sensor/lobby_1/last_attendee/config"]
	if !ok {
		t.Fatalf("missing last attendee sensor; got %v", keys(sensors))
	}
	if cfg.StateTopic != "kiosk/last_attendee" || cfg.UniqueID != "lobby_1_last_attendee" {
		t.Errorf("last attendee sensor = %+v", cfg)
	}
	if cfg.AvailabilityTopic != "kiosk/availability" || cfg.PayloadNotAvailable != mqtt.PayloadOffline {
		t.Errorf("availability = %+v", cfg)
	}
	for _, m := range b.msgs {
		if !m.retain || !strings.HasPrefix(m.topic, "homeassistant/sensor/lobby_1/") {
			t.Errorf("discovery message = %+v", m)
		}
	}
}

func keys(m map[string]SensorConfig) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
