package homeassistant

import (
	"context"
	"fmt"
	"time"

	"attendance-kiosk/internal/integrations/mqtt"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/wire"

	log "github.com/sirupsen/logrus"
)

// Broker is the part of the MQTT client the publisher needs.
type Broker interface {
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
	Topic(parts ...string) string
	AvailabilityTopic() string
}

var _ Broker = (*mqtt.Client)(nil)

// AttendanceEvent wird bei jedem Gesichtsergebnis veröffentlicht
type AttendanceEvent struct {
	KioskID   string    `json:"kiosk_id"`
	Name      string    `json:"name"`
	Known     bool      `json:"known"`
	Token     *int      `json:"token,omitempty"`
	Snapshot  string    `json:"snapshot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher veröffentlicht Kiosk-Zustand und Anwesenheiten via MQTT.
// It implements kiosk.Display and kiosk.Recorder.
type Publisher struct {
	broker Broker
}

// NewPublisher erstellt einen neuen MQTT-Publisher
func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

// Record veröffentlicht ein Erkennungsergebnis
func (p *Publisher) Record(ctx context.Context, rec kiosk.Recognition) error {
	event := AttendanceEvent{
		KioskID:   rec.KioskID,
		Name:      rec.Name,
		Known:     rec.Known,
		Token:     rec.Token,
		Snapshot:  rec.SnapshotPath,
		Timestamp: rec.At,
	}
	if err := p.broker.Publish(p.broker.Topic("attendance"), event); err != nil {
		return fmt.Errorf("failed to publish attendance: %w", err)
	}
	if rec.Known {
		// Letzter erkannter Name bleibt für Home Assistant erhalten
		if err := p.broker.PublishRetain(p.broker.Topic("last_attendee"), event); err != nil {
			return fmt.Errorf("failed to publish last attendee: %w", err)
		}
	}
	return nil
}

func (p *Publisher) ModeChanged(m wire.Mode) {
	p.publishRetain(p.broker.Topic("mode"), m)
}

func (p *Publisher) Status(n kiosk.Notice) {
	p.publishRetain(p.broker.Topic("status"), string(n))
}

func (p *Publisher) ShowResult(r kiosk.Result) {}

func (p *Publisher) HideResult() {}

func (p *Publisher) Disconnected() {
	p.publishRetain(p.broker.Topic("status"), string(kiosk.NoticeDisconnected))
}

func (p *Publisher) publishRetain(topic string, payload interface{}) {
	if err := p.broker.PublishRetain(topic, payload); err != nil {
		log.Debugf("Failed to publish %s: %v", topic, err)
	}
}
