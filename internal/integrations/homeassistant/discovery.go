package homeassistant

import (
	"fmt"
	"strings"

	"attendance-kiosk/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

const (
	// Component-Typ für Sensoren
	ComponentSensor = "sensor"

	manufacturer = "attendance-kiosk"
)

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	broker  Broker
	prefix  string
	kioskID string
	version string
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(broker Broker, prefix, kioskID, version string) *DiscoveryManager {
	if prefix == "" {
		prefix = "homeassistant"
	}
	return &DiscoveryManager{broker: broker, prefix: prefix, kioskID: kioskID, version: version}
}

// Sensors returns the discovery topic and configuration of each kiosk sensor.
func (dm *DiscoveryManager) Sensors() map[string]SensorConfig {
	nodeID := normalize(dm.kioskID)
	device := &Device{
		Identifiers:  []string{nodeID},
		Name:         fmt.Sprintf("Attendance Kiosk %s", dm.kioskID),
		Manufacturer: manufacturer,
		Model:        "Kiosk Agent",
		SWVersion:    dm.version,
	}

	sensor := func(key, name, icon, stateTopic, valueTemplate, attributesTopic string) (string, SensorConfig) {
		topic := fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, ComponentSensor, nodeID, key)
		return topic, SensorConfig{
			Name:                name,
			UniqueID:            fmt.Sprintf("%s_%s", nodeID, key),
			StateTopic:          stateTopic,
			Icon:                icon,
			JSONAttributesTopic: attributesTopic,
			ValueTemplate:       valueTemplate,
			AvailabilityTopic:   dm.broker.AvailabilityTopic(),
			PayloadAvailable:    mqtt.PayloadOnline,
			PayloadNotAvailable: mqtt.PayloadOffline,
			Device:              device,
		}
	}

	out := make(map[string]SensorConfig, 3)
	lastTopic := dm.broker.Topic("last_attendee")
	t, c := sensor("last_attendee", "Last Attendee", "mdi:account-check", lastTopic, "{{ value_json.name }}", lastTopic)
	out[t] = c
	t, c = sensor("mode", "Recognition Mode", "mdi:hand-back-right", dm.broker.Topic("mode"), "", "")
	out[t] = c
	t, c = sensor("status", "Kiosk Status", "mdi:monitor", dm.broker.Topic("status"), "", "")
	out[t] = c
	return out
}

// Register veröffentlicht die Discovery-Konfigurationen aller Sensoren
func (dm *DiscoveryManager) Register() error {
	var failed int
	for topic, cfg := range dm.Sensors() {
		log.Infof("Registering Home Assistant sensor: %s", cfg.Name)
		if err := dm.broker.PublishRetain(topic, cfg); err != nil {
			log.Errorf("Failed to register sensor %s: %v", cfg.Name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to publish %d discovery configuration(s)", failed)
	}
	return nil
}

// Normalisiert Namen für Topics (Kleinbuchstaben, Unterstriche)
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(s)
}
