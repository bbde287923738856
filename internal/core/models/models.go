package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attendance ist ein Erkennungsergebnis des Kiosks
type Attendance struct {
	gorm.Model
	KioskID      string         `gorm:"index;not null" json:"kiosk_id"`
	Name         string         `gorm:"index;not null" json:"name"`
	Known        bool           `gorm:"index" json:"known"`
	Token        *int           `json:"token,omitempty"`
	RecognizedAt time.Time      `gorm:"index" json:"recognized_at"`
	SnapshotPath string         `json:"snapshot_path,omitempty"`
	Payload      datatypes.JSON `gorm:"type:json;null" json:"payload,omitempty"` // Rohantwort des Backends
}

// Statistics fasst das Journal zusammen
type Statistics struct {
	Total    int64     `json:"total"`
	Known    int64     `json:"known"`
	Unknown  int64     `json:"unknown"`
	People   int64     `json:"people"` // Anzahl verschiedener erkannter Namen
	LatestAt time.Time `json:"latest_at"`
}
