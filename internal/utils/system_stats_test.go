package utils

import (
	"testing"
	"time"

	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/wire"
)

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestGetSystemStats(t *testing.T) {
	state := kiosk.State{
		Mode:  wire.ModeFace,
		Phase: kiosk.PhaseCapturing,
		Stats: kiosk.Stats{FramesSent: 12, RepliesReceived: 10},
	}
	stats := GetSystemStats(state, time.Now().Add(-time.Minute))

	if stats.NumCPU < 1 || stats.GoRoutines < 1 {
		t.Fatalf("runtime stats = %+v", stats)
	}
	if stats.Mode != "face" || stats.Phase != "capturing" || stats.Session.FramesSent != 12 {
		t.Fatalf("session stats = %+v", stats)
	}
	if stats.MemoryHuman == "" || stats.Uptime == "" {
		t.Fatalf("formatted fields missing: %+v", stats)
	}
}
