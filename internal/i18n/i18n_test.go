package i18n

import (
	"testing"
	"testing/fstest"
)

func TestTranslate(t *testing.T) {
	tr, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		lang, id string
		data     map[string]any
		want     string
	}{
		{"en", "status.starting_hand", nil, "Starting Hand Rec..."},
		{"en", "status.face_prompt", nil, "Please position your face"},
		{"en", "result.unknown", nil, "Sorry, you were not recognised."},
		{"en", "result.name", map[string]any{"Name": "Alice"}, "Name: Alice"},
		{"de", "status.disconnected", nil, "Verbindung getrennt"},
		{"fr", "status.hand_prompt", nil, "Please give a Thumbs Up"},
		{"en", "no.such.message", nil, "no.such.message"},
	}
	for _, tt := range tests {
		if got := tr.T(tt.lang, tt.id, tt.data); got != tt.want {
			t.Errorf("T(%s, %s) = %q, want %q", tt.lang, tt.id, got, tt.want)
		}
	}
}

func TestMatchAcceptLanguage(t *testing.T) {
	tr, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := map[string]string{
		"de-DE,de;q=0.9,en;q=0.8": "de",
		"en-GB":                   "en",
		"fr-FR":                   "en",
		"":                        "en",
	}
	for header, want := range tests {
		if got := tr.Match(header); got != want {
			t.Errorf("Match(%q) = %q, want %q", header, got, want)
		}
	}
	if langs := tr.Languages(); len(langs) != 2 || langs[0] != "de" || langs[1] != "en" {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestMissingDefaultLanguage(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/de.json": {Data: []byte(`{"status.idle": "Bereit"}`)},
	}
	if _, err := NewFromFS(fsys, "locales", "en"); err == nil {
		t.Fatal("expected an error without messages for the default language")
	}
}
