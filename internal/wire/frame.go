// Package wire implements the text framing spoken with the recognition backend.
//
// A frame is a JSON metadata object immediately followed by a payload, with no
// delimiter in between:
//
//	{"id":"hand","token":7}data:image/jpeg;base64,/9j/4AAQ...
//
// The receiver splits at the first '}' character, so the metadata must never
// contain a '}' of its own before its closing brace. Data URIs and the JSON
// results returned by the backend satisfy this, and Frame refuses metadata that
// would not.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Mode identifies the backend handler a frame is addressed to.
type Mode string

const (
	ModeHand  Mode = "hand"
	ModeFace  Mode = "face"
	ModeDummy Mode = "dummy"
	ModeError Mode = "error"
)

// Fixed payloads sent by the test modes.
const (
	DummyPayload = "This is dummy data!"
	ErrorPayload = "Raise an error!"
)

var (
	ErrNoMetadata       = errors.New("frame has no metadata terminator")
	ErrMalformedMeta    = errors.New("frame metadata is not valid JSON")
	ErrMissingID        = errors.New("frame metadata has no id")
	ErrMalformedPayload = errors.New("frame payload is not valid JSON")
	ErrAmbiguousMeta    = errors.New("frame metadata contains '}' before its end")
	ErrUnknownMode      = errors.New("unknown mode")
)

// ParseMode converts a configuration or API string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeHand, ModeFace, ModeDummy, ModeError:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// Meta is the metadata object that prefixes every frame. Group selects the
// roster the backend matches faces against; it is omitted when empty and the
// backend then uses its default roster.
type Meta struct {
	ID    Mode   `json:"id"`
	Token *int   `json:"token,omitempty"`
	Group string `json:"group,omitempty"`
}

// WithToken returns a Meta for mode carrying the given correlation token.
func WithToken(mode Mode, token int) Meta {
	return Meta{ID: mode, Token: &token}
}

// Frame serializes meta and appends payload.
func Frame(meta Meta, payload string) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frame metadata: %w", err)
	}
	if strings.IndexByte(string(b), '}') != len(b)-1 {
		return "", ErrAmbiguousMeta
	}
	return string(b) + payload, nil
}

// Unframe splits raw at its first '}' into the metadata text (brace included)
// and the payload text.
func Unframe(raw string) (meta string, payload string, err error) {
	idx := strings.IndexByte(raw, '}')
	if idx < 0 {
		return "", "", ErrNoMetadata
	}
	return raw[:idx+1], raw[idx+1:], nil
}

// DecodeMeta parses the metadata half of a frame.
func DecodeMeta(text string) (Meta, error) {
	var aux struct {
		ID    *Mode  `json:"id"`
		Token *int   `json:"token"`
		Group string `json:"group"`
	}
	if err := json.Unmarshal([]byte(text), &aux); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformedMeta, err)
	}
	if aux.ID == nil || *aux.ID == "" {
		return Meta{}, ErrMissingID
	}
	return Meta{ID: *aux.ID, Token: aux.Token, Group: aux.Group}, nil
}

// Message is a decoded inbound frame.
type Message struct {
	Meta    Meta
	Payload json.RawMessage
}

// Parse unframes raw and validates both halves as JSON.
func Parse(raw string) (Message, error) {
	metaText, payloadText, err := Unframe(raw)
	if err != nil {
		return Message{}, err
	}
	meta, err := DecodeMeta(metaText)
	if err != nil {
		return Message{}, err
	}
	payload := []byte(strings.TrimSpace(payloadText))
	if !json.Valid(payload) {
		return Message{}, ErrMalformedPayload
	}
	return Message{Meta: meta, Payload: json.RawMessage(payload)}, nil
}
