package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// GestureThumbsUp is the hand label that advances the kiosk to face recognition.
	GestureThumbsUp = "thumbs up"
	// UnknownName is the backend's sentinel for "no matching identity".
	UnknownName = "unknown"
)

// HandGesture extracts the leading gesture label from a hand reply.
//
// Two payload shapes are in use by backends: an array of labels
// (["thumbs up", ...]) and an object ({"hand": "thumbs up"} or
// {"hand": ["thumbs up"]}). A null or empty result yields ok == false.
func HandGesture(payload json.RawMessage) (label string, ok bool) {
	var labels []json.RawMessage
	if err := json.Unmarshal(payload, &labels); err == nil {
		if len(labels) == 0 {
			return "", false
		}
		return firstLabel(labels[0])
	}

	var obj struct {
		Hand json.RawMessage `json:"hand"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || len(obj.Hand) == 0 {
		return "", false
	}
	return firstLabel(obj.Hand)
}

func firstLabel(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], list[0] != ""
	}
	return "", false
}

// IsThumbsUp reports whether a hand reply carries the thumbs-up gesture first.
func IsThumbsUp(payload json.RawMessage) bool {
	label, ok := HandGesture(payload)
	return ok && strings.EqualFold(strings.TrimSpace(label), GestureThumbsUp)
}

// FaceResult is the outcome of a face reply.
type FaceResult struct {
	Name  string
	Known bool
}

// DecodeFace interprets a face reply. Accepted shapes are the bare sentinel
// string, an object with a "name" field, and an object with a "face_name"
// list. An empty name counts as unknown.
func DecodeFace(payload json.RawMessage) (FaceResult, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return faceFromName(s), nil
	}

	var obj struct {
		Name     *string  `json:"name"`
		FaceName []string `json:"face_name"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return FaceResult{}, fmt.Errorf("%w: face result: %v", ErrMalformedPayload, err)
	}
	switch {
	case obj.Name != nil:
		return faceFromName(*obj.Name), nil
	case len(obj.FaceName) > 0:
		return faceFromName(obj.FaceName[0]), nil
	}
	return FaceResult{Name: UnknownName}, nil
}

func faceFromName(name string) FaceResult {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, UnknownName) {
		return FaceResult{Name: UnknownName}
	}
	return FaceResult{Name: name, Known: true}
}
