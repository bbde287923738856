// Package kiosk implements the capture-and-recognition session: the hand/face
// mode state machine, the timed snapshot loop and the interpretation of
// backend replies.
package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"attendance-kiosk/internal/wire"
)

// Notice identifies a user-facing status message. Displays localise it.
type Notice string

const (
	NoticeIdle          Notice = "status.idle"
	NoticeStartingHand  Notice = "status.starting_hand"
	NoticeStartingFace  Notice = "status.starting_face"
	NoticeStartingDummy Notice = "status.starting_dummy"
	NoticeStartingError Notice = "status.starting_error"
	NoticeHandPrompt    Notice = "status.hand_prompt"
	NoticeFacePrompt    Notice = "status.face_prompt"
	NoticeTestPrompt    Notice = "status.test_prompt"
	NoticeDisconnected  Notice = "status.disconnected"
)

func startingNotice(m wire.Mode) Notice {
	switch m {
	case wire.ModeFace:
		return NoticeStartingFace
	case wire.ModeDummy:
		return NoticeStartingDummy
	case wire.ModeError:
		return NoticeStartingError
	}
	return NoticeStartingHand
}

func promptNotice(m wire.Mode) Notice {
	switch m {
	case wire.ModeFace:
		return NoticeFacePrompt
	case wire.ModeHand:
		return NoticeHandPrompt
	}
	return NoticeTestPrompt
}

// Phase is the sub-state of the current mode.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseCapturing        Phase = "capturing"
	PhaseShowingResult    Phase = "showing-result"
	PhaseAwaitingContinue Phase = "awaiting-continue"
	PhaseDisconnected     Phase = "disconnected"
)

// Result is a face outcome shown to the user.
type Result struct {
	Name  string
	Known bool
	Token *int
	At    time.Time
}

// Display is the user-facing surface the session drives.
type Display interface {
	Status(n Notice)
	ModeChanged(m wire.Mode)
	ShowResult(r Result)
	HideResult()
	Disconnected()
}

// Conn sends frames to the recognition backend.
type Conn interface {
	Send(ctx context.Context, text string) error
}

// Recognition is one face outcome handed to recorders.
type Recognition struct {
	KioskID      string
	Name         string
	Known        bool
	Token        *int
	Payload      json.RawMessage
	SnapshotPath string
	At           time.Time
}

// Recorder persists or publishes face outcomes.
type Recorder interface {
	Record(ctx context.Context, rec Recognition) error
}

// FrameArchive keeps recently sent face frames so the one that produced a
// result can be stored.
type FrameArchive interface {
	Remember(token int, dataURI string)
	Save(token int, name string, known bool) (string, error)
}

var (
	ErrClosed              = errors.New("session is closed")
	ErrDisconnected        = errors.New("session lost its backend connection")
	ErrNotAwaitingContinue = errors.New("no unrecognised result is waiting for confirmation")
)
