package kiosk

import (
	"context"
	"errors"

	"attendance-kiosk/internal/wire"
)

// Displays fans every call out to each display in order.
type Displays []Display

func (ds Displays) Status(n Notice) {
	for _, d := range ds {
		d.Status(n)
	}
}

func (ds Displays) ModeChanged(m wire.Mode) {
	for _, d := range ds {
		d.ModeChanged(m)
	}
}

func (ds Displays) ShowResult(r Result) {
	for _, d := range ds {
		d.ShowResult(r)
	}
}

func (ds Displays) HideResult() {
	for _, d := range ds {
		d.HideResult()
	}
}

func (ds Displays) Disconnected() {
	for _, d := range ds {
		d.Disconnected()
	}
}

// Recorders hands each recognition to every recorder and joins their errors.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, rec Recognition) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
