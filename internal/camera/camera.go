// Package camera defines the frame-capture contract used by the kiosk session
// and the data URI encoding frames travel in.
package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Capturer yields still frames encoded as data URIs.
type Capturer interface {
	Snap(ctx context.Context) (string, error)
	Close() error
}

// Format is the still-image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// MIMEType returns the media type used in the data URI.
func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Settings are the capture parameters shared by every source.
type Settings struct {
	Width   int
	Height  int
	Format  Format
	Quality int // JPEG quality 1..100
	Mirror  bool
}

var (
	ErrClosed     = errors.New("camera is closed")
	ErrEmptyFrame = errors.New("camera returned an empty frame")
	ErrNotDataURI = errors.New("not a base64 data URI")
)

// EncodeDataURI wraps image bytes into a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI returns the media type and bytes of a base64 data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return mime, data, nil
}

// Extension maps a data URI media type to a file extension.
func Extension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	return ".bin"
}
