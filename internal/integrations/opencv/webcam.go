package opencv

import (
	"context"
	"fmt"
	"sync"

	"attendance-kiosk/internal/camera"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Webcam captures frames from a local video device through OpenCV.
type Webcam struct {
	settings camera.Settings
	device   int

	mutex   sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	scaled  gocv.Mat
	closed  bool
}

// NewWebcam opens the video device and applies the requested resolution.
func NewWebcam(device int, settings camera.Settings) (*Webcam, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video device %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video device %d is not available", device)
	}

	if settings.Width > 0 && settings.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(settings.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(settings.Height))
	}

	log.WithFields(log.Fields{
		"device": device,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
		"format": settings.Format,
	}).Info("Webcam attached")

	return &Webcam{
		settings: settings,
		device:   device,
		capture:  capture,
		frame:    gocv.NewMat(),
		scaled:   gocv.NewMat(),
	}, nil
}

// Snap grabs the current frame and returns it as a data URI.
func (w *Webcam) Snap(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return "", camera.ErrClosed
	}
	if ok := w.capture.Read(&w.frame); !ok {
		return "", fmt.Errorf("failed to read from video device %d", w.device)
	}
	if w.frame.Empty() {
		return "", camera.ErrEmptyFrame
	}

	return encodeFrame(prepare(w.frame, &w.scaled, w.settings), w.settings)
}

// Close releases the device and the frame buffers.
func (w *Webcam) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.frame.Close()
	w.scaled.Close()
	if err := w.capture.Close(); err != nil {
		return fmt.Errorf("failed to close video device %d: %w", w.device, err)
	}
	log.Infof("Webcam %d released", w.device)
	return nil
}
