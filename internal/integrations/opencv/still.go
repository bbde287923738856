package opencv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"attendance-kiosk/internal/camera"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Still serves frames from image files on disk, cycling through a directory
// in name order. It stands in for a webcam on machines without one and
// applies the same size, mirror and format settings.
type Still struct {
	settings camera.Settings
	paths    []string

	mutex  sync.Mutex
	next   int
	scaled gocv.Mat
	closed bool
}

// NewStill prepares a still source from a single image file or a directory of
// .jpg/.jpeg/.png files.
func NewStill(path string, settings camera.Settings) (*Still, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("still source: %w", err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("still source: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && isImageFile(e.Name()) {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("still source: no images in %s", path)
	}

	log.WithFields(log.Fields{"path": path, "images": len(paths), "format": settings.Format}).Info("Still image source attached")
	return &Still{settings: settings, paths: paths, scaled: gocv.NewMat()}, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Snap loads the next image and returns it as a data URI.
func (s *Still) Snap(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return "", camera.ErrClosed
	}
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)

	// Bild laden
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return "", fmt.Errorf("still frame %s: %w", filepath.Base(path), camera.ErrEmptyFrame)
	}

	return encodeFrame(prepare(img, &s.scaled, s.settings), s.settings)
}

// Close stops the source; later snaps fail with camera.ErrClosed.
func (s *Still) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.scaled.Close()
	return nil
}
