// Package snapshots keeps the most recent face frames and writes the one
// behind a recognition result to disk.
package snapshots

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownToken is returned by Save when the frame is no longer held.
var ErrUnknownToken = errors.New("no frame held for token")

type frame struct {
	token int
	uri   string
}

// Store implements kiosk.FrameArchive.
type Store struct {
	dir         string
	keepUnknown bool

	mu     sync.Mutex
	frames []frame // ring, oldest first
	max    int
	now    func() time.Time
}

// NewStore keeps up to maxFrames frames in memory and saves into dir.
func NewStore(dir string, maxFrames int, keepUnknown bool) (*Store, error) {
	if maxFrames <= 0 {
		maxFrames = 16
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	return &Store{
		dir:         dir,
		keepUnknown: keepUnknown,
		max:         maxFrames,
		now:         timezone.Now,
	}, nil
}

// Remember holds the frame sent with token, evicting the oldest when full.
func (s *Store) Remember(token int, dataURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == s.max {
		copy(s.frames, s.frames[1:])
		s.frames = s.frames[:len(s.frames)-1]
	}
	s.frames = append(s.frames, frame{token: token, uri: dataURI})
}

// Save writes the frame for token and returns its path. Unknown faces are
// skipped unless keepUnknown is set; the returned path is then empty.
func (s *Store) Save(token int, name string, known bool) (string, error) {
	if !known && !s.keepUnknown {
		return "", nil
	}

	s.mu.Lock()
	var uri string
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].token == token {
			uri = s.frames[i].uri
			break
		}
	}
	s.mu.Unlock()
	if uri == "" {
		return "", fmt.Errorf("%w %d", ErrUnknownToken, token)
	}

	mime, data, err := camera.DecodeDataURI(uri)
	if err != nil {
		return "", fmt.Errorf("failed to decode frame %d: %w", token, err)
	}

	fileName := fmt.Sprintf("%s_%s_%s%s",
		s.now().Format("20060102-150405"),
		sanitize(name),
		uuid.NewString()[:8],
		camera.Extension(mime),
	)
	path := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	log.WithFields(log.Fields{"token": token, "path": path}).Debug("Snapshot saved")
	return path, nil
}

// Len returns the number of frames held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
