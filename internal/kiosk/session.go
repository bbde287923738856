package kiosk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/util/timezone"
	"attendance-kiosk/internal/wire"

	log "github.com/sirupsen/logrus"
)

const recordTimeout = 5 * time.Second

// Options configures a Session. Zero durations are valid and mean "no wait";
// a zero UnknownTimeout keeps the not-recognised prompt until Continue.
type Options struct {
	KioskID         string
	Group           string // face roster sent with face frames
	CaptureInterval time.Duration
	SettleDelay     time.Duration
	ResultDisplay   time.Duration
	UnknownTimeout  time.Duration

	Recorder Recorder
	Archive  FrameArchive
	Now      func() time.Time
}

// Stats are the session counters exposed on the status endpoint.
type Stats struct {
	FramesSent      int64 `json:"frames_sent"`
	RepliesReceived int64 `json:"replies_received"`
	RepliesDropped  int64 `json:"replies_dropped"`
	CaptureFailures int64 `json:"capture_failures"`
	Recognitions    int64 `json:"recognitions"`
}

// State is a point-in-time view of the session.
type State struct {
	Mode        wire.Mode `json:"mode"`
	Phase       Phase     `json:"phase"`
	Started     bool      `json:"started"`
	Token       int       `json:"token"`
	ActiveLoops int32     `json:"active_loops"`
	Stats       Stats     `json:"stats"`
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session owns the current mode and the single live capture loop.
type Session struct {
	opts    Options
	cam     camera.Capturer
	conn    Conn
	display Display

	// transition serializes mode changes; the capture loop never takes it.
	transition sync.Mutex

	mu      sync.Mutex
	mode    wire.Mode
	phase   Phase
	started bool
	closed  bool
	token   int
	epoch   uint64
	loop    *loopHandle
	resume  *time.Timer

	active atomic.Int32
	peak   atomic.Int32

	framesSent      atomic.Int64
	repliesReceived atomic.Int64
	repliesDropped  atomic.Int64
	captureFailures atomic.Int64
	recognitions    atomic.Int64
}

// NewSession creates an idle session in hand mode. Nothing is captured until
// Start or SetMode is called.
func NewSession(cam camera.Capturer, conn Conn, display Display, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = timezone.Now
	}
	return &Session{
		opts:    opts,
		cam:     cam,
		conn:    conn,
		display: display,
		mode:    wire.ModeHand,
		phase:   PhaseIdle,
	}
}

// Start is the explicit user action that begins hand recognition. Only the
// first call has an effect.
func (s *Session) Start() (bool, error) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		return false, nil
	}
	if err := s.setModeLocked(wire.ModeHand); err != nil {
		return false, err
	}
	return true, nil
}

// SetMode stops the current capture loop, waits for it to exit and arms a new
// one for next.
func (s *Session) SetMode(next wire.Mode) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", wire.ErrUnknownMode, next)
	}
	s.transition.Lock()
	defer s.transition.Unlock()
	return s.setModeLocked(next)
}

// setModeLocked requires s.transition.
func (s *Session) setModeLocked(next wire.Mode) error {
	s.stopLoop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == PhaseDisconnected {
		s.mu.Unlock()
		return ErrDisconnected
	}
	s.stopResumeLocked()
	prev := s.mode
	showing := s.phase == PhaseShowingResult || s.phase == PhaseAwaitingContinue
	s.mode = next
	s.phase = PhaseCapturing
	s.started = true
	s.epoch++
	s.mu.Unlock()

	log.WithFields(log.Fields{"from": prev, "to": next}).Info("Switching recognition mode")
	// Jede Moduswahl räumt ein angezeigtes Ergebnis ab
	if showing {
		s.display.HideResult()
	}
	s.display.ModeChanged(next)
	s.display.Status(startingNotice(next))

	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.loop = h
	s.mu.Unlock()
	go s.runLoop(ctx, next, h.done)
	return nil
}

// stopLoop cancels the live loop and blocks until it has returned.
func (s *Session) stopLoop() {
	s.mu.Lock()
	h := s.loop
	s.loop = nil
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (s *Session) stopResumeLocked() {
	if s.resume != nil {
		s.resume.Stop()
		s.resume = nil
	}
}

func (s *Session) runLoop(ctx context.Context, mode wire.Mode, done chan struct{}) {
	defer close(done)

	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if !sleep(ctx, s.opts.SettleDelay) {
		return
	}
	s.display.Status(promptNotice(mode))

	for {
		if !sleep(ctx, s.opts.CaptureInterval) {
			return
		}
		s.captureOnce(ctx, mode)
	}
}

func (s *Session) captureOnce(ctx context.Context, mode wire.Mode) {
	var (
		text string
		err  error
	)
	switch mode {
	case wire.ModeDummy:
		text, err = wire.Frame(wire.Meta{ID: mode}, wire.DummyPayload)
	case wire.ModeError:
		text, err = wire.Frame(wire.Meta{ID: mode}, wire.ErrorPayload)
	default:
		var uri string
		uri, err = s.cam.Snap(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.captureFailures.Add(1)
			log.WithError(err).Warn("Capture failed, skipping cycle")
			return
		}

		s.mu.Lock()
		s.token++
		token := s.token
		s.mu.Unlock()

		meta := wire.WithToken(mode, token)
		if mode == wire.ModeFace {
			meta.Group = s.opts.Group
			if s.opts.Archive != nil {
				s.opts.Archive.Remember(token, uri)
			}
		}
		text, err = wire.Frame(meta, uri)
	}
	if err != nil {
		log.WithError(err).Error("Failed to frame outgoing message")
		return
	}

	// A frame captured under a cancelled loop belongs to the old mode.
	if ctx.Err() != nil {
		return
	}
	if err := s.conn.Send(ctx, text); err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("Failed to send frame")
		}
		return
	}
	s.framesSent.Add(1)
}

// HandleMessage interprets one backend reply. Malformed replies are returned
// as errors and otherwise ignored.
func (s *Session) HandleMessage(raw string) error {
	msg, err := wire.Parse(raw)
	if err != nil {
		s.repliesDropped.Add(1)
		return fmt.Errorf("malformed reply: %w", err)
	}
	s.repliesReceived.Add(1)

	switch msg.Meta.ID {
	case wire.ModeHand:
		s.handleHand(msg)
	case wire.ModeFace:
		return s.handleFace(msg)
	case wire.ModeDummy, wire.ModeError:
		log.WithField("id", msg.Meta.ID).Infof("Test reply: %s", msg.Payload)
	default:
		log.WithField("id", msg.Meta.ID).Debug("Ignoring reply for unknown mode")
	}
	return nil
}

func (s *Session) handleHand(msg wire.Message) {
	s.mu.Lock()
	current := s.mode == wire.ModeHand && s.phase == PhaseCapturing
	s.mu.Unlock()
	if !current {
		log.Debug("Ignoring hand reply outside hand mode")
		return
	}

	if !wire.IsThumbsUp(msg.Payload) {
		return
	}
	log.WithField("token", tokenField(msg.Meta.Token)).Info("Thumbs up recognised")
	if err := s.SetMode(wire.ModeFace); err != nil {
		log.WithError(err).Warn("Could not switch to face recognition")
	}
}

func (s *Session) handleFace(msg wire.Message) error {
	face, err := wire.DecodeFace(msg.Payload)
	if err != nil {
		s.repliesDropped.Add(1)
		return err
	}

	result, ok := s.showFace(msg, face)
	if !ok {
		return nil
	}
	// Snapshot und Journal laufen ohne transition, damit Continue und
	// Moduswechsel nicht auf die Platte warten.
	s.record(msg, result)
	return nil
}

// showFace stops the face loop, shows the result and arms the resume timer.
// It reports false when the reply no longer belongs to the current capture.
func (s *Session) showFace(msg wire.Message, face wire.FaceResult) (Result, bool) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	current := s.mode == wire.ModeFace && s.phase == PhaseCapturing
	s.mu.Unlock()
	if !current {
		log.Debug("Ignoring face reply outside face capture")
		return Result{}, false
	}

	s.stopLoop()

	s.mu.Lock()
	if s.closed || s.phase == PhaseDisconnected {
		s.mu.Unlock()
		return Result{}, false
	}
	if face.Known {
		s.phase = PhaseShowingResult
	} else {
		s.phase = PhaseAwaitingContinue
	}
	phase := s.phase
	epoch := s.epoch
	s.mu.Unlock()

	result := Result{Name: face.Name, Known: face.Known, Token: msg.Meta.Token, At: s.opts.Now()}
	s.recognitions.Add(1)
	log.WithFields(log.Fields{
		"name":  face.Name,
		"known": face.Known,
		"token": tokenField(msg.Meta.Token),
	}).Info("Face recognition result")
	s.display.ShowResult(result)

	var wait time.Duration
	if face.Known {
		wait = s.opts.ResultDisplay
	} else {
		wait = s.opts.UnknownTimeout
	}
	if face.Known || wait > 0 {
		s.mu.Lock()
		if s.phase == phase && s.epoch == epoch && !s.closed {
			s.resume = time.AfterFunc(wait, func() { s.resumeHand(epoch) })
		}
		s.mu.Unlock()
	}
	return result, true
}

// resumeHand returns to hand mode after a result, unless something else
// changed the mode in the meantime.
func (s *Session) resumeHand(epoch uint64) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	stale := s.closed || s.epoch != epoch ||
		(s.phase != PhaseShowingResult && s.phase != PhaseAwaitingContinue)
	if !stale {
		s.resume = nil
	}
	s.mu.Unlock()
	if stale {
		return
	}

	if err := s.setModeLocked(wire.ModeHand); err != nil {
		log.WithError(err).Warn("Could not resume hand recognition")
	}
}

// Continue dismisses the not-recognised prompt and resumes hand recognition.
func (s *Session) Continue() error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	waiting := s.phase == PhaseAwaitingContinue
	s.mu.Unlock()
	if !waiting {
		return ErrNotAwaitingContinue
	}

	return s.setModeLocked(wire.ModeHand)
}

func (s *Session) record(msg wire.Message, result Result) {
	rec := Recognition{
		KioskID: s.opts.KioskID,
		Name:    result.Name,
		Known:   result.Known,
		Token:   result.Token,
		Payload: json.RawMessage(msg.Payload),
		At:      result.At,
	}
	if s.opts.Archive != nil && result.Token != nil {
		path, err := s.opts.Archive.Save(*result.Token, result.Name, result.Known)
		if err != nil {
			log.WithError(err).Warn("Failed to save recognition snapshot")
		}
		rec.SnapshotPath = path
	}
	if s.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.opts.Recorder.Record(ctx, rec); err != nil {
		log.WithError(err).Warn("Failed to record recognition")
	}
}

// Disconnected stops all activity after the backend connection was lost.
func (s *Session) Disconnected(err error) {
	s.transition.Lock()
	s.stopLoop()
	s.mu.Lock()
	already := s.phase == PhaseDisconnected
	s.phase = PhaseDisconnected
	s.stopResumeLocked()
	s.mu.Unlock()
	s.transition.Unlock()

	if already {
		return
	}
	log.WithError(err).Error("Recognition backend disconnected")
	s.display.Disconnected()
}

// Close stops the capture loop and any pending timer. The camera stays open;
// its owner closes it.
func (s *Session) Close() {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.stopLoop()
	s.mu.Lock()
	s.closed = true
	s.stopResumeLocked()
	s.mu.Unlock()
}

// Mode returns the active mode.
func (s *Session) Mode() wire.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Phase returns the current sub-state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns the current state and counters.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	st := State{
		Mode:    s.mode,
		Phase:   s.phase,
		Started: s.started,
		Token:   s.token,
	}
	s.mu.Unlock()
	st.ActiveLoops = s.active.Load()
	st.Stats = Stats{
		FramesSent:      s.framesSent.Load(),
		RepliesReceived: s.repliesReceived.Load(),
		RepliesDropped:  s.repliesDropped.Load(),
		CaptureFailures: s.captureFailures.Load(),
		Recognitions:    s.recognitions.Load(),
	}
	return st
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func tokenField(t *int) any {
	if t == nil {
		return nil
	}
	return *t
}
