package studio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/heimdex/heimdex-studio/internal/interaction"
	"github.com/heimdex/heimdex-studio/internal/persist"
	"github.com/heimdex/heimdex-studio/internal/playback"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

// Persister receives every committed timeline. Implementations must not
// block on storage.
type Persister interface {
	Enqueue(projectID string, st *timeline.State)
}

// View is what the editor renders for one frame.
type View struct {
	playback.Frame
	Mode     interaction.Mode   `json:"mode"`
	Ghost    *interaction.Ghost `json:"ghost,omitempty"`
	Captured bool               `json:"pointer_captured"`
	Faults   []playback.Fault   `json:"faults,omitempty"`
	// Notices raised since the previous tick.
	Notices []persist.Notice `json:"notices,omitempty"`
}

// Session is one open project: the live timeline plus its pointer,
// clock and media state. All methods are safe for concurrent use; they are
// serialized by a single lock.
type Session struct {
	id          string
	persister   Persister
	noticeLimit int
	logger      *slog.Logger
	onNotice    func(persist.Notice)

	mu       sync.Mutex
	state    *timeline.State
	ctrl     *interaction.Controller
	clock    *playback.Clock
	player   *playback.Synchronizer
	ghost    *interaction.Ghost
	captured bool
	notices  []persist.Notice
	fresh    []persist.Notice
	reported map[string]string
	subs     map[int]chan View
	nextSub  int
	last     View
	closed   bool
}

func newSession(id string, st *timeline.State, opener playback.Opener, persister Persister, opts Options, logger *slog.Logger) *Session {
	s := &Session{
		id:          id,
		persister:   persister,
		noticeLimit: opts.NoticeLimit,
		logger:      logger,
		state:       st.Clone(),
		clock:       playback.NewClock(opts.Loop),
		player:      playback.NewSynchronizer(opener, opts.Playback, logger),
		reported:    make(map[string]string),
		subs:        make(map[int]chan View),
	}
	// Capture and release both run under s.mu.
	s.ctrl = interaction.NewController(opts.Interaction, interaction.CaptureFunc(func() (func(), error) {
		s.captured = true
		return func() { s.captured = false }, nil
	}))
	return s
}

func (s *Session) ID() string { return s.id }

// Dispatch applies a committed edit and hands the result to persistence.
// The in-memory timeline is updated even if the later write fails.
func (s *Session) Dispatch(a timeline.Action) (*timeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(a)
}

func (s *Session) dispatch(a timeline.Action) (*timeline.State, error) {
	next, err := timeline.Apply(s.state, a)
	if err != nil {
		return nil, err
	}
	s.state = next
	if s.persister != nil {
		s.persister.Enqueue(s.id, next)
	}
	return next.Clone(), nil
}

// ToggleKeyframe toggles a keyframe for prop on the clip at the given time,
// or at the playhead when at is nil.
func (s *Session) ToggleKeyframe(clipID string, prop timeline.Property, at *float64) (*timeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.clock.Time()
	if at != nil {
		t = *at
	}
	return s.dispatch(timeline.ToggleKeyframeAt{ClipID: clipID, Property: prop, Time: t})
}

// PointerDown starts a drag, resize or scrub. A ruler press seeks at once.
func (s *Session) PointerDown(target interaction.Target, x float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ghost = nil
	if err := s.ctrl.Begin(s.state, target, x, s.clock.Time()); err != nil {
		return err
	}
	if s.ctrl.Mode() == interaction.Scrubbing {
		s.applyPointerFrame()
	}
	return nil
}

// SetTrackAreaWidth updates the pixel width used to map pointer deltas to
// seconds. It applies from the next PointerDown.
func (s *Session) SetTrackAreaWidth(px float64) {
	s.mu.Lock()
	s.ctrl.SetTrackAreaWidth(px)
	s.mu.Unlock()
}

func (s *Session) PointerMove(x float64) {
	s.mu.Lock()
	s.ctrl.Move(x)
	s.mu.Unlock()
}

// PointerUp finishes the interaction. It reports whether an edit was
// committed.
func (s *Session) PointerUp(x float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl.Mode() == interaction.Scrubbing {
		s.ctrl.Move(x)
		s.applyPointerFrame()
	}
	s.ghost = nil
	commit, ok := s.ctrl.End(x)
	if !ok {
		return false, nil
	}
	if _, err := s.dispatch(commit); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) PointerCancel() {
	s.mu.Lock()
	s.ctrl.Abort()
	s.ghost = nil
	s.mu.Unlock()
}

func (s *Session) applyPointerFrame() {
	u, ok := s.ctrl.Frame()
	if !ok {
		return
	}
	if u.SeekTo != nil {
		s.clock.Seek(*u.SeekTo)
	}
	if u.Ghost != nil {
		g := *u.Ghost
		s.ghost = &g
	}
}

func (s *Session) Play() {
	s.mu.Lock()
	s.clock.Play()
	s.mu.Unlock()
}

func (s *Session) Pause() {
	s.mu.Lock()
	s.clock.Pause()
	s.mu.Unlock()
}

func (s *Session) Toggle() {
	s.mu.Lock()
	s.clock.Toggle()
	s.mu.Unlock()
}

// Seek moves the playhead, clamped to the timeline.
func (s *Session) Seek(t float64) {
	s.mu.Lock()
	s.clock.Seek(math.Min(math.Max(0, t), s.state.TotalDuration))
	s.mu.Unlock()
}

func (s *Session) SetLoop(loop bool) {
	s.mu.Lock()
	s.clock.SetLoop(loop)
	s.mu.Unlock()
}

func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Playing()
}

// Tick advances the session by dt seconds: the pending pointer position is
// applied, the clock moves, media handles are reconciled and the resulting
// view is published to subscribers.
func (s *Session) Tick(ctx context.Context, dt float64) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.last
	}

	s.applyPointerFrame()
	now := s.clock.Advance(dt, s.state.TotalDuration)
	frame := s.player.Reconcile(ctx, s.state, now, s.clock.Playing())

	view := View{
		Frame:    frame,
		Mode:     s.ctrl.Mode(),
		Ghost:    s.ghost,
		Captured: s.captured,
		Faults:   s.player.Faults(),
	}
	s.reportFaults(view.Faults)
	view.Notices, s.fresh = s.fresh, nil
	s.last = view
	s.publish(view)
	return view
}

// View returns the most recent frame without advancing time.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) reportFaults(faults []playback.Fault) {
	for _, f := range faults {
		if s.reported[f.ClipID] == f.URL {
			continue
		}
		s.reported[f.ClipID] = f.URL
		n := persist.Notice{
			ProjectID: s.id,
			Kind:      persist.NoticeMedia,
			Message:   fmt.Sprintf("clip %s: %s", f.ClipID, f.Message),
			At:        f.At,
		}
		s.addNotice(n)
		if s.onNotice != nil {
			s.onNotice(n)
		}
	}
	for id := range s.reported {
		if !s.player.Errored(id) {
			delete(s.reported, id)
		}
	}
}

// Snapshot returns a copy of the current timeline.
func (s *Session) Snapshot() *timeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Notify records a notice raised outside the session, such as a failed save.
func (s *Session) Notify(n persist.Notice) {
	s.mu.Lock()
	s.addNotice(n)
	s.mu.Unlock()
}

func (s *Session) addNotice(n persist.Notice) {
	s.notices = append(s.notices, n)
	s.fresh = append(s.fresh, n)
	if s.noticeLimit > 0 && len(s.notices) > s.noticeLimit {
		s.notices = s.notices[len(s.notices)-s.noticeLimit:]
	}
}

// Notices returns the session's recent notices, oldest first.
func (s *Session) Notices() []persist.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persist.Notice(nil), s.notices...)
}

// Subscribe returns a channel receiving every view produced by Tick. Slow
// subscribers miss frames rather than stall the session. The returned func
// unsubscribes.
func (s *Session) Subscribe(buffer int) (<-chan View, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan View, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) publish(v View) {
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Close aborts any interaction, closes media handles and ends every
// subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ctrl.Abort()
	s.ghost = nil
	s.player.Close()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
