// Package studio owns projects and their live editing sessions.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/heimdex/heimdex-studio/internal/interaction"
	"github.com/heimdex/heimdex-studio/internal/persist"
	"github.com/heimdex/heimdex-studio/internal/playback"
	"github.com/heimdex/heimdex-studio/internal/store"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

const DefaultNoticeLimit = 50

type Options struct {
	Interaction   interaction.Settings
	Playback      playback.Options
	Loop          bool
	SceneDuration float64
	NoticeLimit   int
}

func DefaultOptions() Options {
	return Options{
		Interaction:   interaction.DefaultSettings(),
		Playback:      playback.DefaultOptions(),
		Loop:          true,
		SceneDuration: timeline.DefaultSceneDuration,
		NoticeLimit:   DefaultNoticeLimit,
	}
}

type Service struct {
	repo      store.Repository
	opener    playback.Opener
	persister Persister
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(repo store.Repository, opener playback.Opener, opts Options, logger *slog.Logger) *Service {
	if opts.NoticeLimit <= 0 {
		opts.NoticeLimit = DefaultNoticeLimit
	}
	if opts.SceneDuration <= 0 {
		opts.SceneDuration = timeline.DefaultSceneDuration
	}
	return &Service{
		repo:     repo,
		opener:   opener,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// SetPersister sets where committed timelines are sent. It must be called
// before the first session is opened.
func (s *Service) SetPersister(p Persister) {
	s.persister = p
}

func (s *Service) CreateProject(ctx context.Context, name string, scenes []timeline.Scene) (*store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled project"
	}

	now := time.Now()
	p := &store.Project{
		ID:        store.NewID(),
		Name:      name,
		State:     timeline.FromScript(scenes, s.opts.SceneDuration),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("project created", "project_id", p.ID, "scenes", len(scenes))
	}
	return p, nil
}

// GetProject returns the stored project. When a session is open its live
// timeline replaces the stored one, which may lag behind pending writes.
func (s *Service) GetProject(ctx context.Context, id string) (*store.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", persist.ErrProjectNotFound, id)
	}
	if sess := s.session(id); sess != nil {
		p.State = sess.Snapshot()
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*store.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	s.CloseSession(id)
	return s.repo.DeleteProject(ctx, id)
}

// ImportProject replaces a project's timeline verbatim.
func (s *Service) ImportProject(ctx context.Context, id string, st *timeline.State) (*timeline.State, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Dispatch(timeline.ReplaceState{State: st})
}

// Open returns the live session for a project, loading it on first use.
func (s *Service) Open(ctx context.Context, id string) (*Session, error) {
	if sess := s.session(id); sess != nil {
		return sess, nil
	}

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", persist.ErrProjectNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess := newSession(id, p.State, s.opener, s.persister, s.opts, s.logger)
	sess.onNotice = func(n persist.Notice) { go s.record(n) }
	s.sessions[id] = sess

	if s.logger != nil {
		s.logger.Info("session opened", "project_id", id)
	}
	return sess, nil
}

func (s *Service) session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Sessions returns the open sessions ordered by project ID.
func (s *Service) Sessions() []*Session {
	s.mu.Lock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Service) CloseSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Close()
		if s.logger != nil {
			s.logger.Info("session closed", "project_id", id)
		}
	}
}

// PauseAll pauses playback in every open session.
func (s *Service) PauseAll() {
	for _, sess := range s.Sessions() {
		sess.Pause()
	}
}

type Status struct {
	OpenSessions int `json:"open_sessions"`
	Playing      int `json:"playing"`
}

func (s *Service) Status() Status {
	sessions := s.Sessions()
	st := Status{OpenSessions: len(sessions)}
	for _, sess := range sessions {
		if sess.Playing() {
			st.Playing++
		}
	}
	return st
}

// Notify implements persist.Notifier. The notice is shown in the open
// session, if any, and kept in the notice log.
func (s *Service) Notify(n persist.Notice) {
	if sess := s.session(n.ProjectID); sess != nil {
		sess.Notify(n)
	}
	s.record(n)
}

func (s *Service) record(n persist.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.repo.RecordNotice(ctx, n); err != nil && s.logger != nil {
		s.logger.Warn("failed to record notice", "project_id", n.ProjectID, "error", err)
	}
}

// Notices returns stored notices for a project, newest first.
func (s *Service) Notices(ctx context.Context, id string, limit int) ([]persist.Notice, error) {
	if limit <= 0 {
		limit = s.opts.NoticeLimit
	}
	return s.repo.ListNotices(ctx, id, limit)
}

// Close ends every open session.
func (s *Service) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.CloseSession(id)
	}
}

// IsNotFound reports whether err means the project does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, persist.ErrProjectNotFound)
}
