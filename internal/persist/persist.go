// Package persist writes timeline snapshots to storage without blocking the
// editor. Failed writes become notices; the in-memory edit is kept.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

var ErrProjectNotFound = errors.New("project not found")

// Store accepts a whole-timeline snapshot for a project.
type Store interface {
	SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error
}

type NoticeKind string

const (
	NoticePersistence NoticeKind = "persistence"
	NoticeMedia       NoticeKind = "media"
)

// Notice is a recoverable problem surfaced to the user.
type Notice struct {
	ID        int64      `json:"id,omitempty"`
	ProjectID string     `json:"project_id"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	At        time.Time  `json:"at"`
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// NoticeLog keeps notices across restarts.
type NoticeLog interface {
	RecordNotice(ctx context.Context, n Notice) (Notice, error)
	ListNotices(ctx context.Context, projectID string, limit int) ([]Notice, error)
}

// Fanout saves to every store in order and joins their errors.
type Fanout []Store

func (f Fanout) SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error {
	var errs []error
	for _, s := range f {
		if err := s.SaveSnapshot(ctx, projectID, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
