package ports

import (
	"context"
	"time"

	"timekeeper/internal/domain"
)

// SessionReader reads work sessions
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*domain.WorkSession, error)
	// ListSessionsByDay returns non-deleted sessions whose enter_at falls
	// on the given UTC calendar day
	ListSessionsByDay(ctx context.Context, userID, date string) ([]domain.WorkSession, error)
	// ListOpenSessions returns sessions without an exit_at, used to re-arm
	// session guards on restart
	ListOpenSessions(ctx context.Context) ([]domain.WorkSession, error)
	// ListDirtySessions returns sessions never uploaded or modified since
	// their last upload
	ListDirtySessions(ctx context.Context, userID string) ([]domain.WorkSession, error)
}

// SessionWriter creates and mutates work sessions
type SessionWriter interface {
	CreateSession(ctx context.Context, s domain.WorkSession) error
	UpdateSession(ctx context.Context, s domain.WorkSession) error
	// SoftDeleteSession marks a session deleted without removing the row
	SoftDeleteSession(ctx context.Context, id string, at time.Time) error
	// MarkSessionsSynced stamps synced_at after a successful upload
	MarkSessionsSynced(ctx context.Context, ids []string, at time.Time) error
}

// SessionStore is the composite session interface
type SessionStore interface {
	SessionReader
	SessionWriter
}
