package persistence

import (
	"context"

	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

// Backend is one storage surface for session records. The adapter runs the
// same operation against whichever backend is reachable.
type Backend interface {
	GetAll(ctx context.Context) ([]sessions.Record, error)
	GetFiltered(ctx context.Context, filter sessions.Filter) ([]sessions.Record, error)
	Create(ctx context.Context, record sessions.Record) (sessions.Record, error)
	Update(ctx context.Context, id string, record sessions.Record) (sessions.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

// LocalBackend is a Backend that can additionally replace its whole record
// set, which is how the local-only import works.
type LocalBackend interface {
	Backend
	Replace(ctx context.Context, records []sessions.Record) error
}
