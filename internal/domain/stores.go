package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps a history listing when no limit is given.
const DefaultListLimit = 100

type ListOpts struct {
	Kind  AssessmentKind
	Since time.Time
	Limit int
}

type AssessmentStore interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	List(ctx context.Context, opts ListOpts) ([]Assessment, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}
