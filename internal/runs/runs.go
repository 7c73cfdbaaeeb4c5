package runs

import (
	"context"
	"errors"
	"time"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// State is the lifecycle state of one ingestion run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Run is the externally visible record of one ingestion run. The report is
// attached once the run reaches a terminal state; a canceled run keeps the
// partial report accumulated up to the cancellation point.
type Run struct {
	ID         string            `json:"id"`
	State      State             `json:"state"`
	Feed       string            `json:"feed,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	Report     *domain.RunReport `json:"report,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Error constants and variables
const (
	ErrMsgRunNotFound = "runs: run not found"
)

var (
	ErrRunNotFound = errors.New(ErrMsgRunNotFound)
)

// Registry stores run records so callers of the fire-and-forget mode can poll
// for the outcome later.
type Registry interface {
	Put(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]Run, error)
}
