package core

import (
	"context"
	"errors"
	"time"

	"github.com/shapekiln/kiln/internal/mesh"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

type JobStatus string

const (
	StatusPendingPayment JobStatus = "pending_payment"
	StatusPaid           JobStatus = "paid"
	StatusPrinting       JobStatus = "printing"
	StatusCompleted      JobStatus = "completed"
	StatusFailed         JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one fabrication request tracked from creation through payment
// and printing. ID, Prompt, Shape and MeshData are immutable after
// creation; PaymentRef and the timestamps are each set exactly once at
// their transition.
type Job struct {
	ID         string               `json:"id"`
	Prompt     string               `json:"prompt"`
	Shape      mesh.ShapeDescriptor `json:"shape"`
	MeshData   string               `json:"mesh_data"`
	Status     JobStatus            `json:"status"`
	PaymentRef string               `json:"payment_ref,omitempty"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	PaidAt     *time.Time           `json:"paid_at,omitempty"`
	PrintedAt  *time.Time           `json:"printed_at,omitempty"`
}

// Store is the durable document store the lifecycle operates on. Job
// documents live at job:<id>, the queue document (an ordered id list)
// at the queue key. Only per-key read/write atomicity is assumed.
type Store interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	PutJob(ctx context.Context, job *Job) error
	GetQueue(ctx context.Context) ([]string, error)
	PutQueue(ctx context.Context, ids []string) error
}

// Notifier receives job lifecycle events. Implementations must not
// block; the webhook sender queues and delivers asynchronously.
type Notifier interface {
	SendJobEvent(event string, jobID string, status JobStatus, errorMsg string)
}

const (
	EventJobPaid       = "job_paid"
	EventPrintStarted  = "print_started"
	EventPrintComplete = "print_completed"
	EventPrintFailed   = "print_failed"
)
