package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shapekiln/kiln/internal/mesh"
)

// Lifecycle drives jobs through the payment and printing state machine
// and keeps the queue document consistent with job statuses: an id is
// queued exactly while its job is paid or printing.
//
// The store offers no compare-and-swap, so every transition checks the
// current status first and the queue read-modify-write is serialized
// behind a mutex. Retrying a transition that already happened fails with
// ErrInvalidTransition and changes nothing.
type Lifecycle struct {
	store  Store
	events Notifier
	mu     sync.Mutex
}

func NewLifecycle(store Store, events Notifier) *Lifecycle {
	return &Lifecycle{
		store:  store,
		events: events,
	}
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Create builds the mesh for a shape and persists a new job in
// pending_payment. Unsupported kinds are normalized to the default cube
// before building; a present-but-invalid dimension is the caller's error.
func (l *Lifecycle) Create(ctx context.Context, prompt string, shape mesh.ShapeDescriptor) (*Job, error) {
	shape = mesh.Normalize(shape)

	meshData, err := mesh.Build(shape)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        newJobID(),
		Prompt:    prompt,
		Shape:     shape,
		MeshData:  meshData,
		Status:    StatusPendingPayment,
		CreatedAt: time.Now().UTC(),
	}

	if err := l.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	return job, nil
}

// ConfirmPayment records the external settlement reference and enqueues
// the job for the print agent. The enqueue happens exactly once, on the
// pending_payment to paid transition.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, id, ref string) (*Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPendingPayment {
		return nil, fmt.Errorf("%w: confirm_payment on %s job %s", ErrInvalidTransition, job.Status, id)
	}

	now := time.Now().UTC()
	job.Status = StatusPaid
	job.PaymentRef = ref
	job.PaidAt = &now

	if err := l.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	queue, err := l.store.GetQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if err := l.store.PutQueue(ctx, append(queue, id)); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", id, err)
	}

	l.notify(EventJobPaid, job, "")
	return job, nil
}

// BeginPrinting marks a paid job as in flight on the printer. The queue
// is not touched: the id stays queued until completion or failure.
func (l *Lifecycle) BeginPrinting(ctx context.Context, id string) (*Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPaid {
		return nil, fmt.Errorf("%w: begin_printing on %s job %s", ErrInvalidTransition, job.Status, id)
	}

	job.Status = StatusPrinting
	if err := l.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	l.notify(EventPrintStarted, job, "")
	return job, nil
}

// Complete finishes a printing job and removes its id from the queue
// wherever it occurs.
func (l *Lifecycle) Complete(ctx context.Context, id string) (*Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPrinting {
		return nil, fmt.Errorf("%w: complete on %s job %s", ErrInvalidTransition, job.Status, id)
	}

	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.PrintedAt = &now

	if err := l.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	if err := l.removeFromQueue(ctx, id); err != nil {
		return nil, err
	}

	l.notify(EventPrintComplete, job, "")
	return job, nil
}

// Fail moves any non-terminal job to failed and dequeues it if queued.
// Failing an already-failed job is a no-op so agent retries are safe;
// failed is terminal and requires manual intervention to resubmit.
func (l *Lifecycle) Fail(ctx context.Context, id, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == StatusFailed {
		return l.removeFromQueue(ctx, id)
	}
	if job.Status == StatusCompleted {
		return fmt.Errorf("%w: fail on completed job %s", ErrInvalidTransition, id)
	}

	job.Status = StatusFailed
	job.Error = reason

	if err := l.store.PutJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}
	if err := l.removeFromQueue(ctx, id); err != nil {
		return err
	}

	l.notify(EventPrintFailed, job, reason)
	return nil
}

// PeekNext returns the id at the head of the queue when that job is paid
// and ready to print. An empty id means nothing to start: either the
// queue is empty or the head job is already printing. Entries whose job
// is missing or in a status that should never be queued are corruption;
// they are logged and skipped, never repaired automatically.
func (l *Lifecycle) PeekNext(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	queue, err := l.store.GetQueue(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read queue: %w", err)
	}

	for _, id := range queue {
		job, err := l.store.GetJob(ctx, id)
		if errors.Is(err, ErrNotFound) {
			log.Printf("queue: id %s has no job document, skipping", id)
			continue
		}
		if err != nil {
			return "", err
		}

		switch job.Status {
		case StatusPaid:
			return id, nil
		case StatusPrinting:
			return "", nil
		default:
			log.Printf("queue: id %s is %s, should not be queued, skipping", id, job.Status)
		}
	}

	return "", nil
}

// Get returns the job document for id.
func (l *Lifecycle) Get(ctx context.Context, id string) (*Job, error) {
	return l.store.GetJob(ctx, id)
}

// MeshData returns the serialized mesh text for id.
func (l *Lifecycle) MeshData(ctx context.Context, id string) (string, error) {
	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	return job.MeshData, nil
}

// Queue returns a snapshot of the queued ids in order.
func (l *Lifecycle) Queue(ctx context.Context) ([]string, error) {
	return l.store.GetQueue(ctx)
}

func (l *Lifecycle) removeFromQueue(ctx context.Context, id string) error {
	queue, err := l.store.GetQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	filtered := queue[:0]
	for _, qid := range queue {
		if qid != id {
			filtered = append(filtered, qid)
		}
	}
	if len(filtered) == len(queue) {
		return nil
	}

	if err := l.store.PutQueue(ctx, filtered); err != nil {
		return fmt.Errorf("failed to dequeue job %s: %w", id, err)
	}
	return nil
}

func (l *Lifecycle) notify(event string, job *Job, errMsg string) {
	if l.events != nil {
		l.events.SendJobEvent(event, job.ID, job.Status, errMsg)
	}
}
