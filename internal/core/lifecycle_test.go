package core_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/mesh"
	"github.com/shapekiln/kiln/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) SendJobEvent(event, jobID string, status core.JobStatus, errorMsg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newTestLifecycle(t *testing.T) (*core.Lifecycle, *store.JobStore, *recordingNotifier) {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "kiln.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	jobs := store.NewJobStore(kv, 7*24*time.Hour)
	notifier := &recordingNotifier{}
	return core.NewLifecycle(jobs, notifier), jobs, notifier
}

func cubeShape() mesh.ShapeDescriptor {
	return mesh.ShapeDescriptor{
		Kind:       mesh.KindCube,
		Dimensions: map[string]float64{"width": 20, "height": 20, "depth": 20},
	}
}

func TestCreate(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "a 20mm cube", cubeShape())
	require.NoError(t, err)

	assert.Len(t, job.ID, 8)
	assert.Equal(t, core.StatusPendingPayment, job.Status)
	assert.Contains(t, job.MeshData, "solid cube")
	assert.Nil(t, job.PaidAt)

	// Not queued until paid.
	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	got, err := lc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestCreate_UnknownKindGetsDefaultCube(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	job, err := lc.Create(context.Background(), "hologram", mesh.ShapeDescriptor{Kind: "hologram"})
	require.NoError(t, err)
	assert.Equal(t, mesh.DefaultShape(), job.Shape)
}

func TestCreate_InvalidDimension(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	_, err := lc.Create(context.Background(), "", mesh.ShapeDescriptor{
		Kind:       mesh.KindCylinder,
		Dimensions: map[string]float64{"radius": -5},
	})
	assert.ErrorIs(t, err, mesh.ErrInvalidDimension)
}

func TestFullLifecycle(t *testing.T) {
	lc, _, notifier := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "a 20mm cube", cubeShape())
	require.NoError(t, err)

	paid, err := lc.ConfirmPayment(ctx, job.ID, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, paid.Status)
	assert.Equal(t, "pay_123", paid.PaymentRef)
	require.NotNil(t, paid.PaidAt)

	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, queue)

	next, err := lc.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, next)

	printing, err := lc.BeginPrinting(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPrinting, printing.Status)

	// Still queued while printing, but not offered as next.
	queue, err = lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, queue)
	next, err = lc.PeekNext(ctx)
	require.NoError(t, err)
	assert.Empty(t, next)

	done, err := lc.Complete(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, done.Status)
	require.NotNil(t, done.PrintedAt)

	queue, err = lc.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	assert.Equal(t, []string{core.EventJobPaid, core.EventPrintStarted, core.EventPrintComplete}, notifier.all())
}

func TestConfirmPayment_SecondConfirmRejected(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)

	_, err = lc.ConfirmPayment(ctx, job.ID, "pay_first")
	require.NoError(t, err)

	_, err = lc.ConfirmPayment(ctx, job.ID, "pay_second")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	// The original reference survives and the id is queued once.
	got, err := lc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_first", got.PaymentRef)

	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, queue)
}

func TestConfirmPayment_UnknownJob(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	_, err := lc.ConfirmPayment(context.Background(), "nope1234", "pay_x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBeginPrinting_RequiresPaid(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)

	_, err = lc.BeginPrinting(ctx, job.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestComplete_RequiresPrinting(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	_, err = lc.ConfirmPayment(ctx, job.ID, "pay")
	require.NoError(t, err)

	_, err = lc.Complete(ctx, job.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestFail_FromAnyNonTerminalStatus(t *testing.T) {
	lc, _, notifier := newTestLifecycle(t)
	ctx := context.Background()

	pending, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)

	paidJob, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	_, err = lc.ConfirmPayment(ctx, paidJob.ID, "pay_a")
	require.NoError(t, err)

	printingJob, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	_, err = lc.ConfirmPayment(ctx, printingJob.ID, "pay_b")
	require.NoError(t, err)
	_, err = lc.BeginPrinting(ctx, printingJob.ID)
	require.NoError(t, err)

	for _, id := range []string{pending.ID, paidJob.ID, printingJob.ID} {
		require.NoError(t, lc.Fail(ctx, id, "nozzle jam"))
		got, err := lc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, got.Status)
		assert.Equal(t, "nozzle jam", got.Error)
	}

	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	assert.Equal(t, 3, countEvents(notifier.all(), core.EventPrintFailed))
}

func TestFail_Idempotent(t *testing.T) {
	lc, _, notifier := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	require.NoError(t, lc.Fail(ctx, job.ID, "first reason"))

	// A repeat reports success without overwriting the recorded reason or
	// raising another event.
	require.NoError(t, lc.Fail(ctx, job.ID, "second reason"))

	got, err := lc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "first reason", got.Error)
	assert.Equal(t, 1, countEvents(notifier.all(), core.EventPrintFailed))
}

func TestFail_CompletedJobRejected(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	_, err = lc.ConfirmPayment(ctx, job.ID, "pay")
	require.NoError(t, err)
	_, err = lc.BeginPrinting(ctx, job.ID)
	require.NoError(t, err)
	_, err = lc.Complete(ctx, job.ID)
	require.NoError(t, err)

	err = lc.Fail(ctx, job.ID, "too late")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestQueue_FIFOAcrossJobs(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := lc.Create(ctx, "", cubeShape())
		require.NoError(t, err)
		_, err = lc.ConfirmPayment(ctx, job.ID, "pay")
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, queue)

	// Head completes, next paid job becomes the head.
	_, err = lc.BeginPrinting(ctx, ids[0])
	require.NoError(t, err)
	_, err = lc.Complete(ctx, ids[0])
	require.NoError(t, err)

	next, err := lc.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[1], next)

	// A failure mid-queue removes just that id.
	require.NoError(t, lc.Fail(ctx, ids[1], "out of filament"))
	queue, err = lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2]}, queue)
}

func TestPeekNext_SkipsDanglingEntries(t *testing.T) {
	lc, jobs, _ := newTestLifecycle(t)
	ctx := context.Background()

	job, err := lc.Create(ctx, "", cubeShape())
	require.NoError(t, err)
	_, err = lc.ConfirmPayment(ctx, job.ID, "pay")
	require.NoError(t, err)

	// Corrupt the queue with an id that has no job document.
	require.NoError(t, jobs.PutQueue(ctx, []string{"ghost123", job.ID}))

	next, err := lc.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, next)

	// Skipping is not repair: the dangling entry stays.
	queue, err := lc.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost123", job.ID}, queue)
}

func TestPeekNext_EmptyQueue(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	next, err := lc.PeekNext(context.Background())
	require.NoError(t, err)
	assert.Empty(t, next)
}

func countEvents(events []string, want string) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}
