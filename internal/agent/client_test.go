package agent_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapekiln/kiln/internal/agent"
	"github.com/shapekiln/kiln/internal/api"
	"github.com/shapekiln/kiln/internal/api/handlers"
	"github.com/shapekiln/kiln/internal/config"
	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/mesh"
	"github.com/shapekiln/kiln/internal/store"
)

// Exercises Client against the real server router so the remote agent
// and the in-process lifecycle stay interchangeable.
func newClientFixture(t *testing.T) (*agent.Client, *core.Lifecycle) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv, err := store.Open(filepath.Join(t.TempDir(), "kiln.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	jobs := store.NewJobStore(kv, 7*24*time.Hour)
	lifecycle := core.NewLifecycle(jobs, nil)
	pricing := &config.PricingConfig{FeeCents: 500}

	srv := httptest.NewServer(api.NewRouter(
		handlers.NewOrderHandler(lifecycle, jobs, pricing),
		handlers.NewPreviewHandler(pricing),
	))
	t.Cleanup(srv.Close)

	return agent.NewClient(srv.URL, time.Second), lifecycle
}

func paidJob(t *testing.T, lifecycle *core.Lifecycle) *core.Job {
	t.Helper()
	ctx := context.Background()
	job, err := lifecycle.Create(ctx, "a cube", mesh.DefaultShape())
	require.NoError(t, err)
	_, err = lifecycle.ConfirmPayment(ctx, job.ID, "pay_test")
	require.NoError(t, err)
	return job
}

func TestClient_PeekNext(t *testing.T) {
	client, lifecycle := newClientFixture(t)
	ctx := context.Background()

	id, err := client.PeekNext(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	job := paidJob(t, lifecycle)

	id, err = client.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, id)
}

func TestClient_MeshData(t *testing.T) {
	client, lifecycle := newClientFixture(t)
	ctx := context.Background()

	job := paidJob(t, lifecycle)
	meshText, err := client.MeshData(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.MeshData, meshText)

	_, err = client.MeshData(ctx, "nope1234")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClient_Transitions(t *testing.T) {
	client, lifecycle := newClientFixture(t)
	ctx := context.Background()

	job := paidJob(t, lifecycle)

	printing, err := client.BeginPrinting(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPrinting, printing.Status)

	// A second agent claiming the same job sees the conflict as the
	// sentinel, same as the in-process lifecycle.
	_, err = client.BeginPrinting(ctx, job.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	done, err := client.Complete(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, done.Status)
}

func TestClient_Fail(t *testing.T) {
	client, lifecycle := newClientFixture(t)
	ctx := context.Background()

	job := paidJob(t, lifecycle)
	require.NoError(t, client.Fail(ctx, job.ID, "thermal runaway"))

	got, err := lifecycle.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "thermal runaway", got.Error)
}
