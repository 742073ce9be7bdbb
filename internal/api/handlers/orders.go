package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shapekiln/kiln/internal/config"
	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/mesh"
)

type CreateOrderRequest struct {
	Prompt string                `json:"prompt"`
	Shape  *mesh.ShapeDescriptor `json:"shape"`
}

type ConfirmPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type FailRequest struct {
	Reason string `json:"reason"`
}

type OrderResponse struct {
	ID               string               `json:"id"`
	Prompt           string               `json:"prompt,omitempty"`
	Shape            mesh.ShapeDescriptor `json:"shape"`
	Status           core.JobStatus       `json:"status"`
	PaymentRef       string               `json:"payment_ref,omitempty"`
	Error            string               `json:"error,omitempty"`
	VolumeCM3        float64              `json:"volume_cm3"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
	PriceCents       int64                `json:"price_cents"`
	CreatedAt        time.Time            `json:"created_at"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	PrintedAt        *time.Time           `json:"printed_at,omitempty"`
}

// Lifecycle is the state-machine surface the order endpoints drive.
type Lifecycle interface {
	Create(ctx context.Context, prompt string, shape mesh.ShapeDescriptor) (*core.Job, error)
	ConfirmPayment(ctx context.Context, id, ref string) (*core.Job, error)
	BeginPrinting(ctx context.Context, id string) (*core.Job, error)
	Complete(ctx context.Context, id string) (*core.Job, error)
	Fail(ctx context.Context, id, reason string) error
	PeekNext(ctx context.Context) (string, error)
	Get(ctx context.Context, id string) (*core.Job, error)
	MeshData(ctx context.Context, id string) (string, error)
	Queue(ctx context.Context) ([]string, error)
}

// JobLister is the listing surface, satisfied by the job store.
type JobLister interface {
	ListJobs(ctx context.Context) ([]*core.Job, error)
}

type OrderHandler struct {
	lifecycle Lifecycle
	lister    JobLister
	pricing   *config.PricingConfig
}

func NewOrderHandler(lifecycle Lifecycle, lister JobLister, pricing *config.PricingConfig) *OrderHandler {
	return &OrderHandler{
		lifecycle: lifecycle,
		lister:    lister,
		pricing:   pricing,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	shape, ok := resolveShape(PreviewRequest(req))
	if !ok {
		writeBadRequest(c, "prompt or shape is required")
		return
	}

	job, err := h.lifecycle.Create(c.Request.Context(), req.Prompt, shape)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.jobToResponse(job))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	jobs, err := h.lister.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	status := core.JobStatus(c.Query("status"))
	responses := make([]OrderResponse, 0, len(jobs))
	for _, job := range jobs {
		if status != "" && job.Status != status {
			continue
		}
		responses = append(responses, h.jobToResponse(job))
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": responses,
		"count":  len(responses),
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	job, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.jobToResponse(job))
}

// GetMesh serves the raw STL for a job, for the agent and for preview
// rendering.
func (h *OrderHandler) GetMesh(c *gin.Context) {
	meshText, err := h.lifecycle.MeshData(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "model/stl", []byte(meshText))
}

// ConfirmPayment is the opaque "payment confirmed" event from the
// settlement flow: it carries only the external transaction reference.
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	job, err := h.lifecycle.ConfirmPayment(c.Request.Context(), c.Param("id"), req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.jobToResponse(job))
}

func (h *OrderHandler) BeginPrinting(c *gin.Context) {
	job, err := h.lifecycle.BeginPrinting(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *OrderHandler) Complete(c *gin.Context) {
	job, err := h.lifecycle.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *OrderHandler) Fail(c *gin.Context) {
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "unspecified failure"
	}

	id := c.Param("id")
	if err := h.lifecycle.Fail(c.Request.Context(), id, req.Reason); err != nil {
		writeError(c, err)
		return
	}

	job, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *OrderHandler) GetQueue(c *gin.Context) {
	ids, err := h.lifecycle.Queue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"ids":    ids,
		"length": len(ids),
	})
}

// PeekNext returns the head job ready to print, or 204 when the agent
// has nothing to do this tick.
func (h *OrderHandler) PeekNext(c *gin.Context) {
	id, err := h.lifecycle.PeekNext(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if id == "" {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *OrderHandler) jobToResponse(job *core.Job) OrderResponse {
	resp := OrderResponse{
		ID:         job.ID,
		Prompt:     job.Prompt,
		Shape:      job.Shape,
		Status:     job.Status,
		PaymentRef: job.PaymentRef,
		Error:      job.Error,
		PriceCents: h.pricing.FeeCents,
		CreatedAt:  job.CreatedAt,
		PaidAt:     job.PaidAt,
		PrintedAt:  job.PrintedAt,
	}

	// Shapes on stored jobs are always valid: volume cannot fail here.
	if volume, err := mesh.Volume(job.Shape); err == nil {
		resp.VolumeCM3 = volume
		resp.EstimatedMinutes = mesh.EstimateMinutes(volume)
	}

	return resp
}

func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/:id/mesh", h.GetMesh)
	r.POST("/orders/:id/payment", h.ConfirmPayment)
	r.POST("/orders/:id/print", h.BeginPrinting)
	r.POST("/orders/:id/complete", h.Complete)
	r.POST("/orders/:id/fail", h.Fail)
	r.GET("/queue", h.GetQueue)
	r.GET("/queue/next", h.PeekNext)
}
