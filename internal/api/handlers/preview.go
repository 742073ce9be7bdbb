package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapekiln/kiln/internal/config"
	"github.com/shapekiln/kiln/internal/mesh"
	"github.com/shapekiln/kiln/internal/prompt"
)

type PreviewRequest struct {
	Prompt string                `json:"prompt"`
	Shape  *mesh.ShapeDescriptor `json:"shape"`
}

type PreviewResponse struct {
	Shape            mesh.ShapeDescriptor `json:"shape"`
	Mesh             string               `json:"mesh"`
	TriangleCount    int                  `json:"triangle_count"`
	VolumeCM3        float64              `json:"volume_cm3"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
	PriceCents       int64                `json:"price_cents"`
}

type PreviewHandler struct {
	pricing *config.PricingConfig
}

func NewPreviewHandler(pricing *config.PricingConfig) *PreviewHandler {
	return &PreviewHandler{pricing: pricing}
}

// resolveShape picks the descriptor out of a request: an explicit shape
// wins over the prompt, unknown kinds normalize to the default cube.
func resolveShape(req PreviewRequest) (mesh.ShapeDescriptor, bool) {
	if req.Shape != nil {
		return mesh.Normalize(*req.Shape), true
	}
	if req.Prompt != "" {
		return prompt.Parse(req.Prompt), true
	}
	return mesh.ShapeDescriptor{}, false
}

func (h *PreviewHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	shape, ok := resolveShape(req)
	if !ok {
		writeBadRequest(c, "prompt or shape is required")
		return
	}

	tris, err := mesh.Tessellate(shape)
	if err != nil {
		writeError(c, err)
		return
	}

	volume, err := mesh.Volume(shape)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{
		Shape:            shape,
		Mesh:             mesh.Serialize(string(shape.Kind), tris),
		TriangleCount:    len(tris),
		VolumeCM3:        volume,
		EstimatedMinutes: mesh.EstimateMinutes(volume),
		PriceCents:       h.pricing.FeeCents,
	})
}

func (h *PreviewHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/preview", h.Preview)
}
