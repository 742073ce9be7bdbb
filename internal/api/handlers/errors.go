package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/mesh"
)

// APIError is the structured error body every endpoint returns on
// failure: a machine-readable kind tag plus a human message.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	kindInvalidDimension  = "invalid_dimension"
	kindUnsupportedShape  = "unsupported_shape_kind"
	kindInvalidTransition = "invalid_transition"
	kindNotFound          = "not_found"
	kindInvalidRequest    = "invalid_request"
	kindInternal          = "internal"
)

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := kindInternal

	switch {
	case errors.Is(err, mesh.ErrInvalidDimension):
		status, kind = http.StatusBadRequest, kindInvalidDimension
	case errors.Is(err, mesh.ErrUnsupportedShapeKind):
		status, kind = http.StatusBadRequest, kindUnsupportedShape
	case errors.Is(err, core.ErrInvalidTransition):
		status, kind = http.StatusConflict, kindInvalidTransition
	case errors.Is(err, core.ErrNotFound):
		status, kind = http.StatusNotFound, kindNotFound
	}

	c.JSON(status, gin.H{"error": APIError{Kind: kind, Message: err.Error()}})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": APIError{Kind: kindInvalidRequest, Message: message}})
}
