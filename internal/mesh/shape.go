package mesh

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDimension     = errors.New("invalid dimension")
	ErrUnsupportedShapeKind = errors.New("unsupported shape kind")
)

type Kind string

const (
	KindCube     Kind = "cube"
	KindCylinder Kind = "cylinder"
	KindSphere   Kind = "sphere"
	KindCone     Kind = "cone"
	KindTorus    Kind = "torus"
)

const (
	// Defaults substituted for absent dimensions, in millimeters.
	DefaultLinearMM = 50.0
	DefaultRadiusMM = 25.0
)

// ShapeDescriptor is the canonical parametric description of a primitive
// solid. Dimensions are keyed by name (width, height, depth, radius) and
// expressed in millimeters. Which keys are consulted depends on Kind.
type ShapeDescriptor struct {
	Kind       Kind               `json:"kind"`
	Dimensions map[string]float64 `json:"dimensions"`
}

var requiredDims = map[Kind][]string{
	KindCube:     {"width", "height", "depth"},
	KindCylinder: {"radius", "height"},
	KindSphere:   {"radius"},
	KindCone:     {"radius", "height"},
	KindTorus:    {"radius", "width"},
}

// Supported reports whether kind is one of the five printable primitives.
func Supported(kind Kind) bool {
	_, ok := requiredDims[kind]
	return ok
}

// DefaultShape is the documented fallback: a 50mm cube. Every intake path
// that encounters an unsupported kind normalizes to this before building.
func DefaultShape() ShapeDescriptor {
	return ShapeDescriptor{
		Kind: KindCube,
		Dimensions: map[string]float64{
			"width":  DefaultLinearMM,
			"height": DefaultLinearMM,
			"depth":  DefaultLinearMM,
		},
	}
}

// Normalize maps descriptors with an unsupported kind to DefaultShape and
// returns everything else untouched. Dimension validation stays in Build:
// a present-but-invalid dimension is an error, never papered over.
func Normalize(shape ShapeDescriptor) ShapeDescriptor {
	if !Supported(shape.Kind) {
		return DefaultShape()
	}
	return shape
}

func defaultFor(name string) float64 {
	if name == "radius" {
		return DefaultRadiusMM
	}
	return DefaultLinearMM
}

// resolveDims returns the effective value of every dimension the kind uses.
// Absent keys substitute the fixed defaults; present keys must be positive
// and finite or the whole descriptor is rejected.
func resolveDims(shape ShapeDescriptor) (map[string]float64, error) {
	names, ok := requiredDims[shape.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShapeKind, shape.Kind)
	}

	resolved := make(map[string]float64, len(names))
	for _, name := range names {
		v, present := shape.Dimensions[name]
		if !present {
			resolved[name] = defaultFor(name)
			continue
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%v for kind %q", ErrInvalidDimension, name, v, shape.Kind)
		}
		resolved[name] = v
	}
	return resolved, nil
}
