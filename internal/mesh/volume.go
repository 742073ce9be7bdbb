package mesh

import (
	"math"
)

// Volume computes the closed-form volume of a shape in cubic centimeters.
// It resolves dimensions exactly like Build, so a descriptor that builds
// also has a volume.
func Volume(shape ShapeDescriptor) (float64, error) {
	dims, err := resolveDims(shape)
	if err != nil {
		return 0, err
	}

	var mm3 float64
	switch shape.Kind {
	case KindCube:
		mm3 = dims["width"] * dims["height"] * dims["depth"]
	case KindCylinder:
		r := dims["radius"]
		mm3 = math.Pi * r * r * dims["height"]
	case KindSphere:
		r := dims["radius"]
		mm3 = 4.0 / 3.0 * math.Pi * r * r * r
	case KindCone:
		r := dims["radius"]
		mm3 = math.Pi * r * r * dims["height"] / 3.0
	case KindTorus:
		major := dims["radius"]
		tube := dims["width"] / 2
		mm3 = 2 * math.Pi * math.Pi * major * tube * tube
	default:
		return 0, ErrUnsupportedShapeKind
	}

	return mm3 / 1000.0, nil
}

// EstimateMinutes derives a print-time estimate from volume via the fixed
// linear model used for quoting, floored at 5 minutes.
func EstimateMinutes(volumeCM3 float64) int {
	minutes := int(math.Round(volumeCM3 * 1.5))
	if minutes < 5 {
		return 5
	}
	return minutes
}
