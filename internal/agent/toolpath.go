package agent

import (
	"fmt"
	"strings"

	"github.com/shapekiln/kiln/internal/mesh"
)

// ToolpathStrategy converts mesh text into machine toolpath instructions.
// Real slicing is out of scope for this service and is expected to be
// supplied by the deployment; the bundled stub only proves the plumbing.
type ToolpathStrategy interface {
	MeshToToolpath(meshText string) ([]byte, error)
}

// StubStrategy validates that the mesh parses and emits a fixed square
// perimeter regardless of the requested shape. It exists so the agent
// pipeline can be exercised end to end against firmware that accepts any
// gcode; it does not manufacture the shape.
type StubStrategy struct{}

func (s *StubStrategy) MeshToToolpath(meshText string) ([]byte, error) {
	tris, err := mesh.Parse(meshText)
	if err != nil {
		return nil, fmt.Errorf("mesh does not parse: %w", err)
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("mesh has no triangles")
	}

	var sb strings.Builder
	sb.WriteString("; kiln stub toolpath: fixed perimeter, not a slice of the mesh\n")
	sb.WriteString(fmt.Sprintf("; source mesh: %d triangles\n", len(tris)))
	sb.WriteString("G21\n")
	sb.WriteString("G90\n")
	sb.WriteString("G28\n")
	sb.WriteString("G0 Z0.2 F3000\n")
	sb.WriteString("G0 X10 Y10\n")
	sb.WriteString("G1 X60 Y10 F1500\n")
	sb.WriteString("G1 X60 Y60\n")
	sb.WriteString("G1 X10 Y60\n")
	sb.WriteString("G1 X10 Y10\n")
	sb.WriteString("G28\n")
	sb.WriteString("M84\n")

	return []byte(sb.String()), nil
}
