// Package prompt turns free-text shape requests into shape descriptors.
// Parsing is a pure function with a fixed fallback: text we cannot make
// sense of becomes the default 50mm cube, never an error.
package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shapekiln/kiln/internal/mesh"
)

var kindKeywords = []struct {
	kind  mesh.Kind
	words []string
}{
	{mesh.KindCube, []string{"cube", "box", "block"}},
	{mesh.KindCylinder, []string{"cylinder", "tube", "rod"}},
	{mesh.KindSphere, []string{"sphere", "ball", "orb", "globe"}},
	{mesh.KindCone, []string{"cone"}},
	{mesh.KindTorus, []string{"torus", "donut", "doughnut", "ring"}},
}

// namedDimRe matches "radius 25", "25mm radius", "height: 80mm" forms.
var namedDimRe = regexp.MustCompile(`(width|height|depth|radius|diameter)\s*:?\s*(\d+(?:\.\d+)?)\s*(?:mm)?`)
var reverseDimRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mm)?\s*(width|height|depth|radius|diameter)`)
var bareNumberRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mm`)

// Parse extracts a shape kind and any explicit dimensions from text.
// Dimensions it does not find are left absent; the mesh builder fills in
// the fixed defaults.
func Parse(text string) mesh.ShapeDescriptor {
	lower := strings.ToLower(text)

	kind, found := detectKind(lower)
	if !found {
		return mesh.DefaultShape()
	}

	dims := make(map[string]float64)
	for _, m := range namedDimRe.FindAllStringSubmatch(lower, -1) {
		applyDim(dims, m[1], m[2])
	}
	for _, m := range reverseDimRe.FindAllStringSubmatch(lower, -1) {
		applyDim(dims, m[2], m[1])
	}

	// A lone "<n>mm" with no dimension name sizes the whole shape.
	if len(dims) == 0 {
		if m := bareNumberRe.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
				applyUniform(dims, kind, v)
			}
		}
	}

	return mesh.ShapeDescriptor{Kind: kind, Dimensions: dims}
}

func detectKind(lower string) (mesh.Kind, bool) {
	for _, entry := range kindKeywords {
		for _, word := range entry.words {
			if containsWord(lower, word) {
				return entry.kind, true
			}
		}
	}
	return "", false
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		before := start == 0 || !isLetter(text[start-1])
		after := end == len(text) || !isLetter(text[end])
		if before && after {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func applyDim(dims map[string]float64, name, value string) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v <= 0 {
		return
	}
	if name == "diameter" {
		dims["radius"] = v / 2
		return
	}
	if _, exists := dims[name]; !exists {
		dims[name] = v
	}
}

// applyUniform maps one bare size onto the dimensions the kind uses:
// linear dimensions get the full value, radii get half of it.
func applyUniform(dims map[string]float64, kind mesh.Kind, v float64) {
	switch kind {
	case mesh.KindCube:
		dims["width"], dims["height"], dims["depth"] = v, v, v
	case mesh.KindCylinder, mesh.KindCone:
		dims["radius"], dims["height"] = v/2, v
	case mesh.KindSphere:
		dims["radius"] = v / 2
	case mesh.KindTorus:
		dims["radius"], dims["width"] = v/2, v/4
	}
}
