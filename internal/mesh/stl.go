package mesh

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Serialize renders a triangle list as one named ASCII STL solid. The
// literal keywords matter: commodity slicers key on them exactly.
func Serialize(name string, tris []Triangle) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("solid %s\n", name))
	for _, t := range tris {
		sb.WriteString(fmt.Sprintf("  facet normal %.6f %.6f %.6f\n", t.Normal.X, t.Normal.Y, t.Normal.Z))
		sb.WriteString("    outer loop\n")
		for _, v := range t.V {
			sb.WriteString(fmt.Sprintf("      vertex %.6f %.6f %.6f\n", v.X, v.Y, v.Z))
		}
		sb.WriteString("    endloop\n")
		sb.WriteString("  endfacet\n")
	}
	sb.WriteString(fmt.Sprintf("endsolid %s\n", name))

	return sb.String()
}

// Parse reads ASCII STL text back into triangles. It enforces the framing
// the serializer emits: a single solid block whose endsolid name matches,
// and per facet the normal, outer loop, three vertices, endloop, endfacet
// sequence.
func Parse(text string) ([]Triangle, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	next := func() ([]string, bool) {
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) > 0 {
				return fields, true
			}
		}
		return nil, false
	}

	parseVec := func(fields []string) (Vec3, error) {
		var vals [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Vec3{}, fmt.Errorf("bad coordinate %q: %w", f, err)
			}
			vals[i] = v
		}
		return Vec3{vals[0], vals[1], vals[2]}, nil
	}

	header, ok := next()
	if !ok || header[0] != "solid" || len(header) < 2 {
		return nil, fmt.Errorf("missing solid header")
	}
	name := header[1]

	var tris []Triangle
	for {
		fields, ok := next()
		if !ok {
			return nil, fmt.Errorf("unexpected end of mesh before endsolid")
		}

		if fields[0] == "endsolid" {
			if len(fields) < 2 || fields[1] != name {
				return nil, fmt.Errorf("endsolid name %v does not match solid %q", fields[1:], name)
			}
			return tris, nil
		}

		if fields[0] != "facet" || len(fields) != 5 || fields[1] != "normal" {
			return nil, fmt.Errorf("expected facet normal, got %q", strings.Join(fields, " "))
		}
		normal, err := parseVec(fields[2:5])
		if err != nil {
			return nil, err
		}

		if fields, ok = next(); !ok || len(fields) != 2 || fields[0] != "outer" || fields[1] != "loop" {
			return nil, fmt.Errorf("expected outer loop")
		}

		var t Triangle
		t.Normal = normal
		for i := 0; i < 3; i++ {
			fields, ok = next()
			if !ok || len(fields) != 4 || fields[0] != "vertex" {
				return nil, fmt.Errorf("expected vertex %d", i)
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return nil, err
			}
			t.V[i] = v
		}

		if fields, ok = next(); !ok || fields[0] != "endloop" {
			return nil, fmt.Errorf("expected endloop")
		}
		if fields, ok = next(); !ok || fields[0] != "endfacet" {
			return nil, fmt.Errorf("expected endfacet")
		}

		tris = append(tris, t)
	}
}
