package mesh

import (
	"math"
)

// Tessellation resolutions. These are fixed so that mesh output stays
// deterministic across runs and across previews of the same shape.
const (
	cylinderSegments = 24
	sphereRings      = 12
	sphereSegments   = 16
	coneSegments     = 24
	torusRings       = 16
	torusSegments    = 24
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Triangle is one oriented facet: three vertices wound counter-clockwise
// when viewed from outside the solid, plus the outward unit normal.
type Triangle struct {
	Normal Vec3
	V      [3]Vec3
}

// tri builds a facet whose normal is derived from the winding order.
func tri(a, b, c Vec3) Triangle {
	n := b.Sub(a).Cross(c.Sub(a)).Normalized()
	return Triangle{Normal: n, V: [3]Vec3{a, b, c}}
}

// triN builds a facet with an explicit normal, used where the flat
// cross-product normal is not the one we want to emit (axis-aligned cube
// faces, sphere facets that carry the radial direction).
func triN(n, a, b, c Vec3) Triangle {
	return Triangle{Normal: n, V: [3]Vec3{a, b, c}}
}

// Build turns a shape descriptor into ASCII STL text. It is pure and
// deterministic: the same descriptor always yields byte-identical output.
// Valid descriptors never fail; a present-but-invalid dimension returns
// ErrInvalidDimension and a kind outside the five primitives returns
// ErrUnsupportedShapeKind.
func Build(shape ShapeDescriptor) (string, error) {
	tris, err := Tessellate(shape)
	if err != nil {
		return "", err
	}
	return Serialize(string(shape.Kind), tris), nil
}

// Tessellate produces the oriented triangle list for a shape. The Y axis
// is up; solids are centered at the origin except the cone, whose base
// sits on the y=0 plane.
func Tessellate(shape ShapeDescriptor) ([]Triangle, error) {
	dims, err := resolveDims(shape)
	if err != nil {
		return nil, err
	}

	switch shape.Kind {
	case KindCube:
		return tessellateCube(dims["width"], dims["height"], dims["depth"]), nil
	case KindCylinder:
		return tessellateCylinder(dims["radius"], dims["height"]), nil
	case KindSphere:
		return tessellateSphere(dims["radius"]), nil
	case KindCone:
		return tessellateCone(dims["radius"], dims["height"]), nil
	case KindTorus:
		return tessellateTorus(dims["radius"], dims["width"]/2), nil
	default:
		// resolveDims already rejected unknown kinds.
		return nil, ErrUnsupportedShapeKind
	}
}

// quad emits two triangles covering a planar face, all four corners wound
// counter-clockwise from outside, with an explicit face normal.
func quad(out []Triangle, n, a, b, c, d Vec3) []Triangle {
	out = append(out, triN(n, a, b, c))
	out = append(out, triN(n, a, c, d))
	return out
}

func tessellateCube(w, h, d float64) []Triangle {
	hx, hy, hz := w/2, h/2, d/2
	tris := make([]Triangle, 0, 12)

	tris = quad(tris, Vec3{0, 1, 0},
		Vec3{-hx, hy, -hz}, Vec3{-hx, hy, hz}, Vec3{hx, hy, hz}, Vec3{hx, hy, -hz})
	tris = quad(tris, Vec3{0, -1, 0},
		Vec3{-hx, -hy, -hz}, Vec3{hx, -hy, -hz}, Vec3{hx, -hy, hz}, Vec3{-hx, -hy, hz})
	tris = quad(tris, Vec3{1, 0, 0},
		Vec3{hx, -hy, -hz}, Vec3{hx, hy, -hz}, Vec3{hx, hy, hz}, Vec3{hx, -hy, hz})
	tris = quad(tris, Vec3{-1, 0, 0},
		Vec3{-hx, -hy, -hz}, Vec3{-hx, -hy, hz}, Vec3{-hx, hy, hz}, Vec3{-hx, hy, -hz})
	tris = quad(tris, Vec3{0, 0, 1},
		Vec3{-hx, -hy, hz}, Vec3{hx, -hy, hz}, Vec3{hx, hy, hz}, Vec3{-hx, hy, hz})
	tris = quad(tris, Vec3{0, 0, -1},
		Vec3{-hx, -hy, -hz}, Vec3{-hx, hy, -hz}, Vec3{hx, hy, -hz}, Vec3{hx, -hy, -hz})

	return tris
}

func tessellateCylinder(r, h float64) []Triangle {
	tris := make([]Triangle, 0, cylinderSegments*4)
	top := Vec3{0, h / 2, 0}
	bottom := Vec3{0, -h / 2, 0}

	for i := 0; i < cylinderSegments; i++ {
		// Wrapping the index keeps seam vertices bit-identical, so the
		// surface is watertight.
		u0 := 2 * math.Pi * float64(i) / cylinderSegments
		u1 := 2 * math.Pi * float64((i+1)%cylinderSegments) / cylinderSegments

		b0 := Vec3{r * math.Cos(u0), -h / 2, r * math.Sin(u0)}
		b1 := Vec3{r * math.Cos(u1), -h / 2, r * math.Sin(u1)}
		t0 := Vec3{r * math.Cos(u0), h / 2, r * math.Sin(u0)}
		t1 := Vec3{r * math.Cos(u1), h / 2, r * math.Sin(u1)}

		tris = append(tris, tri(b0, t1, b1))
		tris = append(tris, tri(b0, t0, t1))
		tris = append(tris, triN(Vec3{0, 1, 0}, top, t1, t0))
		tris = append(tris, triN(Vec3{0, -1, 0}, bottom, b0, b1))
	}

	return tris
}

func tessellateSphere(r float64) []Triangle {
	tris := make([]Triangle, 0, sphereSegments*(2*sphereRings-2))

	point := func(ring, seg int) Vec3 {
		theta := math.Pi * float64(ring) / sphereRings
		phi := 2 * math.Pi * float64(seg%sphereSegments) / sphereSegments
		return Vec3{
			r * math.Sin(theta) * math.Cos(phi),
			r * math.Cos(theta),
			r * math.Sin(theta) * math.Sin(phi),
		}
	}

	// Facet normals carry the radial direction of the triangle centroid
	// rather than the flat-plane normal.
	radial := func(a, b, c Vec3) Triangle {
		centroid := Vec3{
			(a.X + b.X + c.X) / 3,
			(a.Y + b.Y + c.Y) / 3,
			(a.Z + b.Z + c.Z) / 3,
		}
		return triN(centroid.Normalized(), a, b, c)
	}

	northPole := Vec3{0, r, 0}
	southPole := Vec3{0, -r, 0}

	for j := 0; j < sphereSegments; j++ {
		tris = append(tris, radial(northPole, point(1, j+1), point(1, j)))
		tris = append(tris, radial(southPole, point(sphereRings-1, j), point(sphereRings-1, j+1)))
	}

	for i := 1; i < sphereRings-1; i++ {
		for j := 0; j < sphereSegments; j++ {
			a := point(i, j)
			b := point(i, j+1)
			c := point(i+1, j+1)
			d := point(i+1, j)
			tris = append(tris, radial(d, b, c))
			tris = append(tris, radial(d, a, b))
		}
	}

	return tris
}

func tessellateCone(r, h float64) []Triangle {
	tris := make([]Triangle, 0, coneSegments*2)
	apex := Vec3{0, h, 0}
	base := Vec3{0, 0, 0}

	for i := 0; i < coneSegments; i++ {
		u0 := 2 * math.Pi * float64(i) / coneSegments
		u1 := 2 * math.Pi * float64((i+1)%coneSegments) / coneSegments

		p0 := Vec3{r * math.Cos(u0), 0, r * math.Sin(u0)}
		p1 := Vec3{r * math.Cos(u1), 0, r * math.Sin(u1)}

		tris = append(tris, tri(p0, apex, p1))
		tris = append(tris, triN(Vec3{0, -1, 0}, base, p0, p1))
	}

	return tris
}

func tessellateTorus(major, tube float64) []Triangle {
	tris := make([]Triangle, 0, torusRings*torusSegments*2)

	point := func(ring, seg int) Vec3 {
		u := 2 * math.Pi * float64(ring%torusRings) / torusRings
		v := 2 * math.Pi * float64(seg%torusSegments) / torusSegments
		return Vec3{
			(major + tube*math.Cos(v)) * math.Cos(u),
			tube * math.Sin(v),
			(major + tube*math.Cos(v)) * math.Sin(u),
		}
	}

	for i := 0; i < torusRings; i++ {
		for j := 0; j < torusSegments; j++ {
			a := point(i, j)
			b := point(i+1, j)
			c := point(i+1, j+1)
			d := point(i, j+1)
			tris = append(tris, tri(a, d, c))
			tris = append(tris, tri(a, c, b))
		}
	}

	return tris
}
