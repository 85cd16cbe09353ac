package asset

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3 `json:"min"`
	Max mgl32.Vec3 `json:"max"`
}

// EmptyBounds returns a box that any point will extend.
func EmptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether the box contains no points.
func (b Bounds) Empty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

// Extend grows the box to include p.
func (b *Bounds) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// Union grows the box to include o.
func (b *Bounds) Union(o Bounds) {
	if o.Empty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Bounds) Size() mgl32.Vec3 {
	if b.Empty() {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// MaxDim returns the largest edge length.
func (b Bounds) MaxDim() float32 {
	s := b.Size()
	return max(s[0], s[1], s[2])
}

// Corners returns the eight corners of the box.
func (b Bounds) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		out[i] = mgl32.Vec3{
			pick(i&1 != 0, b.Max[0], b.Min[0]),
			pick(i&2 != 0, b.Max[1], b.Min[1]),
			pick(i&4 != 0, b.Max[2], b.Min[2]),
		}
	}
	return out
}

// Transform returns the axis-aligned box enclosing b after applying m.
func (b Bounds) Transform(m mgl32.Mat4) Bounds {
	out := EmptyBounds()
	if b.Empty() {
		return out
	}
	for _, c := range b.Corners() {
		out.Extend(mgl32.TransformCoordinate(c, m))
	}
	return out
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}

// Transform is the root placement produced by normalization: points are
// scaled uniformly about the asset origin, then translated.
type Transform struct {
	Position mgl32.Vec3 `json:"position"`
	Scale    float32    `json:"scale"`
}

// IdentityTransform leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}

// Apply maps a point from asset space into world space.
func (t Transform) Apply(p mgl32.Vec3) mgl32.Vec3 {
	return p.Mul(t.Scale).Add(t.Position)
}

// ApplyBounds maps a box from asset space into world space.
func (t Transform) ApplyBounds(b Bounds) Bounds {
	if b.Empty() {
		return b
	}
	return Bounds{Min: t.Apply(b.Min), Max: t.Apply(b.Max)}
}

// Matrix returns the transform as a 4x4 matrix.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(mgl32.Scale3D(t.Scale, t.Scale, t.Scale))
}
