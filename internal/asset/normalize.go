package asset

import "fmt"

const (
	DefaultTargetSize float32 = 2
	DefaultGroundY    float32 = 0
)

// Options controls normalization.
type Options struct {
	// TargetSize is the length the largest bounding dimension is scaled to.
	TargetSize float32
	// GroundY is the height the lowest point of the asset rests on.
	GroundY float32
	// CastShadows flags every mesh part as a shadow caster.
	CastShadows bool
}

// DefaultOptions returns the canonical 2-unit framing on a ground plane at 0.
func DefaultOptions() Options {
	return Options{
		TargetSize:  DefaultTargetSize,
		GroundY:     DefaultGroundY,
		CastShadows: true,
	}
}

// Normalize computes the root transform that centers b on the origin, scales
// its largest dimension to opts.TargetSize and lifts its lowest point onto
// opts.GroundY.
func Normalize(b Bounds, opts Options) (Transform, error) {
	if b.Empty() {
		return Transform{}, ErrDegenerateBounds
	}
	maxDim := b.MaxDim()
	if maxDim <= 0 {
		return Transform{}, fmt.Errorf("%w: largest dimension is %v", ErrDegenerateBounds, maxDim)
	}
	target := opts.TargetSize
	if target <= 0 {
		target = DefaultTargetSize
	}

	s := target / maxDim
	center := b.Center()

	// Recentre, then scale: p' = s*(p - c). The lowest point lands at
	// s*(min.y - c.y); lift it to the ground plane.
	pos := center.Mul(-s)
	lowest := s * (b.Min[1] - center[1])
	pos[1] += opts.GroundY - lowest

	return Transform{Position: pos, Scale: s}, nil
}
