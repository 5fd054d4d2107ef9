package scene

import "render-interop/math"

// Spin turns a model about a fixed axis by a constant step per frame.
type Spin struct {
	step        math.Quaternion
	orientation math.Quaternion
}

func NewSpin(axis math.Vec3, radiansPerFrame float32) *Spin {
	return &Spin{
		step:        math.QuaternionFromAxisAngle(axis, radiansPerFrame),
		orientation: math.QuaternionIdentity(),
	}
}

// Model is the current model matrix.
func (s *Spin) Model() math.Mat4 { return s.orientation.ToMat4() }

// Advance applies one step. The orientation is renormalized so drift does
// not accumulate over long runs.
func (s *Spin) Advance() {
	s.orientation = s.orientation.Mul(s.step).Normalize()
}
